package server

import (
	"errors"
	"net/http"
	"time"

	"example.com/chirp/internal/metrics"
	"example.com/chirp/internal/models"
	"example.com/chirp/internal/response"
	"example.com/chirp/internal/store"
	"example.com/chirp/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	msgTweetNotFound = "Tweet Not Found."
	msgInvalidSort   = "Invalid Sort Provided."
)

type createdTweet struct {
	Message   string    `json:"message"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type likeResult struct {
	Tweet models.TweetView `json:"tweet"`
	Liked bool             `json:"liked"`
}

// tweetRef reads the {createdAt} path parameter, which may hold a tweet id or
// a creation timestamp. Unparsable values address no tweet.
func tweetRef(w http.ResponseWriter, r *http.Request) (models.TweetRef, bool) {
	ref, err := models.ParseTweetRef(chi.URLParam(r, "createdAt"))
	if err != nil {
		response.Error(w, http.StatusNotFound, msgTweetNotFound)
		return models.TweetRef{}, false
	}
	return ref, true
}

// createTweetHandler stores a tweet by the caller.
// Expects JSON body: {"body": "4 to 280 characters"}
func (s *Server) createTweetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/tweets")
	if !ok {
		return
	}
	var req validation.TweetRequest
	if !decodeBody(w, r, "http/tweets", &req) {
		return
	}
	if verr := validation.Struct(req); verr != nil {
		response.Error(w, http.StatusBadRequest, verr.Message)
		return
	}

	now := s.now()
	tweet := models.Tweet{
		ID:         uuid.NewString(),
		AuthorID:   userID,
		Body:       req.Body,
		Favoriters: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.store.CreateTweet(r.Context(), tweet)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgNoUser)
		return
	}
	// The tweet may be stored even when the count update failed; the event
	// lets the worker recount either way.
	s.publish(r, "http/tweets", models.Event{
		Type:    models.EventTweetCreated,
		ActorID: userID,
		TweetID: tweet.ID,
	})
	if err != nil {
		internalError(w, "http/tweets", "Failed to save tweet", err)
		return
	}

	logg.Info("http/tweets", "Tweet created by user_id="+userID)
	response.JSON(w, http.StatusOK, createdTweet{Message: "Tweet Added.", ID: tweet.ID, CreatedAt: tweet.CreatedAt})
}

// userTweetsHandler lists the caller's tweets.
// Query parameters: ?sort=-createdAt&pageNo=2
func (s *Server) userTweetsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/tweets")
	if !ok {
		return
	}
	q := r.URL.Query()
	sort, err := store.ParseSort(q.Get("sort"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, msgInvalidSort)
		return
	}

	tweets, err := s.store.GetUserTweets(r.Context(), userID, sort, parsePage(q.Get("pageNo")))
	if errors.Is(err, store.ErrInvalidSort) {
		response.Error(w, http.StatusBadRequest, msgInvalidSort)
		return
	}
	if err != nil {
		internalError(w, "http/tweets", "Failed to load user tweets", err)
		return
	}
	response.JSON(w, http.StatusOK, tweets)
}

func (s *Server) updateTweetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/tweets")
	if !ok {
		return
	}
	var req validation.TweetRequest
	if !decodeBody(w, r, "http/tweets", &req) {
		return
	}
	if verr := validation.Struct(req); verr != nil {
		response.Error(w, http.StatusBadRequest, verr.Message)
		return
	}
	ref, ok := tweetRef(w, r)
	if !ok {
		return
	}

	err := s.store.UpdateTweet(r.Context(), userID, ref, req.Body, s.now())
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgTweetNotFound)
		return
	}
	if err != nil {
		internalError(w, "http/tweets", "Failed to update tweet", err)
		return
	}
	response.OK(w, "Tweet Updated.")
}

func (s *Server) deleteTweetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/tweets")
	if !ok {
		return
	}
	ref, ok := tweetRef(w, r)
	if !ok {
		return
	}

	err := s.store.DeleteTweet(r.Context(), userID, ref)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgTweetNotFound)
		return
	}
	s.publish(r, "http/tweets", models.Event{
		Type:    models.EventTweetDeleted,
		ActorID: userID,
		TweetID: ref.ID,
	})
	if err != nil {
		internalError(w, "http/tweets", "Failed to delete tweet", err)
		return
	}
	response.OK(w, "Tweet Deleted.")
}

// feedHandler returns tweets of the users the caller follows, newest first.
// Query parameters: ?pageNo=1
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/feed")
	if !ok {
		return
	}
	feed, err := s.store.GetFollowingFeed(r.Context(), userID, parsePage(r.URL.Query().Get("pageNo")))
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, msgNoUser)
		return
	}
	if err != nil {
		internalError(w, "http/feed", "Failed to load feed for user_id="+userID, err)
		return
	}
	response.JSON(w, http.StatusOK, feed)
}

// toggleLikeHandler likes the tweet {createdAt} of {byUser}, or removes the
// caller's like if present.
func (s *Server) toggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/likes")
	if !ok {
		return
	}
	ref, ok := tweetRef(w, r)
	if !ok {
		return
	}
	author := chi.URLParam(r, "byUser")

	tweet, liked, err := s.store.ToggleLike(r.Context(), userID, author, ref)
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, msgTweetNotFound)
		return
	case errors.Is(err, store.ErrConflict):
		response.Error(w, http.StatusConflict, msgTryAgain)
		return
	case err != nil:
		internalError(w, "http/likes", "Failed to toggle like", err)
		return
	}

	metrics.RecordLikeToggle(liked)
	ev := models.Event{Type: models.EventTweetUnliked, ActorID: userID, TargetID: author, TweetID: tweet.ID}
	if liked {
		ev.Type = models.EventTweetLiked
	}
	s.publish(r, "http/likes", ev)

	response.JSON(w, http.StatusOK, likeResult{Tweet: tweet.View(), Liked: liked})
}
