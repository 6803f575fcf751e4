package models

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Password  string   `json:"-"`
	Followers []string `json:"followers"`
	Following []string `json:"following"`
	Tweets    int      `json:"tweets"`
}

// UserUpdate carries the profile fields to change. Empty fields keep their
// stored value; Password must already be hashed.
type UserUpdate struct {
	Name     string
	Email    string
	Password string
}

type Tweet struct {
	ID             string    `json:"id" bson:"tweetId"`
	AuthorID       string    `json:"user" bson:"user"`
	Body           string    `json:"body" bson:"body"`
	Favoriters     []string  `json:"favoriters" bson:"favoriters"`
	FavoritesCount int       `json:"favoritesCount" bson:"favoritesCount"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// TweetView is the projection returned by timelines. AuthorID is left empty
// on the author's own timeline.
type TweetView struct {
	ID             string    `json:"id" bson:"tweetId"`
	AuthorID       string    `json:"user,omitempty" bson:"user,omitempty"`
	Body           string    `json:"body" bson:"body"`
	Favoriters     []string  `json:"favoriters" bson:"favoriters"`
	FavoritesCount int       `json:"favoritesCount" bson:"favoritesCount"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (t Tweet) View() TweetView {
	favoriters := t.Favoriters
	if favoriters == nil {
		favoriters = []string{}
	}
	return TweetView{
		ID:             t.ID,
		AuthorID:       t.AuthorID,
		Body:           t.Body,
		Favoriters:     favoriters,
		FavoritesCount: t.FavoritesCount,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// TweetRef addresses one tweet of a known author, either by its generated id
// or by its creation time.
type TweetRef struct {
	ID        string
	CreatedAt time.Time
}

var ErrInvalidTweetRef = errors.New("invalid tweet reference")

// ParseTweetRef accepts a tweet UUID, an RFC3339 timestamp or Unix milliseconds.
func ParseTweetRef(s string) (TweetRef, error) {
	if id, err := uuid.Parse(s); err == nil {
		return TweetRef{ID: id.String()}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return TweetRef{CreatedAt: ts.UTC().Truncate(time.Millisecond)}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return TweetRef{CreatedAt: time.UnixMilli(ms).UTC()}, nil
	}
	return TweetRef{}, ErrInvalidTweetRef
}

// Matches reports whether t is the tweet addressed by r.
func (r TweetRef) Matches(t Tweet) bool {
	if r.ID != "" {
		return t.ID == r.ID
	}
	return t.CreatedAt.Equal(r.CreatedAt)
}

func (r TweetRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.CreatedAt.Format(time.RFC3339Nano)
}

type EventType string

const (
	EventUserFollowed EventType = "user.followed"
	EventTweetCreated EventType = "tweet.created"
	EventTweetDeleted EventType = "tweet.deleted"
	EventTweetLiked   EventType = "tweet.liked"
	EventTweetUnliked EventType = "tweet.unliked"
)

// Event is published after (or, for follows, before) a multi-document write
// so the worker can re-apply the idempotent part of it.
type Event struct {
	Type       EventType `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	TweetID    string    `json:"tweet_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
