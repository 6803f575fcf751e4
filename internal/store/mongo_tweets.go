package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/chirp/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// toggleAttempts bounds the like/unlike flip when a concurrent toggle by the
// same user changes the state between the two conditional updates.
const toggleAttempts = 3

var sortColumns = map[string]string{
	"_id":            "_id",
	"createdAt":      "createdAt",
	"updatedAt":      "updatedAt",
	"favoritesCount": "favoritesCount",
	"body":           "body",
}

func refFilter(authorID string, ref models.TweetRef) bson.D {
	f := bson.D{{Key: "user", Value: authorID}}
	if ref.ID != "" {
		return append(f, bson.E{Key: "tweetId", Value: ref.ID})
	}
	return append(f, bson.E{Key: "createdAt", Value: ref.CreatedAt})
}

// --- Tweet operations ---

// CreateTweet increments the author's tweet count and inserts the tweet. The
// author is matched first so a missing user never leaves a stored tweet.
func (s *MongoStore) CreateTweet(ctx context.Context, tweet models.Tweet) error {
	uid, err := objectID(tweet.AuthorID)
	if err != nil {
		return err
	}
	tweet.Favoriters = nonNil(tweet.Favoriters)
	tweet.FavoritesCount = len(tweet.Favoriters)
	byAuthor := bson.D{{Key: "_id", Value: uid}}

	return s.withTx(ctx, func(ctx context.Context) error {
		res, err := s.users.UpdateOne(ctx, byAuthor,
			bson.D{{Key: "$inc", Value: bson.D{{Key: "tweets", Value: 1}}}},
		)
		if err != nil {
			return fmt.Errorf("increment tweet count: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		if _, err := s.tweets.InsertOne(ctx, tweetDoc{Tweet: tweet}); err != nil {
			logg.Error("store", "Failed to add tweet", err)
			if !s.transactions {
				// Without a transaction the count has to be put back by hand.
				if _, uerr := s.users.UpdateOne(ctx, byAuthor,
					bson.D{{Key: "$inc", Value: bson.D{{Key: "tweets", Value: -1}}}},
				); uerr != nil {
					logg.Error("store", "Failed to restore tweet count", uerr)
				}
			}
			return fmt.Errorf("insert tweet: %w", err)
		}
		logg.Info("store", "Tweet added (content anonymized)")
		return nil
	})
}

func (s *MongoStore) UpdateTweet(ctx context.Context, authorID string, ref models.TweetRef, body string, at time.Time) error {
	res, err := s.tweets.UpdateOne(ctx, refFilter(authorID, ref), bson.D{{Key: "$set", Value: bson.D{
		{Key: "body", Value: body},
		{Key: "updatedAt", Value: at},
	}}})
	if err != nil {
		logg.Error("store", "Failed to update tweet", err)
		return fmt.Errorf("update tweet: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTweet removes the tweet and decrements the author's count only when a
// tweet was actually removed.
func (s *MongoStore) DeleteTweet(ctx context.Context, authorID string, ref models.TweetRef) error {
	uid, err := objectID(authorID)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(ctx context.Context) error {
		res, err := s.tweets.DeleteOne(ctx, refFilter(authorID, ref))
		if err != nil {
			logg.Error("store", "Failed to delete tweet", err)
			return fmt.Errorf("delete tweet: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		if _, err := s.users.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: uid}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "tweets", Value: -1}}}},
		); err != nil {
			return fmt.Errorf("decrement tweet count: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) GetUserTweets(ctx context.Context, authorID string, sort SortSpec, pageNo int) ([]models.TweetView, error) {
	col, ok := sortColumns[sort.Field]
	if !ok {
		return nil, ErrInvalidSort
	}
	dir := 1
	if sort.Desc {
		dir = -1
	}
	order := bson.D{{Key: col, Value: dir}}
	if col != "_id" {
		order = append(order, bson.E{Key: "_id", Value: dir})
	}

	opts := options.Find().
		SetSort(order).
		SetSkip(int64(pageOffset(pageNo))).
		SetLimit(PageSize).
		SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "user", Value: 0}, {Key: "__v", Value: 0}})

	cur, err := s.tweets.Find(ctx, bson.D{{Key: "user", Value: authorID}}, opts)
	if err != nil {
		logg.Error("store", "Failed to query user tweets", err)
		return nil, fmt.Errorf("find tweets: %w", err)
	}
	out := []models.TweetView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode tweets: %w", err)
	}
	for i := range out {
		out[i].Favoriters = nonNil(out[i].Favoriters)
	}
	return out, nil
}

// GetFollowingFeed joins the user's following set with tweets by author,
// newest first, one page at a time.
func (s *MongoStore) GetFollowingFeed(ctx context.Context, userID string, pageNo int) ([]models.TweetView, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: oid}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: tweetsCollection},
			{Key: "localField", Value: "following"},
			{Key: "foreignField", Value: "user"},
			{Key: "as", Value: "tweets"},
		}}},
		{{Key: "$unwind", Value: "$tweets"}},
		{{Key: "$sort", Value: bson.D{{Key: "tweets.createdAt", Value: -1}, {Key: "tweets._id", Value: -1}}}},
		{{Key: "$skip", Value: int64(pageOffset(pageNo))}},
		{{Key: "$limit", Value: int64(PageSize)}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "tweetId", Value: "$tweets.tweetId"},
			{Key: "favoriters", Value: "$tweets.favoriters"},
			{Key: "body", Value: "$tweets.body"},
			{Key: "user", Value: "$tweets.user"},
			{Key: "createdAt", Value: "$tweets.createdAt"},
			{Key: "updatedAt", Value: "$tweets.updatedAt"},
			{Key: "favoritesCount", Value: "$tweets.favoritesCount"},
		}}},
	}

	cur, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		logg.Error("store", "Failed to aggregate following feed", err)
		return nil, fmt.Errorf("aggregate feed: %w", err)
	}
	out := []models.TweetView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	if len(out) == 0 {
		n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return nil, fmt.Errorf("count user: %w", err)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
	}
	for i := range out {
		out[i].Favoriters = nonNil(out[i].Favoriters)
	}
	return out, nil
}

// ToggleLike flips userID's membership in the tweet's favoriters. Each branch
// is a single conditional update, so the set and the count move together and
// a concurrent toggle cannot double count.
func (s *MongoStore) ToggleLike(ctx context.Context, userID, authorID string, ref models.TweetRef) (models.Tweet, bool, error) {
	after := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	like := append(refFilter(authorID, ref), bson.E{Key: "favoriters", Value: bson.D{{Key: "$ne", Value: userID}}})
	unlike := append(refFilter(authorID, ref), bson.E{Key: "favoriters", Value: userID})

	for attempt := 0; attempt < toggleAttempts; attempt++ {
		var doc tweetDoc
		err := s.tweets.FindOneAndUpdate(ctx, like, bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "favoriters", Value: userID}}},
			{Key: "$inc", Value: bson.D{{Key: "favoritesCount", Value: 1}}},
		}, after).Decode(&doc)
		if err == nil {
			return doc.Tweet, true, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			logg.Error("store", "Failed to like tweet", err)
			return models.Tweet{}, false, fmt.Errorf("like tweet: %w", err)
		}

		err = s.tweets.FindOneAndUpdate(ctx, unlike, bson.D{
			{Key: "$pull", Value: bson.D{{Key: "favoriters", Value: userID}}},
			{Key: "$inc", Value: bson.D{{Key: "favoritesCount", Value: -1}}},
		}, after).Decode(&doc)
		if err == nil {
			doc.Favoriters = nonNil(doc.Favoriters)
			return doc.Tweet, false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			logg.Error("store", "Failed to unlike tweet", err)
			return models.Tweet{}, false, fmt.Errorf("unlike tweet: %w", err)
		}

		n, err := s.tweets.CountDocuments(ctx, refFilter(authorID, ref))
		if err != nil {
			return models.Tweet{}, false, fmt.Errorf("count tweet: %w", err)
		}
		if n == 0 {
			return models.Tweet{}, false, ErrNotFound
		}
	}
	return models.Tweet{}, false, ErrConflict
}

// --- Repairs ---

// SyncTweetCount sets the author's denormalized tweet count to the number of
// tweets actually stored.
func (s *MongoStore) SyncTweetCount(ctx context.Context, authorID string) error {
	oid, err := objectID(authorID)
	if err != nil {
		return err
	}
	n, err := s.tweets.CountDocuments(ctx, bson.D{{Key: "user", Value: authorID}})
	if err != nil {
		return fmt.Errorf("count tweets: %w", err)
	}
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "tweets", Value: n}}}},
	)
	if err != nil {
		return fmt.Errorf("set tweet count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SyncLikeCount recomputes favoritesCount from the favoriters set in a single
// pipeline update.
func (s *MongoStore) SyncLikeCount(ctx context.Context, authorID string, ref models.TweetRef) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "favoritesCount", Value: bson.D{{Key: "$size", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{"$favoriters", bson.A{}}},
			}}}},
		}}},
	}
	res, err := s.tweets.UpdateOne(ctx, refFilter(authorID, ref), update)
	if err != nil {
		return fmt.Errorf("sync like count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
