package store

import (
	"context"
	"fmt"
	"time"

	"example.com/chirp/internal/models"
	"github.com/gocql/gocql"
)

const tweetColumns = `author_id, created_at, tweet_id, body, favoriters, favorites_count, updated_at`

// tweetKey is the full primary key of a row in tweets.
type tweetKey struct {
	authorID  string
	createdAt time.Time
	tweetID   gocql.UUID
}

func scanTweets(iter *gocql.Iter) ([]models.Tweet, error) {
	var (
		res       []models.Tweet
		t         models.Tweet
		tid       gocql.UUID
		favs      []string
		favsCount int
	)
	for iter.Scan(&t.AuthorID, &t.CreatedAt, &tid, &t.Body, &favs, &favsCount, &t.UpdatedAt) {
		t.ID = tid.String()
		t.Favoriters = nonNil(favs)
		t.FavoritesCount = favsCount
		res = append(res, t)
		favs = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return res, nil
}

// locate resolves a tweet reference to its primary key.
func (s *CassandraStore) locate(ctx context.Context, authorID string, ref models.TweetRef) (tweetKey, error) {
	key := tweetKey{authorID: authorID}
	if ref.ID != "" {
		tid, err := gocql.ParseUUID(ref.ID)
		if err != nil {
			return tweetKey{}, ErrNotFound
		}
		var owner string
		if err := s.Session.Query(
			`SELECT author_id, created_at FROM tweets_by_id WHERE tweet_id = ?`, tid,
		).WithContext(ctx).Scan(&owner, &key.createdAt); err != nil {
			return tweetKey{}, cqlNotFound(err)
		}
		if owner != authorID {
			return tweetKey{}, ErrNotFound
		}
		key.tweetID = tid
		return key, nil
	}

	key.createdAt = ref.CreatedAt
	if err := s.Session.Query(
		`SELECT tweet_id FROM tweets WHERE author_id = ? AND created_at = ? LIMIT 1`,
		authorID, ref.CreatedAt,
	).WithContext(ctx).Scan(&key.tweetID); err != nil {
		return tweetKey{}, cqlNotFound(err)
	}
	return key, nil
}

func (s *CassandraStore) getTweet(ctx context.Context, key tweetKey) (models.Tweet, error) {
	iter := s.Session.Query(
		`SELECT `+tweetColumns+` FROM tweets WHERE author_id = ? AND created_at = ? AND tweet_id = ?`,
		key.authorID, key.createdAt, key.tweetID,
	).WithContext(ctx).Iter()
	ts, err := scanTweets(iter)
	if err != nil {
		return models.Tweet{}, err
	}
	if len(ts) == 0 {
		return models.Tweet{}, ErrNotFound
	}
	return ts[0], nil
}

// --- Tweet operations ---

func (s *CassandraStore) CreateTweet(ctx context.Context, tweet models.Tweet) error {
	if _, err := s.GetUserByID(ctx, tweet.AuthorID); err != nil {
		return err
	}
	tid, err := gocql.ParseUUID(tweet.ID)
	if err != nil {
		return fmt.Errorf("tweet id: %w", err)
	}
	tweet.Favoriters = nonNil(tweet.Favoriters)

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO tweets (`+tweetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tweet.AuthorID, tweet.CreatedAt, tid, tweet.Body, tweet.Favoriters, len(tweet.Favoriters), tweet.UpdatedAt)
	batch.Query(`INSERT INTO tweets_by_id (tweet_id, author_id, created_at) VALUES (?, ?, ?)`,
		tid, tweet.AuthorID, tweet.CreatedAt)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add tweet", err)
		return fmt.Errorf("insert tweet: %w", err)
	}

	if err := s.addTweetCount(ctx, tweet.AuthorID, 1); err != nil {
		logg.Error("store", "Failed to increment tweet count", err)
		return err
	}

	logg.Info("store", "Tweet added (content anonymized)")
	return nil
}

func (s *CassandraStore) UpdateTweet(ctx context.Context, authorID string, ref models.TweetRef, body string, at time.Time) error {
	key, err := s.locate(ctx, authorID, ref)
	if err != nil {
		return err
	}
	applied, err := s.Session.Query(`
		UPDATE tweets SET body = ?, updated_at = ?
		WHERE author_id = ? AND created_at = ? AND tweet_id = ? IF EXISTS`,
		body, at, key.authorID, key.createdAt, key.tweetID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to update tweet", err)
		return fmt.Errorf("update tweet: %w", err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (s *CassandraStore) DeleteTweet(ctx context.Context, authorID string, ref models.TweetRef) error {
	key, err := s.locate(ctx, authorID, ref)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM tweets WHERE author_id = ? AND created_at = ? AND tweet_id = ?`,
		key.authorID, key.createdAt, key.tweetID)
	batch.Query(`DELETE FROM tweets_by_id WHERE tweet_id = ?`, key.tweetID)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete tweet", err)
		return fmt.Errorf("delete tweet: %w", err)
	}

	return s.addTweetCount(ctx, authorID, -1)
}

func (s *CassandraStore) GetUserTweets(ctx context.Context, authorID string, sort SortSpec, pageNo int) ([]models.TweetView, error) {
	stmt := `SELECT ` + tweetColumns + ` FROM tweets WHERE author_id = ?`
	args := []interface{}{authorID}
	pageNo = NormalizePage(pageNo)

	// Newest-first is the clustering order, so only that sort can stop early.
	if sort.Field == "createdAt" && sort.Desc {
		stmt += ` LIMIT ?`
		args = append(args, pageOffset(pageNo)+PageSize)
	}

	ts, err := scanTweets(s.Session.Query(stmt, args...).WithContext(ctx).Iter())
	if err != nil {
		logg.Error("store", "Failed to query user tweets", err)
		return nil, fmt.Errorf("select tweets: %w", err)
	}
	sortTweets(ts, sort)
	return views(paginate(ts, pageNo), false), nil
}

// GetFollowingFeed reads at most offset+PageSize newest tweets from each
// followed author's partition and merges them.
func (s *CassandraStore) GetFollowingFeed(ctx context.Context, userID string, pageNo int) ([]models.TweetView, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pageNo = NormalizePage(pageNo)
	limit := pageOffset(pageNo) + PageSize

	var all []models.Tweet
	for _, authorID := range user.Following {
		ts, err := scanTweets(s.Session.Query(
			`SELECT `+tweetColumns+` FROM tweets WHERE author_id = ? LIMIT ?`,
			authorID, limit,
		).WithContext(ctx).Iter())
		if err != nil {
			logg.Error("store", "Failed to retrieve followed author tweets", err)
			return nil, fmt.Errorf("select feed tweets: %w", err)
		}
		all = append(all, ts...)
	}

	sortTweets(all, SortSpec{Field: "createdAt", Desc: true})
	return views(paginate(all, pageNo), true), nil
}

// ToggleLike flips the user's like with a lightweight transaction guarded on
// the current count, retrying when a concurrent toggle wins.
func (s *CassandraStore) ToggleLike(ctx context.Context, userID, authorID string, ref models.TweetRef) (models.Tweet, bool, error) {
	key, err := s.locate(ctx, authorID, ref)
	if err != nil {
		return models.Tweet{}, false, err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		t, err := s.getTweet(ctx, key)
		if err != nil {
			return models.Tweet{}, false, err
		}

		liked := !contains(t.Favoriters, userID)
		op := "-"
		next := remove(t.Favoriters, userID)
		if liked {
			op = "+"
			next = append(t.Favoriters, userID)
		}

		applied, err := s.Session.Query(`
			UPDATE tweets SET favoriters = favoriters `+op+` ?, favorites_count = ?
			WHERE author_id = ? AND created_at = ? AND tweet_id = ?
			IF favorites_count = ?`,
			[]string{userID}, len(next), key.authorID, key.createdAt, key.tweetID, t.FavoritesCount,
		).WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			logg.Error("store", "Failed to toggle like", err)
			return models.Tweet{}, false, fmt.Errorf("toggle like: %w", err)
		}
		if applied {
			t.Favoriters = next
			t.FavoritesCount = len(next)
			return t, liked, nil
		}
	}
	return models.Tweet{}, false, ErrConflict
}

// --- Repairs ---

func (s *CassandraStore) SyncTweetCount(ctx context.Context, authorID string) error {
	var n int
	if err := s.Session.Query(
		`SELECT COUNT(*) FROM tweets WHERE author_id = ?`, authorID,
	).WithContext(ctx).Scan(&n); err != nil {
		return fmt.Errorf("count tweets: %w", err)
	}
	applied, err := s.Session.Query(
		`UPDATE users SET tweets = ? WHERE user_id = ? IF EXISTS`, n, authorID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("set tweet count: %w", err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (s *CassandraStore) SyncLikeCount(ctx context.Context, authorID string, ref models.TweetRef) error {
	key, err := s.locate(ctx, authorID, ref)
	if err != nil {
		return err
	}
	t, err := s.getTweet(ctx, key)
	if err != nil {
		return err
	}
	if t.FavoritesCount == len(t.Favoriters) {
		return nil
	}
	applied, err := s.Session.Query(`
		UPDATE tweets SET favorites_count = ?
		WHERE author_id = ? AND created_at = ? AND tweet_id = ? IF favorites_count = ?`,
		len(t.Favoriters), key.authorID, key.createdAt, key.tweetID, t.FavoritesCount,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("sync like count: %w", err)
	}
	if !applied {
		return ErrConflict
	}
	return nil
}
