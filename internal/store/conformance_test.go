package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"example.com/chirp/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConformance exercises the behaviour every backend must share. newStore
// must return an empty store.
func runConformance(t *testing.T, newStore func(t *testing.T) StoreInterface) {
	t.Run("DuplicateEmail", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		_, err := st.CreateUser(ctx, models.User{Name: "A", Email: "a@example.com", Password: "h"})
		require.NoError(t, err)
		_, err = st.CreateUser(ctx, models.User{Name: "A2", Email: "a@example.com", Password: "h"})
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("UserLifecycle", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		id := mustUser(t, st, "ann@example.com")
		other := mustUser(t, st, "bob@example.com")

		u, err := st.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Empty(t, u.Followers)
		assert.Empty(t, u.Following)

		assert.ErrorIs(t, st.UpdateUser(ctx, id, models.UserUpdate{Email: "bob@example.com"}), ErrEmailExists)
		require.NoError(t, st.UpdateUser(ctx, id, models.UserUpdate{Name: "Anne", Email: "anne@example.com"}))

		u, err = st.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Anne", u.Name)
		assert.Equal(t, "anne@example.com", u.Email)
		assert.Equal(t, "hash", u.Password)

		_, err = st.GetUserByEmail(ctx, "ann@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, st.DeleteUser(ctx, id))
		_, err = st.GetUserByID(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, st.DeleteUser(ctx, id), ErrNotFound)

		_, err = st.GetUserByID(ctx, other)
		assert.NoError(t, err)
	})

	t.Run("FollowIsSetAndSymmetric", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		b := mustUser(t, st, "b@example.com")

		require.NoError(t, st.Follow(ctx, a, b))
		require.NoError(t, st.Follow(ctx, a, b))

		ua, err := st.GetUserByID(ctx, a)
		require.NoError(t, err)
		ub, err := st.GetUserByID(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, []string{b}, ua.Following)
		assert.Equal(t, []string{a}, ub.Followers)
		assert.Empty(t, ua.Followers)

		assert.ErrorIs(t, st.Follow(ctx, a, a), ErrSelfFollow)
	})

	t.Run("FollowingFeed", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		b := mustUser(t, st, "b@example.com")
		c := mustUser(t, st, "c@example.com")

		feed, err := st.GetFollowingFeed(ctx, a, 1)
		require.NoError(t, err)
		assert.NotNil(t, feed)
		assert.Empty(t, feed)

		require.NoError(t, st.Follow(ctx, a, b))
		at := time.Now().UTC().Truncate(time.Millisecond)
		tw := mustTweet(t, st, b, "hello from b", at)
		mustTweet(t, st, c, "not followed", at.Add(time.Second))

		feed, err = st.GetFollowingFeed(ctx, a, 1)
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, "hello from b", feed[0].Body)
		assert.Equal(t, b, feed[0].AuthorID)
		assert.Equal(t, tw.ID, feed[0].ID)
		assert.Equal(t, []string{}, feed[0].Favoriters)
		assert.Equal(t, 0, feed[0].FavoritesCount)
		assert.True(t, at.Equal(feed[0].CreatedAt))

		zero, err := st.GetFollowingFeed(ctx, a, 0)
		require.NoError(t, err)
		assert.Equal(t, feed, zero)

		_, err = st.GetFollowingFeed(ctx, "missing-user", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("FollowingFeedOrderAndPaging", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		b := mustUser(t, st, "b@example.com")
		c := mustUser(t, st, "c@example.com")
		require.NoError(t, st.Follow(ctx, a, b))
		require.NoError(t, st.Follow(ctx, a, c))

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 15; i++ {
			author := b
			if i%2 == 1 {
				author = c
			}
			mustTweet(t, st, author, fmt.Sprintf("tweet %02d", i), base.Add(time.Duration(i)*time.Second))
		}

		p1, err := st.GetFollowingFeed(ctx, a, 1)
		require.NoError(t, err)
		p2, err := st.GetFollowingFeed(ctx, a, 2)
		require.NoError(t, err)
		p3, err := st.GetFollowingFeed(ctx, a, 3)
		require.NoError(t, err)

		require.Len(t, p1, PageSize)
		require.Len(t, p2, 5)
		assert.Empty(t, p3)
		assert.Equal(t, "tweet 14", p1[0].Body)
		assert.Equal(t, "tweet 05", p1[9].Body)
		assert.Equal(t, "tweet 04", p2[0].Body)
		assert.Equal(t, "tweet 00", p2[4].Body)
	})

	t.Run("OwnTimeline", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 12; i++ {
			mustTweet(t, st, a, fmt.Sprintf("tweet %02d", i), base.Add(time.Duration(i)*time.Second))
		}

		def, err := ParseSort("")
		require.NoError(t, err)
		p1, err := st.GetUserTweets(ctx, a, def, 1)
		require.NoError(t, err)
		p0, err := st.GetUserTweets(ctx, a, def, 0)
		require.NoError(t, err)
		p2, err := st.GetUserTweets(ctx, a, def, 2)
		require.NoError(t, err)

		require.Len(t, p1, PageSize)
		require.Len(t, p2, 2)
		assert.Equal(t, p1, p0)
		assert.Equal(t, "tweet 00", p1[0].Body)
		assert.Equal(t, "tweet 11", p2[1].Body)
		assert.Empty(t, p1[0].AuthorID)

		desc, err := ParseSort("-createdAt")
		require.NoError(t, err)
		newest, err := st.GetUserTweets(ctx, a, desc, 1)
		require.NoError(t, err)
		assert.Equal(t, "tweet 11", newest[0].Body)

		u, err := st.GetUserByID(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, 12, u.Tweets)
	})

	t.Run("ToggleLikeRoundTrip", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		b := mustUser(t, st, "b@example.com")
		at := time.Now().UTC().Truncate(time.Millisecond)
		tw := mustTweet(t, st, b, "like me", at)

		got, liked, err := st.ToggleLike(ctx, a, b, models.TweetRef{CreatedAt: at})
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, []string{a}, got.Favoriters)
		assert.Equal(t, 1, got.FavoritesCount)

		got, liked, err = st.ToggleLike(ctx, a, b, models.TweetRef{ID: tw.ID})
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Empty(t, got.Favoriters)
		assert.Equal(t, 0, got.FavoritesCount)

		_, _, err = st.ToggleLike(ctx, a, a, models.TweetRef{ID: tw.ID})
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = st.ToggleLike(ctx, a, b, models.TweetRef{ID: uuid.NewString()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateAndDeleteTweet", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		b := mustUser(t, st, "b@example.com")
		at := time.Now().UTC().Truncate(time.Millisecond)
		tw := mustTweet(t, st, a, "first body", at)

		later := at.Add(time.Minute)
		require.NoError(t, st.UpdateTweet(ctx, a, models.TweetRef{ID: tw.ID}, "second body", later))
		assert.ErrorIs(t, st.UpdateTweet(ctx, b, models.TweetRef{ID: tw.ID}, "hijack", later), ErrNotFound)

		def, _ := ParseSort("")
		list, err := st.GetUserTweets(ctx, a, def, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "second body", list[0].Body)
		assert.True(t, later.Equal(list[0].UpdatedAt))

		assert.ErrorIs(t, st.DeleteTweet(ctx, a, models.TweetRef{ID: uuid.NewString()}), ErrNotFound)
		u, _ := st.GetUserByID(ctx, a)
		assert.Equal(t, 1, u.Tweets)

		require.NoError(t, st.DeleteTweet(ctx, a, models.TweetRef{CreatedAt: at}))
		u, _ = st.GetUserByID(ctx, a)
		assert.Equal(t, 0, u.Tweets)

		list, err = st.GetUserTweets(ctx, a, def, 1)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("CreateTweetForDeletedAuthor", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		gone := mustUser(t, st, "gone@example.com")
		require.NoError(t, st.DeleteUser(ctx, gone))

		at := time.Now().UTC().Truncate(time.Millisecond)
		err := st.CreateTweet(ctx, models.Tweet{
			ID:        uuid.NewString(),
			AuthorID:  gone,
			Body:      "orphan",
			CreatedAt: at,
			UpdatedAt: at,
		})
		assert.ErrorIs(t, err, ErrNotFound)

		def, _ := ParseSort("")
		list, err := st.GetUserTweets(ctx, gone, def, 1)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Repairs", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		a := mustUser(t, st, "a@example.com")
		tw := mustTweet(t, st, a, "count me", time.Now().UTC().Truncate(time.Millisecond))

		require.NoError(t, st.SyncTweetCount(ctx, a))
		require.NoError(t, st.SyncLikeCount(ctx, a, models.TweetRef{ID: tw.ID}))

		u, err := st.GetUserByID(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Tweets)

		assert.ErrorIs(t, st.SyncTweetCount(ctx, "missing-user"), ErrNotFound)
		assert.ErrorIs(t, st.SyncLikeCount(ctx, a, models.TweetRef{ID: uuid.NewString()}), ErrNotFound)
	})
}

func mustUser(t *testing.T, st StoreInterface, email string) string {
	t.Helper()
	id, err := st.CreateUser(context.Background(), models.User{Name: email, Email: email, Password: "hash"})
	require.NoError(t, err)
	return id
}

func mustTweet(t *testing.T, st StoreInterface, author, body string, at time.Time) models.Tweet {
	t.Helper()
	tw := models.Tweet{
		ID:        uuid.NewString(),
		AuthorID:  author,
		Body:      body,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, st.CreateTweet(context.Background(), tw))
	return tw
}
