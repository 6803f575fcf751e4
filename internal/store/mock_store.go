package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/chirp/internal/models"
	"github.com/google/uuid"
)

// MockStore is an in-memory StoreInterface for tests.
type MockStore struct {
	mu         sync.Mutex
	Users      map[string]*models.User
	Tweets     []*models.Tweet // insertion order
	ShouldFail bool            // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users: make(map[string]*models.User),
	}
}

var errMockFail = errors.New("mock: store failure")

func (m *MockStore) Close() {}

// --- Users ---

func (m *MockStore) CreateUser(_ context.Context, user models.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errMockFail
	}
	for _, u := range m.Users {
		if u.Email == user.Email {
			return "", ErrEmailExists
		}
	}
	user.ID = uuid.NewString()
	user.Followers = []string{}
	user.Following = []string{}
	user.Tweets = 0
	m.Users[user.ID] = &user
	return user.ID, nil
}

func (m *MockStore) GetUserByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errMockFail
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errMockFail
	}
	for _, u := range m.Users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MockStore) UpdateUser(_ context.Context, id string, upd models.UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	u, ok := m.Users[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Email != "" && upd.Email != u.Email {
		for _, other := range m.Users {
			if other.Email == upd.Email {
				return ErrEmailExists
			}
		}
		u.Email = upd.Email
	}
	if upd.Name != "" {
		u.Name = upd.Name
	}
	if upd.Password != "" {
		u.Password = upd.Password
	}
	return nil
}

func (m *MockStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if _, ok := m.Users[id]; !ok {
		return ErrNotFound
	}
	delete(m.Users, id)
	return nil
}

func (m *MockStore) Follow(_ context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if userID == targetID {
		return ErrSelfFollow
	}
	u, ok := m.Users[userID]
	if !ok {
		return ErrNotFound
	}
	t, ok := m.Users[targetID]
	if !ok {
		return ErrNotFound
	}
	if !contains(u.Following, targetID) {
		u.Following = append(u.Following, targetID)
	}
	if !contains(t.Followers, userID) {
		t.Followers = append(t.Followers, userID)
	}
	return nil
}

// --- Tweets ---

func (m *MockStore) CreateTweet(_ context.Context, tweet models.Tweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	author, ok := m.Users[tweet.AuthorID]
	if !ok {
		return ErrNotFound
	}
	tweet.Favoriters = append([]string{}, tweet.Favoriters...)
	tweet.FavoritesCount = len(tweet.Favoriters)
	m.Tweets = append(m.Tweets, &tweet)
	author.Tweets++
	return nil
}

func (m *MockStore) find(authorID string, ref models.TweetRef) (int, *models.Tweet) {
	for i, t := range m.Tweets {
		if t.AuthorID == authorID && ref.Matches(*t) {
			return i, t
		}
	}
	return -1, nil
}

func (m *MockStore) UpdateTweet(_ context.Context, authorID string, ref models.TweetRef, body string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	_, t := m.find(authorID, ref)
	if t == nil {
		return ErrNotFound
	}
	t.Body = body
	t.UpdatedAt = at
	return nil
}

func (m *MockStore) DeleteTweet(_ context.Context, authorID string, ref models.TweetRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	i, _ := m.find(authorID, ref)
	if i < 0 {
		return ErrNotFound
	}
	m.Tweets = append(m.Tweets[:i], m.Tweets[i+1:]...)
	if u, ok := m.Users[authorID]; ok {
		u.Tweets--
	}
	return nil
}

func (m *MockStore) GetUserTweets(_ context.Context, authorID string, sort SortSpec, pageNo int) ([]models.TweetView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	var ts []models.Tweet
	for _, t := range m.Tweets {
		if t.AuthorID == authorID {
			ts = append(ts, copyTweet(t))
		}
	}
	if sort.Field == "_id" {
		if sort.Desc {
			for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
				ts[i], ts[j] = ts[j], ts[i]
			}
		}
	} else {
		sortTweets(ts, sort)
	}
	return views(paginate(ts, pageNo), false), nil
}

func (m *MockStore) GetFollowingFeed(_ context.Context, userID string, pageNo int) ([]models.TweetView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	u, ok := m.Users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	var ts []models.Tweet
	for _, t := range m.Tweets {
		if contains(u.Following, t.AuthorID) {
			ts = append(ts, copyTweet(t))
		}
	}
	sortTweets(ts, SortSpec{Field: "createdAt", Desc: true})
	return views(paginate(ts, pageNo), true), nil
}

func (m *MockStore) ToggleLike(_ context.Context, userID, authorID string, ref models.TweetRef) (models.Tweet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Tweet{}, false, errMockFail
	}
	_, t := m.find(authorID, ref)
	if t == nil {
		return models.Tweet{}, false, ErrNotFound
	}
	liked := !contains(t.Favoriters, userID)
	if liked {
		t.Favoriters = append(t.Favoriters, userID)
		t.FavoritesCount++
	} else {
		t.Favoriters = remove(t.Favoriters, userID)
		t.FavoritesCount--
	}
	return copyTweet(t), liked, nil
}

func (m *MockStore) SyncTweetCount(_ context.Context, authorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	u, ok := m.Users[authorID]
	if !ok {
		return ErrNotFound
	}
	n := 0
	for _, t := range m.Tweets {
		if t.AuthorID == authorID {
			n++
		}
	}
	u.Tweets = n
	return nil
}

func (m *MockStore) SyncLikeCount(_ context.Context, authorID string, ref models.TweetRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	_, t := m.find(authorID, ref)
	if t == nil {
		return ErrNotFound
	}
	t.FavoritesCount = len(t.Favoriters)
	return nil
}

func copyUser(u *models.User) models.User {
	c := *u
	c.Followers = append([]string{}, u.Followers...)
	c.Following = append([]string{}, u.Following...)
	return c
}

func copyTweet(t *models.Tweet) models.Tweet {
	c := *t
	c.Favoriters = append([]string{}, t.Favoriters...)
	return c
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errMockStoreFail = errors.New("mock store failure")

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(context.Context, models.User) (string, error) {
	return "", errMockStoreFail
}

func (m *MockStoreFail) GetUserByID(context.Context, string) (models.User, error) {
	return models.User{}, errMockStoreFail
}

func (m *MockStoreFail) GetUserByEmail(context.Context, string) (models.User, error) {
	return models.User{}, errMockStoreFail
}

func (m *MockStoreFail) UpdateUser(context.Context, string, models.UserUpdate) error {
	return errMockStoreFail
}

func (m *MockStoreFail) DeleteUser(context.Context, string) error {
	return errMockStoreFail
}

func (m *MockStoreFail) Follow(context.Context, string, string) error {
	return errMockStoreFail
}

func (m *MockStoreFail) CreateTweet(context.Context, models.Tweet) error {
	return errMockStoreFail
}

func (m *MockStoreFail) UpdateTweet(context.Context, string, models.TweetRef, string, time.Time) error {
	return errMockStoreFail
}

func (m *MockStoreFail) DeleteTweet(context.Context, string, models.TweetRef) error {
	return errMockStoreFail
}

func (m *MockStoreFail) GetUserTweets(context.Context, string, SortSpec, int) ([]models.TweetView, error) {
	return nil, errMockStoreFail
}

func (m *MockStoreFail) GetFollowingFeed(context.Context, string, int) ([]models.TweetView, error) {
	return nil, errMockStoreFail
}

func (m *MockStoreFail) ToggleLike(context.Context, string, string, models.TweetRef) (models.Tweet, bool, error) {
	return models.Tweet{}, false, errMockStoreFail
}

func (m *MockStoreFail) SyncTweetCount(context.Context, string) error {
	return errMockStoreFail
}

func (m *MockStoreFail) SyncLikeCount(context.Context, string, models.TweetRef) error {
	return errMockStoreFail
}
