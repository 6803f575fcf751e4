package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/models"
)

var logg = logger.New()

// PageSize is the fixed number of tweets per timeline page.
const PageSize = 10

var (
	ErrNotFound    = errors.New("not found")
	ErrEmailExists = errors.New("email already exists")
	ErrInvalidSort = errors.New("invalid sort key")
	ErrSelfFollow  = errors.New("cannot follow yourself")
	ErrConflict    = errors.New("concurrent update conflict")
)

// --- Interfaces ---

type StoreInterface interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
	Follow(ctx context.Context, userID, targetID string) error

	CreateTweet(ctx context.Context, tweet models.Tweet) error
	UpdateTweet(ctx context.Context, authorID string, ref models.TweetRef, body string, at time.Time) error
	DeleteTweet(ctx context.Context, authorID string, ref models.TweetRef) error
	GetUserTweets(ctx context.Context, authorID string, sort SortSpec, pageNo int) ([]models.TweetView, error)
	GetFollowingFeed(ctx context.Context, userID string, pageNo int) ([]models.TweetView, error)
	ToggleLike(ctx context.Context, userID, authorID string, ref models.TweetRef) (models.Tweet, bool, error)

	// Repairs applied by the reconciler worker.
	SyncTweetCount(ctx context.Context, authorID string) error
	SyncLikeCount(ctx context.Context, authorID string, ref models.TweetRef) error

	Close()
}

// New opens the backend selected by cfg.StoreDriver.
func New(ctx context.Context, cfg *config.Config) (StoreInterface, error) {
	switch cfg.StoreDriver {
	case "", "mongo":
		return NewMongo(ctx, cfg)
	case "cassandra":
		return NewCassandra(cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// --- Paging ---

// MaxPage is the highest page number served. Larger values are clamped to it,
// which keeps offset+PageSize inside a CQL int LIMIT.
const MaxPage = math.MaxInt32/PageSize - 1

// NormalizePage maps any page number below 1 to the first page and anything
// above MaxPage to MaxPage.
func NormalizePage(pageNo int) int {
	if pageNo <= 0 {
		return 1
	}
	if pageNo > MaxPage {
		return MaxPage
	}
	return pageNo
}

func pageOffset(pageNo int) int {
	return (NormalizePage(pageNo) - 1) * PageSize
}

func paginate[T any](items []T, pageNo int) []T {
	off := pageOffset(pageNo)
	if off < 0 || off >= len(items) {
		return []T{}
	}
	end := off + PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

// --- Sorting ---

// SortSpec orders an author's own timeline. Field "_id" means insertion order.
type SortSpec struct {
	Field string
	Desc  bool
}

var sortFields = map[string]bool{
	"_id":            true,
	"createdAt":      true,
	"updatedAt":      true,
	"favoritesCount": true,
	"body":           true,
}

// ParseSort accepts a field name optionally prefixed with "-" for descending
// order. The empty string selects insertion order.
func ParseSort(s string) (SortSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortSpec{Field: "_id"}, nil
	}
	spec := SortSpec{Field: s}
	if strings.HasPrefix(s, "-") {
		spec = SortSpec{Field: s[1:], Desc: true}
	}
	if !sortFields[spec.Field] {
		return SortSpec{}, fmt.Errorf("%w: %s", ErrInvalidSort, s)
	}
	return spec, nil
}

// sortTweets orders ts in place. Insertion order is approximated by creation
// time, with the tweet id breaking ties.
func sortTweets(ts []models.Tweet, spec SortSpec) {
	less := func(a, b models.Tweet) int {
		switch spec.Field {
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "favoritesCount":
			return a.FavoritesCount - b.FavoritesCount
		case "body":
			return strings.Compare(a.Body, b.Body)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(ts, func(i, j int) bool {
		c := less(ts[i], ts[j])
		if c == 0 {
			c = strings.Compare(ts[i].ID, ts[j].ID)
		}
		if spec.Desc {
			return c > 0
		}
		return c < 0
	})
}

func views(ts []models.Tweet, withAuthor bool) []models.TweetView {
	out := make([]models.TweetView, 0, len(ts))
	for _, t := range ts {
		v := t.View()
		if !withAuthor {
			v.AuthorID = ""
		}
		out = append(out, v)
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func remove(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

var (
	_ StoreInterface = (*MongoStore)(nil)
	_ StoreInterface = (*CassandraStore)(nil)
	_ StoreInterface = (*MockStore)(nil)
	_ StoreInterface = (*MockStoreFail)(nil)
)
