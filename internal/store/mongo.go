package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection  = "users"
	tweetsCollection = "tweets"
)

// MongoStore keeps users and tweets in two collections. Relations (followers,
// following, favoriters, tweet author) hold user ids as hex strings.
type MongoStore struct {
	client       *mongo.Client
	users        *mongo.Collection
	tweets       *mongo.Collection
	transactions bool
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Followers []string           `bson:"followers"`
	Following []string           `bson:"following"`
	Tweets    int                `bson:"tweets"`
}

func (d userDoc) model() models.User {
	return models.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Password:  d.Password,
		Followers: nonNil(d.Followers),
		Following: nonNil(d.Following),
		Tweets:    d.Tweets,
	}
}

type tweetDoc struct {
	OID          primitive.ObjectID `bson:"_id,omitempty"`
	models.Tweet `bson:",inline"`
}

// NewMongo connects to MongoDB and ensures the indexes the store relies on.
func NewMongo(ctx context.Context, cfg *config.Config) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetTimeout(cfg.MongoTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	s := &MongoStore{
		client:       client,
		users:        db.Collection(usersCollection),
		tweets:       db.Collection(tweetsCollection),
		transactions: cfg.MongoTransactions,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logg.Info("store", "Connected to MongoDB (host anonymized)")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	if _, err := s.tweets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "tweetId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create tweets indexes: %w", err)
	}
	return nil
}

// withTx runs fn inside a multi-document transaction when enabled (requires a
// replica set). Otherwise fn runs as independent single-document writes.
func (s *MongoStore) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Close disconnects the client.
func (s *MongoStore) Close() {
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		logg.Error("store", "Error disconnecting MongoDB", err)
		return
	}
	logg.Info("store", "MongoDB client disconnected")
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
