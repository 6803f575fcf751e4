package store

import (
	"context"
	"fmt"

	"example.com/chirp/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// --- User operations ---

func (s *MongoStore) CreateUser(ctx context.Context, user models.User) (string, error) {
	doc := userDoc{
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.Password,
		Followers: []string{},
		Following: []string{},
	}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrEmailExists
		}
		logg.Error("store", "Failed to create user", err)
		return "", fmt.Errorf("insert user: %w", err)
	}

	oid, _ := res.InsertedID.(primitive.ObjectID)
	logg.Info("store", "User created successfully (email anonymized)")
	return oid.Hex(), nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.User{}, err
	}
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return models.User{}, notFound(err)
	}
	return doc.model(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc); err != nil {
		return models.User{}, notFound(err)
	}
	return doc.model(), nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.D{}
	if upd.Name != "" {
		set = append(set, bson.E{Key: "name", Value: upd.Name})
	}
	if upd.Email != "" {
		set = append(set, bson.E{Key: "email", Value: upd.Email})
	}
	if upd.Password != "" {
		set = append(set, bson.E{Key: "password", Value: upd.Password})
	}
	if len(set) == 0 {
		_, err := s.GetUserByID(ctx, id)
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		logg.Error("store", "Failed to update user", err)
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user document only; tweets are kept.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		logg.Error("store", "Failed to delete user", err)
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Follow operations ---

// Follow adds targetID to the user's following set and userID to the target's
// followers set. Both are $addToSet, so repeating a follow is a no-op.
func (s *MongoStore) Follow(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfFollow
	}
	uid, err := objectID(userID)
	if err != nil {
		return err
	}
	tid, err := objectID(targetID)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(ctx context.Context) error {
		res, err := s.users.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: uid}},
			bson.D{{Key: "$addToSet", Value: bson.D{{Key: "following", Value: targetID}}}},
		)
		if err != nil {
			return fmt.Errorf("add following: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}

		res, err = s.users.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: tid}},
			bson.D{{Key: "$addToSet", Value: bson.D{{Key: "followers", Value: userID}}}},
		)
		if err != nil {
			return fmt.Errorf("add follower: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return err
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}
