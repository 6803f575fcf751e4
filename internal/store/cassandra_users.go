package store

import (
	"context"
	"fmt"

	"example.com/chirp/internal/models"
	"github.com/gocql/gocql"
)

// --- User operations ---

// CreateUser reserves the email with a lightweight transaction before writing
// the user row, so two registrations with one email cannot both succeed.
func (s *CassandraStore) CreateUser(ctx context.Context, user models.User) (string, error) {
	id := gocql.TimeUUID().String()

	applied, err := s.Session.Query(`
		INSERT INTO users_by_email (email, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		user.Email, id,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		logg.Error("store", "Failed to create email entry", err)
		return "", fmt.Errorf("reserve email: %w", err)
	}
	if !applied {
		return "", ErrEmailExists
	}

	err = s.Session.Query(`
		INSERT INTO users (user_id, name, email, password, followers, following, tweets)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		id, user.Name, user.Email, user.Password, []string{}, []string{},
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return "", fmt.Errorf("insert user: %w", err)
	}

	logg.Info("store", "User created successfully (email anonymized)")
	return id, nil
}

func (s *CassandraStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.Session.Query(`
		SELECT user_id, name, email, password, followers, following, tweets
		FROM users WHERE user_id = ?`,
		id,
	).WithContext(ctx).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Followers, &u.Following, &u.Tweets)
	if err != nil {
		return models.User{}, cqlNotFound(err)
	}
	u.Followers = nonNil(u.Followers)
	u.Following = nonNil(u.Following)
	return u, nil
}

func (s *CassandraStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_email WHERE email = ?`,
		email,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		return models.User{}, cqlNotFound(err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *CassandraStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	cur, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	name, email, password := cur.Name, cur.Email, cur.Password
	if upd.Name != "" {
		name = upd.Name
	}
	if upd.Password != "" {
		password = upd.Password
	}
	emailChanged := upd.Email != "" && upd.Email != cur.Email
	if emailChanged {
		email = upd.Email
		applied, err := s.Session.Query(`
			INSERT INTO users_by_email (email, user_id)
			VALUES (?, ?) IF NOT EXISTS`,
			email, id,
		).WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return fmt.Errorf("reserve email: %w", err)
		}
		if !applied {
			return ErrEmailExists
		}
	}

	err = s.Session.Query(`
		UPDATE users SET name = ?, email = ?, password = ? WHERE user_id = ?`,
		name, email, password, id,
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to update user", err)
		return fmt.Errorf("update user: %w", err)
	}

	if emailChanged {
		if err := s.Session.Query(
			`DELETE FROM users_by_email WHERE email = ?`, cur.Email,
		).WithContext(ctx).Exec(); err != nil {
			logg.Error("store", "Failed to release old email", err)
			return fmt.Errorf("release email: %w", err)
		}
	}
	return nil
}

// DeleteUser removes the user and its email entry; tweets are kept.
func (s *CassandraStore) DeleteUser(ctx context.Context, id string) error {
	cur, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM users WHERE user_id = ?`, id)
	batch.Query(`DELETE FROM users_by_email WHERE email = ?`, cur.Email)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete user", err)
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// --- Follow operations ---

// Follow writes both sides in one logged batch; set addition makes a repeated
// follow a no-op.
func (s *CassandraStore) Follow(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfFollow
	}
	for _, id := range []string{userID, targetID} {
		if _, err := s.GetUserByID(ctx, id); err != nil {
			return err
		}
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`UPDATE users SET following = following + ? WHERE user_id = ?`, []string{targetID}, userID)
	batch.Query(`UPDATE users SET followers = followers + ? WHERE user_id = ?`, []string{userID}, targetID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return fmt.Errorf("follow: %w", err)
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

// addTweetCount applies delta to the user's tweet count with compare-and-set.
func (s *CassandraStore) addTweetCount(ctx context.Context, userID string, delta int) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var n int
		if err := s.Session.Query(
			`SELECT tweets FROM users WHERE user_id = ?`, userID,
		).WithContext(ctx).Scan(&n); err != nil {
			return cqlNotFound(err)
		}
		applied, err := s.Session.Query(
			`UPDATE users SET tweets = ? WHERE user_id = ? IF tweets = ?`,
			n+delta, userID, n,
		).WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return fmt.Errorf("update tweet count: %w", err)
		}
		if applied {
			return nil
		}
	}
	return ErrConflict
}
