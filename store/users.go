package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devmarvs/yaade/auth"
	"github.com/devmarvs/yaade/db"
)

// User is an account. PasswordHash is never serialized.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Data         json.RawMessage `json:"data"`
}

// CreateUser inserts a user. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, data json.RawMessage) (User, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return User{}, err
	}
	user := User{ID: newID(), Username: username, PasswordHash: passwordHash, Data: json.RawMessage(payload)}

	err = s.repo.InTx(ctx, func(tx db.Repository) error {
		taken, err := exists(ctx, tx, "SELECT 1 FROM users WHERE username = ?", username)
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}
		query, args, err := db.Insert("users").
			Columns("id", "username", "password_hash", "data", "created_at").
			Values(user.ID, user.Username, user.PasswordHash, payload, s.now().UnixNano()).
			Build()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return User{}, fmt.Errorf("create user %q: %w", username, err)
	}
	return user, nil
}

// UserByID loads a user by id.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	return s.findUser(ctx, "id = ?", id)
}

// UserByName loads a user by username.
func (s *Store) UserByName(ctx context.Context, username string) (User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *Store) findUser(ctx context.Context, condition string, arg any) (User, error) {
	query, args, err := db.Select("id", "username", "password_hash", "data").
		From("users").
		Where(condition, arg).
		Build()
	if err != nil {
		return User{}, err
	}

	var user User
	var data string
	row, cancel := s.repo.QueryRow(ctx, query, args...)
	defer cancel()
	err = row.Scan(&user.ID, &user.Username, &user.PasswordHash, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	user.Data = json.RawMessage(data)
	return user, nil
}

// UpdatePassword replaces the stored hash of a user.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query, args, err := db.Update("users").
		Set("password_hash", passwordHash).
		Where("id = ?", id).
		Build()
	if err != nil {
		return err
	}
	result, err := s.repo.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	row, cancel := s.repo.QueryRow(ctx, "SELECT COUNT(*) FROM users")
	defer cancel()
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Users adapts the store to auth.UserLookup.
func (s *Store) Users() auth.UserLookup {
	return auth.UserLookupFunc(func(ctx context.Context, username string) (auth.User, error) {
		user, err := s.UserByName(ctx, username)
		if errors.Is(err, ErrNotFound) {
			return auth.User{}, auth.ErrUserNotFound
		}
		if err != nil {
			return auth.User{}, err
		}
		return auth.User{ID: user.ID, Username: user.Username, PasswordHash: user.PasswordHash}, nil
	})
}
