package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/messagely/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account with join_at and last_login_at set to now.
// A taken username surfaces as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.JoinAt = now
	user.LastLoginAt = now

	const query = `
		INSERT INTO users (username, password_hash, first_name, last_name, phone, join_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.JoinAt,
		user.LastLoginAt,
	); err != nil {
		return types.User{}, classifyError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT username, password_hash, first_name, last_name, phone, join_at, last_login_at
		FROM users
		WHERE username = $1`
	var user types.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.JoinAt,
		&user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// TouchLogin stamps last_login_at for the user.
func (r *UserRepository) TouchLogin(ctx context.Context, username string) error {
	const query = `
		UPDATE users
		SET last_login_at = current_timestamp
		WHERE username = $1`
	result, err := r.db.ExecContext(ctx, query, username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the public profile of every user, ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]types.Profile, error) {
	const query = `
		SELECT username, first_name, last_name, phone
		FROM users
		ORDER BY username`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]types.Profile, 0)
	for rows.Next() {
		var profile types.Profile
		if err := rows.Scan(
			&profile.Username,
			&profile.FirstName,
			&profile.LastName,
			&profile.Phone,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}
