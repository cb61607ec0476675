package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forumboard/server/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT id, username, email, password, salt, created_at
		FROM users
		WHERE username = $1`
	var user types.User
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&email,
		&user.PasswordHash,
		&user.Salt,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Email = email.String
	return user, nil
}

// Create inserts a new user. Username uniqueness is enforced by the
// database constraint, never by a check-then-insert: a concurrent insert
// of the same username resolves to exactly one winner, and the loser
// receives ErrUsernameTaken.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.CreatedAt = time.Now()

	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}

	const query = `
		INSERT INTO users (username, email, password, salt, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		email,
		user.PasswordHash,
		user.Salt,
		user.CreatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, err
	}
	return user, nil
}
