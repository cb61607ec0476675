package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when an insert loses the race for a username.
var ErrUsernameTaken = errors.New("username already taken")

// ErrTitleTaken is returned when an insert loses the race for a convo title.
var ErrTitleTaken = errors.New("conversation title already taken")

// ErrConvoNotFound is returned when a post references an unknown conversation.
var ErrConvoNotFound = errors.New("conversation not found")

// Postgres error codes the repositories map onto sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}
