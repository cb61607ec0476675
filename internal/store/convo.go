package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forumboard/server/types"
)

// ConvoRepository handles persistence for conversations.
type ConvoRepository struct {
	db *sql.DB
}

func NewConvoRepository(db *sql.DB) *ConvoRepository {
	return &ConvoRepository{db: db}
}

// List returns all conversations in creation order.
func (r *ConvoRepository) List(ctx context.Context) ([]types.Convo, error) {
	const query = `
		SELECT id, title, created_at
		FROM convos
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convos := make([]types.Convo, 0)
	for rows.Next() {
		var convo types.Convo
		if err := rows.Scan(&convo.ID, &convo.Title, &convo.CreatedAt); err != nil {
			return nil, err
		}
		convos = append(convos, convo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return convos, nil
}

func (r *ConvoRepository) GetByID(ctx context.Context, id int) (types.Convo, error) {
	const query = `
		SELECT id, title, created_at
		FROM convos
		WHERE id = $1`
	var convo types.Convo
	err := r.db.QueryRowContext(ctx, query, id).Scan(&convo.ID, &convo.Title, &convo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Convo{}, ErrNotFound
		}
		return types.Convo{}, err
	}
	return convo, nil
}

func (r *ConvoRepository) GetByTitle(ctx context.Context, title string) (types.Convo, error) {
	const query = `
		SELECT id, title, created_at
		FROM convos
		WHERE title = $1`
	var convo types.Convo
	err := r.db.QueryRowContext(ctx, query, title).Scan(&convo.ID, &convo.Title, &convo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Convo{}, ErrNotFound
		}
		return types.Convo{}, err
	}
	return convo, nil
}

// Create inserts a new conversation. Title uniqueness rides on the database
// constraint so that two concurrent creates with the same title resolve to
// one winner and one ErrTitleTaken.
func (r *ConvoRepository) Create(ctx context.Context, title string) (types.Convo, error) {
	convo := types.Convo{
		Title:     title,
		CreatedAt: time.Now(),
	}

	const query = `
		INSERT INTO convos (title, created_at)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, convo.Title, convo.CreatedAt).Scan(&convo.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Convo{}, ErrTitleTaken
		}
		return types.Convo{}, err
	}
	return convo, nil
}
