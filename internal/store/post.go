package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/forumboard/server/types"
)

// PostRepository handles persistence for posts. Posts are append-only:
// there is no update or delete.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create appends a post to a conversation. The foreign key on convo_id
// guarantees every post references an existing conversation; a violation
// maps to ErrConvoNotFound and leaves the ledger unchanged.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	post.CreatedAt = time.Now()

	const query = `
		INSERT INTO posts (convo_id, "user", text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.ConvoID,
		post.Author,
		post.Text,
		post.CreatedAt,
	).Scan(&post.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Post{}, ErrConvoNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// ListByConvo returns the posts of a conversation in ascending creation
// order. An unknown conversation yields ErrConvoNotFound, which is distinct
// from a known conversation with no posts.
func (r *PostRepository) ListByConvo(ctx context.Context, convoID int) ([]types.Post, error) {
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM convos WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsQuery, convoID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConvoNotFound
	}

	const listQuery = `
		SELECT id, convo_id, "user", text, created_at
		FROM posts
		WHERE convo_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, listQuery, convoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		var post types.Post
		if err := rows.Scan(
			&post.ID,
			&post.ConvoID,
			&post.Author,
			&post.Text,
			&post.CreatedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// CountByConvo returns the number of posts in a conversation.
func (r *PostRepository) CountByConvo(ctx context.Context, convoID int) (int, error) {
	const query = `SELECT COUNT(1) FROM posts WHERE convo_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, convoID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
