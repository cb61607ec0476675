package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forumboard/server/types"
)

// AttachmentRepository handles persistence for attachment metadata.
// The file contents themselves live in object storage.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (convo_id, "user", filename, object_key, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.ConvoID,
		attachment.Uploader,
		attachment.Filename,
		attachment.ObjectKey,
		attachment.ContentType,
		attachment.Size,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Attachment{}, ErrConvoNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, id int) (types.Attachment, error) {
	const query = `
		SELECT id, convo_id, "user", filename, object_key, content_type, size, created_at
		FROM attachments
		WHERE id = $1`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.ConvoID,
		&attachment.Uploader,
		&attachment.Filename,
		&attachment.ObjectKey,
		&attachment.ContentType,
		&attachment.Size,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

// ListByConvo returns a conversation's attachments in upload order.
func (r *AttachmentRepository) ListByConvo(ctx context.Context, convoID int) ([]types.Attachment, error) {
	const query = `
		SELECT id, convo_id, "user", filename, object_key, content_type, size, created_at
		FROM attachments
		WHERE convo_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, convoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.ConvoID,
			&attachment.Uploader,
			&attachment.Filename,
			&attachment.ObjectKey,
			&attachment.ContentType,
			&attachment.Size,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}
