package services

import (
	"context"
	"fmt"
	"io"

	"github.com/forumboard/server/internal/storage"
	"github.com/forumboard/server/types"
	"github.com/google/uuid"
)

// AttachmentRepository defines persistence operations for attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Get(ctx context.Context, id int) (types.Attachment, error)
	ListByConvo(ctx context.Context, convoID int) ([]types.Attachment, error)
}

// AttachmentService stores attachment files in object storage and their
// metadata in the database.
type AttachmentService struct {
	repo    AttachmentRepository
	storage *storage.Storage
}

func NewAttachmentService(repo AttachmentRepository, objectStorage *storage.Storage) *AttachmentService {
	return &AttachmentService{
		repo:    repo,
		storage: objectStorage,
	}
}

// Enabled reports whether an object-storage backend is configured.
func (s *AttachmentService) Enabled() bool {
	return s.storage != nil
}

// Upload writes the file to object storage and records its metadata.
// If the metadata insert fails the uploaded object is removed again so no
// orphan is left behind.
func (s *AttachmentService) Upload(ctx context.Context, convoID int, uploader, filename, contentType string, size int64, r io.Reader) (types.Attachment, error) {
	if s.storage == nil {
		return types.Attachment{}, fmt.Errorf("attachment storage is not configured")
	}

	objectKey := fmt.Sprintf("convo-%d/%s", convoID, uuid.NewString())
	if err := s.storage.Put(ctx, objectKey, r, size, contentType); err != nil {
		return types.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	created, err := s.repo.Create(ctx, types.Attachment{
		ConvoID:     convoID,
		Uploader:    uploader,
		Filename:    filename,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return types.Attachment{}, err
	}
	return created, nil
}

// Open returns the attachment metadata and a reader over its contents.
// The caller owns closing the reader.
func (s *AttachmentService) Open(ctx context.Context, id int) (types.Attachment, io.ReadCloser, error) {
	if s.storage == nil {
		return types.Attachment{}, nil, fmt.Errorf("attachment storage is not configured")
	}

	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}

	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, fmt.Errorf("open attachment object: %w", err)
	}
	return attachment, reader, nil
}

// ListByConvo returns a conversation's attachments in upload order.
func (s *AttachmentService) ListByConvo(ctx context.Context, convoID int) ([]types.Attachment, error) {
	return s.repo.ListByConvo(ctx, convoID)
}
