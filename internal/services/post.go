package services

import (
	"context"
	"errors"
	"strings"

	"github.com/forumboard/server/types"
)

// ErrMissingText is returned when a post is submitted with an empty body.
var ErrMissingText = errors.New("message text is required")

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post types.Post) (types.Post, error)
	ListByConvo(ctx context.Context, convoID int) ([]types.Post, error)
	CountByConvo(ctx context.Context, convoID int) (int, error)
}

// PostService encapsulates message-ledger use-cases.
//
// The author passed to Create must already be the authenticated session's
// user; the ledger does not re-verify identity.
type PostService struct {
	repo PostRepository
}

func NewPostService(repo PostRepository) *PostService {
	return &PostService{repo: repo}
}

// Create appends a post to a conversation.
func (s *PostService) Create(ctx context.Context, convoID int, author, text string) (types.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Post{}, ErrMissingText
	}
	return s.repo.Create(ctx, types.Post{
		ConvoID: convoID,
		Author:  author,
		Text:    text,
	})
}

// ListByConvo returns a conversation's posts in ascending creation order.
func (s *PostService) ListByConvo(ctx context.Context, convoID int) ([]types.Post, error) {
	return s.repo.ListByConvo(ctx, convoID)
}

// CountByConvo returns the number of posts in a conversation.
func (s *PostService) CountByConvo(ctx context.Context, convoID int) (int, error) {
	return s.repo.CountByConvo(ctx, convoID)
}
