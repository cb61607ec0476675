package services

import (
	"context"
	"errors"
	"strings"

	"github.com/forumboard/server/types"
)

// ErrMissingTitle is returned when a conversation is created without a title.
var ErrMissingTitle = errors.New("conversation title is required")

// ConvoRepository defines persistence operations for conversations.
type ConvoRepository interface {
	List(ctx context.Context) ([]types.Convo, error)
	GetByID(ctx context.Context, id int) (types.Convo, error)
	GetByTitle(ctx context.Context, title string) (types.Convo, error)
	Create(ctx context.Context, title string) (types.Convo, error)
}

// ConvoService encapsulates conversation use-cases.
type ConvoService struct {
	repo ConvoRepository
}

func NewConvoService(repo ConvoRepository) *ConvoService {
	return &ConvoService{repo: repo}
}

// List returns all conversations in creation order.
func (s *ConvoService) List(ctx context.Context) ([]types.Convo, error) {
	return s.repo.List(ctx)
}

func (s *ConvoService) GetByID(ctx context.Context, id int) (types.Convo, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ConvoService) GetByTitle(ctx context.Context, title string) (types.Convo, error) {
	return s.repo.GetByTitle(ctx, title)
}

// Create makes a new conversation. Title uniqueness is left to the
// repository's constraint so concurrent creates stay race-safe.
func (s *ConvoService) Create(ctx context.Context, title string) (types.Convo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Convo{}, ErrMissingTitle
	}
	return s.repo.Create(ctx, title)
}
