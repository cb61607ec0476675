package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forumboard/server/internal/auth"
	"github.com/forumboard/server/internal/store"
	"github.com/forumboard/server/types"
)

// Outcome tags the terminal state of an authentication attempt.
type Outcome string

const (
	// OutcomeRegistered means the username was unknown and a new account
	// was created from the submitted credentials.
	OutcomeRegistered Outcome = "registered"

	// OutcomeAuthenticated means the credentials matched an existing account.
	OutcomeAuthenticated Outcome = "authenticated"

	// OutcomeWrongPassword means the submitted password did not match.
	// No session may be established and no detail about whether the
	// username exists is revealed.
	OutcomeWrongPassword Outcome = "wrong_password"
)

// ErrMissingCredentials is returned when username or password is empty.
// No repository access happens in that case.
var ErrMissingCredentials = errors.New("username and password are required")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// AuthService runs the combined login/registration flow.
//
// Sign-up and sign-in are one submission: logging in with an unknown
// username claims it as a new account. That behavior sits behind
// allowImplicitRegistration so it can be turned off without touching the
// flow.
type AuthService struct {
	repo                      UserRepository
	allowImplicitRegistration bool
}

func NewAuthService(repo UserRepository, allowImplicitRegistration bool) *AuthService {
	return &AuthService{
		repo:                      repo,
		allowImplicitRegistration: allowImplicitRegistration,
	}
}

// Authenticate resolves a credential submission to a tagged outcome.
//
// Email is optional and only recorded on registration. Two concurrent
// registrations of the same username resolve to exactly one winner: the
// loser's insert fails on the unique constraint and is re-checked as an
// ordinary login against the winner's record.
func (s *AuthService) Authenticate(ctx context.Context, username, password, email string) (Outcome, types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return "", types.User{}, ErrMissingCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", types.User{}, fmt.Errorf("look up user: %w", err)
		}
		if !s.allowImplicitRegistration {
			// Behave exactly like a failed login so an unauthenticated
			// caller cannot probe which usernames exist.
			return OutcomeWrongPassword, types.User{}, nil
		}
		return s.register(ctx, username, password, email)
	}

	if !auth.VerifyPassword(password, user.Salt, user.PasswordHash) {
		return OutcomeWrongPassword, types.User{}, nil
	}
	return OutcomeAuthenticated, user, nil
}

func (s *AuthService) register(ctx context.Context, username, password, email string) (Outcome, types.User, error) {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return "", types.User{}, err
	}

	created, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: auth.HashPassword(password, salt),
		Salt:         salt,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			// Lost a registration race. Serialize against the winner's
			// record as a normal login attempt.
			return s.verifyExisting(ctx, username, password)
		}
		return "", types.User{}, fmt.Errorf("create user: %w", err)
	}
	return OutcomeRegistered, created, nil
}

func (s *AuthService) verifyExisting(ctx context.Context, username, password string) (Outcome, types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", types.User{}, fmt.Errorf("look up user: %w", err)
	}
	if !auth.VerifyPassword(password, user.Salt, user.PasswordHash) {
		return OutcomeWrongPassword, types.User{}, nil
	}
	return OutcomeAuthenticated, user, nil
}
