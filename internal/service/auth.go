package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// AuthService is the identity shell: registration, login and the admin
// operations on accounts. It also resolves token subjects to Actors for the
// HTTP middleware.
//
// The core only ever consumes the {id, role, approved} triple; everything
// about passwords and GitHub stays in here and in package auth.
//
// tokens may be nil for callers that authenticate but never issue tokens
// (corpusctl); Login and LoginGitHub need it.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

var _ auth.ActorResolver = (*AuthService)(nil)

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the authenticated user with a freshly issued token so
// the handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates an unapproved account with the "user" role. It stays
// powerless until an admin approves it.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be 3 to %d letters, digits, '.', '_' or '-'", MaxUsernameLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", "username is already taken")
		}
		s.logger.Error("failed to register user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: registering %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords produce the same Unauthenticated error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated()
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}
	if user.PasswordHash == "" {
		// GitHub-only account.
		return nil, apperror.Unauthenticated()
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthenticated()
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	return user, nil
}

// Login authenticates and issues an access token.
//
// Unapproved accounts may log in: they can see their own profile and
// pending status, and Authorize refuses them everything else.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user, "password")
}

// LoginGitHub finds or creates the account linked to a GitHub identity.
//
// A new account gets the GitHub login as username; if a password account
// already holds that name, the GitHub ID is appended to keep it unique.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{Username: gh.Login, GitHubID: gh.ID, Role: model.RoleUser}
	err := s.users.UpsertGitHubUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		user = &model.User{
			Username: fmt.Sprintf("%s-%d", gh.Login, gh.ID),
			GitHubID: gh.ID,
			Role:     model.RoleUser,
		}
		err = s.users.UpsertGitHubUser(ctx, user)
	}
	if err != nil {
		s.logger.Error("failed to upsert GitHub user",
			slog.Int64("githubID", gh.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: upserting GitHub user %d: %w", gh.ID, err)
	}
	return s.issue(user, "github")
}

func (s *AuthService) issue(user *model.User, method string) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, errors.New("service/auth: no token service configured")
	}
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("method", method),
		slog.Bool("approved", user.Approved),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// ResolveActor loads the current role and approval of userID.
func (s *AuthService) ResolveActor(ctx context.Context, userID string) (model.Actor, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return model.Actor{}, err
	}
	return user.Actor(), nil
}

// GetUser returns an account by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// ApproveUser flips an account to approved. Admin only; approving twice is a
// Conflict.
func (s *AuthService) ApproveUser(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.users.ApproveUser(ctx, userID); err != nil {
		return nil, err
	}
	s.logger.Info("user approved",
		slog.String("userID", userID),
		slog.String("by", actor.ID),
	)
	return s.users.GetUserByID(ctx, userID)
}

// SetRole changes an account's role. Admin only. An admin cannot change
// their own role, so the last admin cannot lock everyone out by accident.
func (s *AuthService) SetRole(ctx context.Context, actor model.Actor, userID string, role model.Role) (*model.User, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if role == model.RolePublic || !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of user, ulama, admin")
	}
	if userID == actor.ID {
		return nil, apperror.ValidationFailed("userId", "admins cannot change their own role")
	}
	if err := s.users.SetUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.logger.Info("user role changed",
		slog.String("userID", userID),
		slog.String("role", string(role)),
		slog.String("by", actor.ID),
	)
	return s.users.GetUserByID(ctx, userID)
}

// ListUnapproved lists accounts waiting for approval, oldest first.
func (s *AuthService) ListUnapproved(ctx context.Context, actor model.Actor, limit, offset int) ([]model.User, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.ListUnapprovedUsers(ctx, listOptions(limit, offset))
}

// EnsureAdmin makes sure an approved admin account with the given username
// exists, creating it with password if needed. An existing account is
// promoted and approved but its password is left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		hash, err := s.passwords.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("service/auth: %w", err)
		}
		user = &model.User{
			Username:     username,
			PasswordHash: hash,
			Role:         model.RoleAdmin,
			Approved:     true,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating admin %q: %w", username, err)
		}
		s.logger.Info("bootstrap admin created", slog.String("username", username))
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("service/auth: looking up admin %q: %w", username, err)
	}

	if user.Role != model.RoleAdmin {
		if err := s.users.SetUserRole(ctx, user.ID, model.RoleAdmin); err != nil {
			return nil, fmt.Errorf("service/auth: promoting %q: %w", username, err)
		}
		user.Role = model.RoleAdmin
	}
	if !user.Approved {
		if err := s.users.ApproveUser(ctx, user.ID); err != nil && !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: approving %q: %w", username, err)
		}
		user.Approved = true
	}
	return user, nil
}
