package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
)

// =========================================================================
// HELPERS
// =========================================================================

const testSecret = "test-secret-at-least-16-chars!!"

// newTestAuthService returns an AuthService wired with fake dependencies.
// bcrypt runs at its minimum cost so the tests stay fast.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	return NewAuthService(repo, ts, auth.NewPasswordServiceForTest(bcrypt.MinCost), testLogger()), ts
}

var adminActor = model.Actor{ID: "admin-1", Role: model.RoleAdmin, Approved: true}

// =========================================================================
// Register / Login TESTS
// =========================================================================

func TestRegister_CreatesUnapprovedUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	user, err := svc.Register(context.Background(), "  aisha ", "correct horse")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "aisha", user.Username)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.False(t, user.Approved, "new accounts wait for approval")
	assert.NotEqual(t, "correct horse", user.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"short username", "ab", "password123", "username"},
		{"bad characters", "a b c", "password123", "username"},
		{"short password", "aisha", "short", "password"},
		{"password over bcrypt limit", "aisha", string(make([]byte, 73)), "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t, newFakeUserRepo())

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "aisha", "password456")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "already taken")
}

func TestRegister_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("database is on fire")
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "aisha", "password123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}

func TestLogin_IssuesTokenForUser(t *testing.T) {
	svc, ts := newTestAuthService(t, newFakeUserRepo())

	user, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "aisha", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)

	subject, err := ts.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)
	// GitHub-only account, no password hash.
	require.NoError(t, repo.CreateUser(context.Background(), &model.User{Username: "octocat", GitHubID: 1, Role: model.RoleUser}))

	tests := []struct {
		name, username, password string
	}{
		{"unknown user", "nobody", "password123"},
		{"wrong password", "aisha", "password124"},
		{"no password set", "octocat", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			require.ErrorIs(t, err, apperror.ErrUnauthenticated)
			assert.Equal(t, "invalid username or password", err.Error())
		})
	}
}

// =========================================================================
// LoginGitHub TESTS
// =========================================================================

func TestLoginGitHub_CreatesThenReuses(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	first, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "octocat", first.User.Username)
	assert.False(t, first.User.Approved)
	assert.NotEmpty(t, first.Token)

	second, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLoginGitHub_UsernameTaken(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.Register(context.Background(), "octocat", "password123")
	require.NoError(t, err)

	result, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "octocat-42", result.User.Username)
}

func TestLoginGitHub_NilUser(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.LoginGitHub(context.Background(), nil)
	assert.Error(t, err)
}

// =========================================================================
// ResolveActor / GetUser TESTS
// =========================================================================

func TestResolveActor_ReflectsCurrentRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	user, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	actor, err := svc.ResolveActor(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: user.ID, Role: model.RoleUser, Approved: false}, actor)

	_, err = svc.ApproveUser(context.Background(), adminActor, user.ID)
	require.NoError(t, err)
	_, err = svc.SetRole(context.Background(), adminActor, user.ID, model.RoleUlama)
	require.NoError(t, err)

	// No new token needed: the role is read on every request.
	actor, err = svc.ResolveActor(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: user.ID, Role: model.RoleUlama, Approved: true}, actor)
}

func TestResolveActor_UnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.ResolveActor(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetUser_EmptyID(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// ADMIN OPERATION TESTS
// =========================================================================

func TestApproveUser(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	user, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	t.Run("non-admin is refused", func(t *testing.T) {
		ulama := model.Actor{ID: "u-2", Role: model.RoleUlama, Approved: true}
		_, err := svc.ApproveUser(context.Background(), ulama, user.ID)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("admin approves", func(t *testing.T) {
		approved, err := svc.ApproveUser(context.Background(), adminActor, user.ID)
		require.NoError(t, err)
		assert.True(t, approved.Approved)
	})

	t.Run("second approval conflicts", func(t *testing.T) {
		_, err := svc.ApproveUser(context.Background(), adminActor, user.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.ApproveUser(context.Background(), adminActor, "ghost")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestSetRole(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	user, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   model.Actor
		userID  string
		role    model.Role
		wantErr error
	}{
		{"promote to ulama", adminActor, user.ID, model.RoleUlama, nil},
		{"promote to admin", adminActor, user.ID, model.RoleAdmin, nil},
		{"public is not assignable", adminActor, user.ID, model.RolePublic, apperror.ErrValidation},
		{"unknown role", adminActor, user.ID, model.Role("caliph"), apperror.ErrValidation},
		{"own role", adminActor, adminActor.ID, model.RoleUser, apperror.ErrValidation},
		{"ulama cannot", model.Actor{ID: "u-2", Role: model.RoleUlama, Approved: true}, user.ID, model.RoleUlama, apperror.ErrUnauthorized},
		{"unapproved admin cannot", model.Actor{ID: "a-2", Role: model.RoleAdmin}, user.ID, model.RoleUlama, apperror.ErrUnauthorized},
		{"unknown user", adminActor, "ghost", model.RoleUlama, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SetRole(context.Background(), tt.actor, tt.userID, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, got.Role)
		})
	}
}

func TestListUnapproved(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	_, err := svc.Register(context.Background(), "aisha", "password123")
	require.NoError(t, err)

	users, err := svc.ListUnapproved(context.Background(), adminActor, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "aisha", users[0].Username)

	_, err = svc.ListUnapproved(context.Background(), model.Anonymous(), 0, 0)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestEnsureAdmin(t *testing.T) {
	t.Run("creates missing admin", func(t *testing.T) {
		svc, _ := newTestAuthService(t, newFakeUserRepo())

		admin, err := svc.EnsureAdmin(context.Background(), "root", "password123")
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, admin.Role)
		assert.True(t, admin.Approved)

		_, err = svc.Login(context.Background(), "root", "password123")
		assert.NoError(t, err)
	})

	t.Run("promotes existing account and keeps its password", func(t *testing.T) {
		svc, _ := newTestAuthService(t, newFakeUserRepo())
		_, err := svc.Register(context.Background(), "root", "original-pass")
		require.NoError(t, err)

		admin, err := svc.EnsureAdmin(context.Background(), "root", "other-password")
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, admin.Role)
		assert.True(t, admin.Approved)

		_, err = svc.Login(context.Background(), "root", "original-pass")
		assert.NoError(t, err)
	})

	t.Run("idempotent", func(t *testing.T) {
		svc, _ := newTestAuthService(t, newFakeUserRepo())
		first, err := svc.EnsureAdmin(context.Background(), "root", "password123")
		require.NoError(t, err)
		second, err := svc.EnsureAdmin(context.Background(), "root", "password123")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})
}
