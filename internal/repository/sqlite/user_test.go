package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Username: "aisha", PasswordHash: "hash", Role: model.RoleUser}
	require.NoError(t, db.CreateUser(ctx, u))

	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	found, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "aisha", found.Username)
	assert.Equal(t, "hash", found.PasswordHash)
	assert.Equal(t, model.RoleUser, found.Role)
	assert.False(t, found.Approved)
	assert.Zero(t, found.GitHubID)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "bilal", model.RoleUser)

	err := db.CreateUser(context.Background(), &model.User{Username: "bilal", Role: model.RoleUser})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "error = %v, want ErrConflict", err)
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetUserByUsername(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestApproveUser_FlipsOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Username: "pending", Role: model.RoleUser}
	require.NoError(t, db.CreateUser(ctx, u))

	require.NoError(t, db.ApproveUser(ctx, u.ID))

	found, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, found.Approved)

	err = db.ApproveUser(ctx, u.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict, "second approval must be reported, not repeated")

	err = db.ApproveUser(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSetUserRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "scholar", model.RoleUser)

	require.NoError(t, db.SetUserRole(ctx, u.ID, model.RoleUlama))

	found, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUlama, found.Role)

	assert.ErrorIs(t, db.SetUserRole(ctx, "missing", model.RoleUlama), apperror.ErrNotFound)
}

func TestListUnapprovedUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "approved", model.RoleUser)
	for _, name := range []string{"first", "second"} {
		require.NoError(t, db.CreateUser(ctx, &model.User{Username: name, Role: model.RoleUser}))
	}

	users, err := db.ListUnapprovedUsers(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.False(t, u.Approved)
	}
}

func TestUpsertGitHubUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{Username: "octocat", GitHubID: 583231, Role: model.RoleUser}
	require.NoError(t, db.UpsertGitHubUser(ctx, first))
	require.NotEmpty(t, first.ID)

	// An admin promotes and approves the account in between sign-ins.
	require.NoError(t, db.ApproveUser(ctx, first.ID))
	require.NoError(t, db.SetUserRole(ctx, first.ID, model.RoleUlama))

	again := &model.User{Username: "octocat", GitHubID: 583231, Role: model.RoleUser}
	require.NoError(t, db.UpsertGitHubUser(ctx, again))

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, model.RoleUlama, again.Role, "sign-in must not reset the role")
	assert.True(t, again.Approved)
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM users WHERE github_id = ?`, 583231))
}
