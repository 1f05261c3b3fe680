package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
)

type fakeResolver struct {
	actors map[string]model.Actor
	err    error
}

func (f *fakeResolver) ResolveActor(_ context.Context, userID string) (model.Actor, error) {
	if f.err != nil {
		return model.Actor{}, f.err
	}
	a, ok := f.actors[userID]
	if !ok {
		return model.Actor{}, apperror.NotFound("user", userID)
	}
	return a, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// actorEcho writes the role of the actor found in the request context.
var actorEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	a := ActorFromContext(r.Context())
	_, _ = w.Write([]byte(string(a.Role) + ":" + a.ID))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	resolver := &fakeResolver{actors: map[string]model.Actor{
		"u1": {ID: "u1", Role: model.RoleUlama, Approved: true},
	}}
	handler := RequireAuth(ts, resolver, discardLogger())(actorEcho)

	good, _ := ts.Generate("u1")
	ghost, _ := ts.Generate("deleted")

	cases := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, http.StatusOK, "ulama:u1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: good}) }, http.StatusOK, "ulama:u1"},
		{"no token", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token "+good) }, http.StatusUnauthorized, ""},
		{"unknown user", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth_FallsBackToAnonymous(t *testing.T) {
	ts := newTestTokenService(t)
	handler := OptionalAuth(ts, &fakeResolver{}, discardLogger())(actorEcho)

	req := httptest.NewRequest(http.MethodGet, "/api/verses/1/1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public:", rec.Body.String())
}

func TestAuth_StorageFailureIsInternalError(t *testing.T) {
	ts := newTestTokenService(t)
	resolver := &fakeResolver{err: fmt.Errorf("sqlite: getting user: %w", errors.New("database is locked"))}
	token, _ := ts.Generate("u1")

	middlewares := map[string]func(http.Handler) http.Handler{
		"required": RequireAuth(ts, resolver, discardLogger()),
		"optional": OptionalAuth(ts, resolver, discardLogger()),
	}
	for name, mw := range middlewares {
		t.Run(name, func(t *testing.T) {
			called := false
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), "internal_error")
			assert.NotContains(t, rec.Body.String(), "locked")
			assert.False(t, called)
		})
	}
}

func TestActorFromContext_Default(t *testing.T) {
	a := ActorFromContext(context.Background())
	assert.True(t, a.IsAnonymous())
	assert.Equal(t, model.RolePublic, a.Role)
}
