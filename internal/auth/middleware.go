package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
)

// CookieName is the cookie that carries the access token for browsers.
const CookieName = "token"

// contextKey is unexported so only this package can set or read the actor.
type contextKey string

const actorKey contextKey = "actor"

// ActorResolver turns the user ID from a validated token into the caller's
// current Actor (role and approval as stored now, not as they were at login).
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (model.Actor, error)
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored by the middleware, or the
// anonymous public actor when the request carried no valid token.
func ActorFromContext(ctx context.Context) model.Actor {
	if actor, ok := ctx.Value(actorKey).(model.Actor); ok {
		return actor
	}
	return model.Anonymous()
}

// RequireAuth rejects requests without a valid token with 401.
//
// Note it only checks identity. Whether the identity may do the thing it
// asks for is decided by the services through Authorize, which is where the
// 403 responses come from. A failure to look the user up (storage down) is
// a 500, not a 401.
func RequireAuth(tokens *TokenService, actors ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolveRequest(r, tokens, actors)
			switch {
			case errors.Is(err, errActorLookup):
				lookupFailed(w, r, logger, err)
				return
			case err != nil:
				logger.Debug("rejecting unauthenticated request",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// OptionalAuth attaches the actor when a valid token is present and
// otherwise lets the request through as anonymous. A lookup failure is not
// downgraded to anonymous; it fails the request like RequireAuth does.
func OptionalAuth(tokens *TokenService, actors ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolveRequest(r, tokens, actors)
			switch {
			case errors.Is(err, errActorLookup):
				lookupFailed(w, r, logger, err)
				return
			case err == nil:
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func lookupFailed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.Error("resolving actor",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}` + "\n"))
}

var (
	errNoToken = errors.New("auth: no token presented")
	// errActorLookup marks a resolver failure other than "no such user".
	errActorLookup = errors.New("auth: resolving actor")
)

// TokenFromRequest reads the access token from the Authorization header
// ("Bearer <jwt>", used by API clients) or, failing that, from
// the HttpOnly cookie set at login.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			return "", errors.New("auth: malformed Authorization header")
		}
		return token, nil
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errNoToken
}

func resolveRequest(r *http.Request, tokens *TokenService, actors ActorResolver) (model.Actor, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return model.Actor{}, err
	}
	userID, err := tokens.Validate(token)
	if err != nil {
		return model.Actor{}, err
	}
	actor, err := actors.ResolveActor(r.Context(), userID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return model.Actor{}, err
	case err != nil:
		return model.Actor{}, fmt.Errorf("%w: %w", errActorLookup, err)
	}
	return actor, nil
}
