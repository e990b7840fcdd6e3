package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sevigo/archnet/internal/core"
)

type userKey struct{}

// TokenParser resolves a bearer token to the acting user's email.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// WithUser stores the acting user on the context.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey{}, email)
}

// UserFromContext returns the acting user set by RequireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userKey{}).(string)
	return email, ok && email != ""
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser rejects requests without a valid session token.
func RequireUser(tokens TokenParser, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := tokens.ParseToken(bearerToken(r))
			if err != nil {
				logger.Debug("rejecting unauthenticated request", "path", r.URL.Path, "error", err)
				writeError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), email)))
		})
	}
}

// RequireWorker guards the endpoints called by job queues and payment relays.
// An empty configured token disables those endpoints.
func RequireWorker(workerToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if workerToken == "" {
				writeError(w, logger, fmt.Errorf("%w: worker endpoints are disabled", core.ErrNotFound))
				return
			}
			got := r.Header.Get("X-Worker-Token")
			if got == "" {
				got = bearerToken(r)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(workerToken)) != 1 {
				writeError(w, logger, fmt.Errorf("%w: bad worker token", core.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
