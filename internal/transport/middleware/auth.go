package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/transport"
	"github.com/frahmantamala/attendance-management/pkg/logger"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Authenticate requires a bearer token and stores the caller in the request
// context. Browsers cannot set headers on EventSource or WebSocket
// requests, so the access_token query parameter is accepted as well.
func Authenticate(tokens TokenValidator, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := base.ExtractTokenFromHeader(r)
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				base.WriteAppError(w, internal.NewUnauthorizedError("Missing bearer token", internal.ErrCodeInvalidToken))
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				base.HandleServiceError(w, err)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), claims.User())
			ctx = logger.With(ctx, "userID", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
