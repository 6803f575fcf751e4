package middleware

import (
	"context"
	"net/http"

	"example.com/chirp/internal/auth"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/response"
)

var logg = logger.New()

type contextKey string

const UserCtxKey = contextKey("user_id")

// TokenHeader carries the session token on requests and on the login response.
const TokenHeader = "auth-token"

// AuthToken rejects requests without a valid token in the auth-token header and
// stores the token's user id in the request context.
func AuthToken(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if token == "" {
				response.Error(w, http.StatusUnauthorized, response.MsgAccessDenied)
				return
			}

			userID, err := tm.Verify(token)
			if err != nil {
				logg.Debug("http/auth", "Rejected token: "+err.Error())
				response.Error(w, http.StatusUnauthorized, response.MsgSessionExpired)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserCtxKey, userID)
}

// Extracting user_id in handler
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserCtxKey).(string)
	return id, ok
}
