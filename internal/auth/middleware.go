package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/MediSynth-io/authkit/internal/handlers"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// AuthMiddleware creates a middleware that validates bearer tokens. A missing
// token is answered with 401 and a token that fails verification with 403.
func AuthMiddleware(tokenManager *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				handlers.WriteError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			claims, err := tokenManager.ValidateToken(token)
			if err != nil {
				handlers.WriteError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from "Bearer <token>".
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimsFromContext retrieves the verified claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*TokenClaims)
	return claims, ok
}
