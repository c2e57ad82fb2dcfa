package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, tm *TokenManager) http.Handler {
	return AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", claims.Email)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware(t *testing.T) {
	tm := newTestManager(t)
	token, err := tm.GenerateToken(Claims{UserID: 1, Email: "a@x.com"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"no header", "", http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"scheme only", "Bearer", http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"tampered", "Bearer " + token + "x", http.StatusForbidden, `{"error":"Invalid or expired token"}`},
		{"garbage", "Bearer abc.def.ghi", http.StatusForbidden, `{"error":"Invalid or expired token"}`},
		{"valid", "Bearer " + token, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(t, tm).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, "a@x.com", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestClaimsFromContextMissing(t *testing.T) {
	_, ok := ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
