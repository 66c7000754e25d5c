package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"device-entitlement-backend/pkg/config"
	"device-entitlement-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, claims *models.TokenClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func accessClaims(userID string) *models.TokenClaims {
	now := time.Now()
	return &models.TokenClaims{
		UserID: userID,
		Email:  userID + "@example.com",
		Type:   "access",
		Iat:    now.Unix(),
		Exp:    now.Add(time.Hour).Unix(),
	}
}

func authTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{JWTSecret: testJWTSecret}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User-ID", user.ID)
		w.WriteHeader(http.StatusOK)
	})
	return AuthMiddleware(cfg)(next)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	handler := authTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, accessClaims("user-1"), testJWTSecret))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Header().Get("X-User-ID"))
}

func TestAuthMiddlewareRejections(t *testing.T) {
	handler := authTestServer(t)

	expired := accessClaims("user-1")
	expired.Exp = time.Now().Add(-time.Hour).Unix()

	refresh := accessClaims("user-1")
	refresh.Type = "refresh"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, accessClaims("user-1"), "other-secret")},
		{"expired token", "Bearer " + signToken(t, expired, testJWTSecret)},
		{"refresh token not accepted", "Bearer " + signToken(t, refresh, testJWTSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := RequireUser(req.Context())
	assert.Error(t, err)
}
