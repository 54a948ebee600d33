package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_USERNAME", "operator")
	t.Setenv("AUTH_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "test-secret")
	return NewAuthenticator()
}

func TestAuthenticateAndValidate(t *testing.T) {
	a := enabledAuthenticator(t)

	token, expiresAt, err := a.Authenticate("operator", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Greater(t, expiresAt, int64(0))

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	a := enabledAuthenticator(t)

	_, _, err := a.Authenticate("operator", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Authenticate("intruder", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateDisabled(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "")
	a := NewAuthenticator()

	assert.False(t, a.IsEnabled())
	_, _, err := a.Authenticate("operator", "hunter2")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	a := enabledAuthenticator(t)

	_, err := a.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBcryptHashAccepted(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.Len(t, hash, 60)

	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_USERNAME", "operator")
	t.Setenv("AUTH_PASSWORD", hash)
	t.Setenv("JWT_SECRET", "test-secret")

	a := NewAuthenticator()
	_, _, err = a.Authenticate("operator", "hunter2")
	assert.NoError(t, err)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewarePassthroughWhenDisabled(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "")
	h := Middleware(NewAuthenticator(), okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRequiresToken(t *testing.T) {
	a := enabledAuthenticator(t)
	h := Middleware(a, okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	a := enabledAuthenticator(t)
	h := Middleware(a, okHandler())

	token, _, err := a.Authenticate("operator", "hunter2")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Token accepted via query parameter too (for streams).
	req = httptest.NewRequest(http.MethodGet, "/stream/mjpeg?token="+token, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
