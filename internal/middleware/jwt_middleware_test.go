package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h echo.HandlerFunc, mws []echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/", h, mws...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	token, err := j.GenerateToken(7, "buyer@store.test", "user")
	require.NoError(t, err)

	ok := func(c echo.Context) error {
		cl := GetClaims(c)
		return c.String(http.StatusOK, cl.Email)
	}

	rec := serve(t, ok, []echo.MiddlewareFunc{j.Middleware()}, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer@store.test", rec.Body.String())

	rec = serve(t, ok, []echo.MiddlewareFunc{j.Middleware()}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, ok, []echo.MiddlewareFunc{j.Middleware()}, "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewJWT("other-secret", time.Hour).GenerateToken(7, "buyer@store.test", "user")
	require.NoError(t, err)
	rec = serve(t, ok, []echo.MiddlewareFunc{j.Middleware()}, "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOnly(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	mws := []echo.MiddlewareFunc{j.Middleware(), AdminOnly}

	user, err := j.GenerateToken(7, "buyer@store.test", "user")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(t, ok, mws, "Bearer "+user).Code)

	admin, err := j.GenerateToken(1, "ops@store.test", "admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, serve(t, ok, mws, "Bearer "+admin).Code)
}
