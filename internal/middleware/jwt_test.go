package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"localclaw/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	mw, release, err := NewJWTMiddleware(JWTOptions{Secret: testSecret}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(release)

	e := echo.New()
	g := VersionRoute(e, "v1", mw)
	g.GET("/whoami", func(c echo.Context) error {
		tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
		if !ok {
			return common.SendUnauthorizedError(c)
		}
		return c.String(http.StatusOK, tenantID)
	})
	return e
}

func serve(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddlewareSetsTenant(t *testing.T) {
	e := newTestServer(t)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "tenant-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	rec := serve(e, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tenant-42", rec.Body.String())
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
}

func TestJWTMiddlewareRejects(t *testing.T) {
	e := newTestServer(t)
	cases := map[string]string{
		"missing header": "",
		"wrong secret":   "Bearer " + signToken(t, "other", jwt.RegisteredClaims{Subject: "tenant-42"}),
		"expired": "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{
			Subject:   "tenant-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"no subject": "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{Issuer: "idp"}),
		"not bearer": "Basic dXNlcjpwYXNz",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"Unauthorized","code":"UNAUTHORIZED"}`, rec.Body.String())
		})
	}
}

func TestNewJWTMiddlewareRequiresKey(t *testing.T) {
	_, _, err := NewJWTMiddleware(JWTOptions{}, zap.NewNop())
	assert.Error(t, err)
}
