package middleware

import (
	"errors"
	"time"

	"localclaw/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const tokenContextKey = "user"

// JWTOptions selects how tenant tokens are verified. JWKSURL wins over Secret.
type JWTOptions struct {
	Secret          string
	JWKSURL         string
	RefreshInterval time.Duration
}

// NewJWTMiddleware verifies bearer tokens and stores the `sub` claim as the
// tenant id in the request context. The returned func releases the JWKS
// refresher, if any.
func NewJWTMiddleware(opts JWTOptions, logger *zap.Logger) (echo.MiddlewareFunc, func(), error) {
	cfg := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.Debug("Rejected bearer token", zap.Error(err))
			return common.SendUnauthorizedError(c)
		},
	}
	release := func() {}

	switch {
	case opts.JWKSURL != "":
		interval := opts.RefreshInterval
		if interval <= 0 {
			interval = time.Hour
		}
		jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
			RefreshInterval:   interval,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("Failed to refresh JWKS", zap.Error(err))
			},
		})
		if err != nil {
			return nil, nil, err
		}
		cfg.KeyFunc = jwks.Keyfunc
		release = jwks.EndBackground
	case opts.Secret != "":
		cfg.SigningKey = []byte(opts.Secret)
		cfg.SigningMethod = jwt.SigningMethodHS256.Name
	default:
		return nil, nil, errors.New("jwt secret or jwks url is required")
	}

	verify := echojwt.WithConfig(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(tenantFromToken(next))
	}, release, nil
}

func tenantFromToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return common.SendUnauthorizedError(c)
		}
		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || claims.Subject == "" {
			return common.SendUnauthorizedError(c)
		}

		ctx := common.WithTenantID(c.Request().Context(), claims.Subject)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
