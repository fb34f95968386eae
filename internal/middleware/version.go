package middleware

import (
	"github.com/labstack/echo/v4"
)

// Version is stamped at build time via -ldflags "-X localclaw/internal/middleware.Version=..."
var Version = "dev"

// VersionHeader adds the API and build version to every response
func VersionHeader(apiVersion string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", apiVersion)
			c.Response().Header().Set("X-LocalClaw-Version", Version)
			return next(c)
		}
	}
}

// VersionRoute creates a version-specific route group
func VersionRoute(e *echo.Echo, apiVersion string, m ...echo.MiddlewareFunc) *echo.Group {
	group := e.Group("/"+apiVersion, VersionHeader(apiVersion))
	group.Use(m...)
	return group
}
