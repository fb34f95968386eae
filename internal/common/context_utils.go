package common

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
)

// ErrorResponse is the flat error body every endpoint returns
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: message, Code: code}
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", fmt.Sprintf("%s: %s", field, message)))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource)))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized"))
}

// SendQuotaExceeded sends the distinct quota rejection response
func SendQuotaExceeded(c echo.Context) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse("QUOTA_EXCEEDED", "Daily free limit reached. Upgrade to Pro."))
}

// WithTenantID stores the authenticated tenant id in ctx
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantIDFromContext extracts the tenant ID from the request context
func GetTenantIDFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(string)
	return tenantID, ok && tenantID != ""
}
