package handlers

import (
	"errors"
	"net/http"

	"localclaw/internal/common"
	"localclaw/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError maps service errors onto the flat error body
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return common.SendUnauthorizedError(c)
	case errors.As(err, &verr):
		return common.SendValidationError(c, verr.Field, verr.Message)
	case errors.Is(err, services.ErrQuotaExceeded):
		return common.SendQuotaExceeded(c)
	case errors.Is(err, services.ErrTenantNotFound):
		return common.SendNotFoundError(c, "Tenant")
	case errors.Is(err, services.ErrAgentNotFound):
		return common.SendNotFoundError(c, "Agent")
	case errors.Is(err, services.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, common.CreateErrorResponse("INVALID_SIGNATURE", "Invalid signature"))
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return common.SendServerError(c, err.Error())
	}
}

// tenantID reads the authenticated tenant set by the JWT middleware
func tenantID(c echo.Context) string {
	id, _ := common.GetTenantIDFromContext(c.Request().Context())
	return id
}
