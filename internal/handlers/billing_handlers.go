package handlers

import (
	"net/http"

	"localclaw/internal/common"
	"localclaw/internal/models"
	"localclaw/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BillingHandlers handles HTTP requests for checkout
type BillingHandlers struct {
	billingService services.BillingService
	logger         *zap.Logger
}

// NewBillingHandlers creates a new billing handlers instance
func NewBillingHandlers(billingService services.BillingService, logger *zap.Logger) *BillingHandlers {
	return &BillingHandlers{billingService: billingService, logger: logger}
}

// CheckoutRequest selects the kind of checkout to create
type CheckoutRequest struct {
	Type models.CheckoutType `json:"type"`
}

// Checkout handles POST /v1/billing/checkout
// @Summary Create a subscription or one-time pass checkout
// @Tags billing
// @Accept json
// @Produce json
// @Param request body CheckoutRequest true "Checkout type"
// @Success 200 {object} models.Checkout
// @Failure 400 {object} common.ErrorResponse
// @Failure 401 {object} common.ErrorResponse
// @Failure 500 {object} common.ErrorResponse
// @Security BearerAuth
// @Router /v1/billing/checkout [post]
func (h *BillingHandlers) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}

	checkout, err := h.billingService.Checkout(c.Request().Context(), tenantID(c), req.Type)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, checkout)
}
