package handlers

import (
	"io"
	"net/http"

	"localclaw/internal/common"
	"localclaw/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookHandlers handles HTTP requests for webhooks
type WebhookHandlers struct {
	billingService services.BillingService
	logger         *zap.Logger
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(billingService services.BillingService, logger *zap.Logger) *WebhookHandlers {
	return &WebhookHandlers{billingService: billingService, logger: logger}
}

// RazorpayWebhook handles POST /webhooks/razorpay
// @Summary Receive Razorpay billing events
// @Tags billing
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 of the raw body"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} common.ErrorResponse
// @Failure 500 {object} common.ErrorResponse
// @Router /webhooks/razorpay [post]
func (h *WebhookHandlers) RazorpayWebhook(c echo.Context) error {
	// The signature covers the exact bytes received
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return common.SendClientError(c, "Failed to read request body")
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	if signature == "" {
		return c.JSON(http.StatusBadRequest, common.CreateErrorResponse("INVALID_SIGNATURE", "Missing signature"))
	}

	if err := h.billingService.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
