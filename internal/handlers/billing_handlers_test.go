package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"localclaw/internal/models"
	"localclaw/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestCheckout(t *testing.T) {
	e := echo.New()
	billing := &MockBillingService{}
	billing.Test(t)
	defer billing.AssertExpectations(t)
	h := NewBillingHandlers(billing, zap.NewNop())

	billing.On("Checkout", mock.Anything, "tenant-1", models.CheckoutPass).
		Return(&models.Checkout{ID: "order_1", Type: models.CheckoutPass}, nil).Once()
	c, rec := newContext(e, http.MethodPost, "/v1/billing/checkout", `{"type":"pass"}`, "tenant-1")
	assert.NoError(t, h.Checkout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"order_1","type":"pass"}`, rec.Body.String())

	billing.On("Checkout", mock.Anything, "tenant-1", models.CheckoutType("lifetime")).
		Return(nil, &services.ValidationError{Field: "type", Message: "unsupported"}).Once()
	c, rec = newContext(e, http.MethodPost, "/v1/billing/checkout", `{"type":"lifetime"}`, "tenant-1")
	assert.NoError(t, h.Checkout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRazorpayWebhook(t *testing.T) {
	e := echo.New()
	billing := &MockBillingService{}
	billing.Test(t)
	defer billing.AssertExpectations(t)
	h := NewWebhookHandlers(billing, zap.NewNop())

	body := `{"event":"payment.captured"}`
	send := func(signature string) (int, string) {
		c, rec := newContext(e, http.MethodPost, "/webhooks/razorpay", body, "")
		if signature != "" {
			c.Request().Header.Set("X-Razorpay-Signature", signature)
		}
		assert.NoError(t, h.RazorpayWebhook(c))
		return rec.Code, rec.Body.String()
	}

	billing.On("HandleWebhook", mock.Anything, []byte(body), "good").Return(nil).Once()
	code, resp := send("good")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true}`, resp)

	code, _ = send("")
	assert.Equal(t, http.StatusBadRequest, code)

	billing.On("HandleWebhook", mock.Anything, []byte(body), "bad").Return(services.ErrInvalidSignature).Once()
	code, _ = send("bad")
	assert.Equal(t, http.StatusBadRequest, code)

	billing.On("HandleWebhook", mock.Anything, []byte(body), "good").Return(errors.New("db down")).Once()
	code, _ = send("good")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHealthHandlers(t *testing.T) {
	e := echo.New()
	var dockerErr error
	h := NewHealthHandlers(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"docker":   func(ctx context.Context) error { return dockerErr },
	}, 0, zap.NewNop())

	c, rec := newContext(e, http.MethodGet, "/health", "", "")
	assert.NoError(t, h.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	c, rec = newContext(e, http.MethodGet, "/health/ready", "", "")
	assert.NoError(t, h.ReadinessCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"docker":"healthy"`)

	dockerErr = errors.New("daemon unreachable")
	c, rec = newContext(e, http.MethodGet, "/health/ready", "", "")
	assert.NoError(t, h.ReadinessCheck(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"docker":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"database":"healthy"`)
}
