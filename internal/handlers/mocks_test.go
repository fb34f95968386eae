package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"localclaw/internal/common"
	"localclaw/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
)

type MockDeployService struct {
	mock.Mock
}

func (m *MockDeployService) Deploy(ctx context.Context, tenantID string, req *models.DeployRequest) (*models.Deployment, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

type MockAdmissionService struct {
	mock.Mock
}

func (m *MockAdmissionService) CheckAndMaybeCharge(ctx context.Context, tenantID string, charge bool) (*models.AdmissionDecision, error) {
	args := m.Called(ctx, tenantID, charge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdmissionDecision), args.Error(1)
}

type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Checkout(ctx context.Context, tenantID string, checkoutType models.CheckoutType) (*models.Checkout, error) {
	args := m.Called(ctx, tenantID, checkoutType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Checkout), args.Error(1)
}

func (m *MockBillingService) HandleWebhook(ctx context.Context, rawData []byte, signature string) error {
	args := m.Called(ctx, rawData, signature)
	return args.Error(0)
}

// newContext builds an echo context for target, authenticated as tenant when non-empty
func newContext(e *echo.Echo, method, target, body, tenant string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tenant != "" {
		req = req.WithContext(common.WithTenantID(req.Context(), tenant))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
