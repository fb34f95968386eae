package services

import (
	"context"

	"localclaw/internal/models"
	"localclaw/internal/repositories"

	"github.com/stretchr/testify/mock"
)

type MockUsageRepository struct {
	mock.Mock
	// Persisted records what the last Mutate callback asked to write
	Persisted *models.TenantUsage
}

func (m *MockUsageRepository) GetByTenantID(ctx context.Context, tenantID string) (*models.TenantUsage, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantUsage), args.Error(1)
}

func (m *MockUsageRepository) Mutate(ctx context.Context, tenantID string, fn repositories.MutateFunc) (*models.TenantUsage, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	usage := args.Get(0).(*models.TenantUsage)
	changed, err := fn(usage)
	if err != nil {
		return nil, err
	}
	if changed {
		persisted := *usage
		m.Persisted = &persisted
	}
	return usage, args.Error(1)
}

func (m *MockUsageRepository) UpdatePlan(ctx context.Context, change models.PlanChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
	sent chan models.Invoice
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{sent: make(chan models.Invoice, 4)}
}

func (m *MockNotifier) SendInvoice(ctx context.Context, invoice models.Invoice) error {
	args := m.Called(ctx, invoice)
	m.sent <- invoice
	return args.Error(0)
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

type MockReaperService struct {
	mock.Mock
}

func (m *MockReaperService) ReclaimOrphans(ctx context.Context, exclude string) ReapReport {
	args := m.Called(ctx, exclude)
	return args.Get(0).(ReapReport)
}

type MockModelService struct {
	mock.Mock
}

func (m *MockModelService) EnsureModel(ctx context.Context, name string) {
	m.Called(ctx, name)
}

type MockProvisionerService struct {
	mock.Mock
}

func (m *MockProvisionerService) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) Store(ctx context.Context, agentID string, doc []byte) error {
	args := m.Called(ctx, agentID, doc)
	return args.Error(0)
}

type MockRazorpayService struct {
	mock.Mock
}

func (m *MockRazorpayService) CreateSubscription(planID, tenantID string, cycles int) (string, error) {
	args := m.Called(planID, tenantID, cycles)
	return args.String(0), args.Error(1)
}

func (m *MockRazorpayService) CreateOrder(amountPaise int, currency, tenantID string) (string, error) {
	args := m.Called(amountPaise, currency, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockRazorpayService) WebhookVerify(rawData []byte, signature string) (*WebhookEvent, error) {
	args := m.Called(rawData, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookEvent), args.Error(1)
}

type MockResourceCreator struct {
	mock.Mock
}

func (m *MockResourceCreator) Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error) {
	args := m.Called(data, extraHeaders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
