package services

import (
	"context"
	"errors"
	"time"

	"localclaw/internal/models"
	"localclaw/internal/repositories"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	passPlanName         = "30-Day Pass"
	subscriptionPlanName = "Monthly Auto-Pilot"
	subscriptionPrice    = 999
	subscriptionCycles   = 12
)

// BillingService turns checkout requests and Razorpay events into plan changes
type BillingService interface {
	Checkout(ctx context.Context, tenantID string, checkoutType models.CheckoutType) (*models.Checkout, error)
	HandleWebhook(ctx context.Context, rawData []byte, signature string) error
}

// BillingOptions carries plan constants from configuration
type BillingOptions struct {
	PlanID         string
	PassAmount     int
	PassDays       int
	InvoiceTimeout time.Duration
}

type billingService struct {
	razorpay  RazorpayService
	usageRepo repositories.UsageRepository
	notifier  Notifier
	clock     clockwork.Clock
	opts      BillingOptions
	logger    *zap.Logger
}

func NewBillingService(
	razorpay RazorpayService,
	usageRepo repositories.UsageRepository,
	notifier Notifier,
	clock clockwork.Clock,
	opts BillingOptions,
	logger *zap.Logger,
) BillingService {
	if opts.PassAmount <= 0 {
		opts.PassAmount = 120000
	}
	if opts.PassDays <= 0 {
		opts.PassDays = 30
	}
	if opts.InvoiceTimeout <= 0 {
		opts.InvoiceTimeout = 30 * time.Second
	}
	return &billingService{
		razorpay:  razorpay,
		usageRepo: usageRepo,
		notifier:  notifier,
		clock:     clock,
		opts:      opts,
		logger:    logger,
	}
}

func (s *billingService) Checkout(ctx context.Context, tenantID string, checkoutType models.CheckoutType) (*models.Checkout, error) {
	if tenantID == "" {
		return nil, ErrUnauthorized
	}

	switch checkoutType {
	case models.CheckoutSubscription:
		id, err := s.razorpay.CreateSubscription(s.opts.PlanID, tenantID, subscriptionCycles)
		if err != nil {
			return nil, err
		}
		return &models.Checkout{ID: id, Type: models.CheckoutSubscription}, nil
	case models.CheckoutPass:
		id, err := s.razorpay.CreateOrder(s.opts.PassAmount, "INR", tenantID)
		if err != nil {
			return nil, err
		}
		return &models.Checkout{ID: id, Type: models.CheckoutPass}, nil
	default:
		return nil, invalid("type", "must be %q or %q", models.CheckoutSubscription, models.CheckoutPass)
	}
}

func (s *billingService) HandleWebhook(ctx context.Context, rawData []byte, signature string) error {
	event, err := s.razorpay.WebhookVerify(rawData, signature)
	if err != nil {
		return err
	}

	s.logger.Info("Billing webhook received", zap.String("event", event.Event))

	switch event.Event {
	case EventPaymentCaptured:
		payment := event.Payment()
		if payment == nil || payment.Notes["userId"] == "" {
			s.logger.Warn("Payment event carries no tenant id", zap.String("event", event.Event))
			return nil
		}
		tenantID := payment.Notes["userId"]
		expires := s.clock.Now().UTC().AddDate(0, 0, s.opts.PassDays)
		if err := s.applyPlanChange(ctx, models.PlanChange{TenantID: tenantID, PremiumExpiresAt: &expires}); err != nil {
			return err
		}
		s.logger.Info("Premium pass activated",
			zap.String("tenant_id", tenantID),
			zap.Time("premium_expires_at", expires),
		)
		s.dispatchInvoice(tenantID, passPlanName, float64(payment.Amount)/100, payment.ID)

	case EventSubscriptionActivated:
		sub := event.Subscription()
		if sub == nil || sub.Notes["userId"] == "" {
			s.logger.Warn("Subscription event carries no tenant id", zap.String("event", event.Event))
			return nil
		}
		tenantID := sub.Notes["userId"]
		plan := models.PlanPro
		subID := sub.ID
		if err := s.applyPlanChange(ctx, models.PlanChange{TenantID: tenantID, Plan: &plan, SubscriptionID: &subID}); err != nil {
			return err
		}
		s.logger.Info("Subscription activated", zap.String("tenant_id", tenantID), zap.String("subscription_id", subID))
		s.dispatchInvoice(tenantID, subscriptionPlanName, subscriptionPrice, subID)

	case EventSubscriptionCancelled, EventSubscriptionHalted:
		sub := event.Subscription()
		if sub == nil || sub.Notes["userId"] == "" {
			s.logger.Warn("Subscription event carries no tenant id", zap.String("event", event.Event))
			return nil
		}
		tenantID := sub.Notes["userId"]
		plan := models.PlanFree
		if err := s.applyPlanChange(ctx, models.PlanChange{TenantID: tenantID, Plan: &plan}); err != nil {
			return err
		}
		s.logger.Info("Subscription ended", zap.String("tenant_id", tenantID), zap.String("event", event.Event))

	default:
		s.logger.Debug("Ignoring billing event", zap.String("event", event.Event))
	}
	return nil
}

// applyPlanChange treats an unknown tenant as acknowledged so the provider stops retrying
func (s *billingService) applyPlanChange(ctx context.Context, change models.PlanChange) error {
	err := s.usageRepo.UpdatePlan(ctx, change)
	if errors.Is(err, repositories.ErrUsageNotFound) {
		s.logger.Warn("Billing event for unknown tenant", zap.String("tenant_id", change.TenantID))
		return nil
	}
	return err
}

// dispatchInvoice sends the receipt in the background with its own deadline
func (s *billingService) dispatchInvoice(tenantID, planName string, amount float64, txID string) {
	issuedAt := s.clock.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.InvoiceTimeout)
		defer cancel()

		usage, err := s.usageRepo.GetByTenantID(ctx, tenantID)
		if err != nil {
			s.logger.Warn("Failed to load tenant for invoice", zap.String("tenant_id", tenantID), zap.Error(err))
			return
		}
		if usage.Email == nil || *usage.Email == "" {
			s.logger.Info("Tenant has no email, skipping invoice", zap.String("tenant_id", tenantID))
			return
		}

		name := "Agent"
		if usage.Name != nil && *usage.Name != "" {
			name = *usage.Name
		}
		invoice := models.Invoice{
			TenantID:      tenantID,
			Email:         *usage.Email,
			Name:          name,
			PlanName:      planName,
			Amount:        amount,
			Currency:      "INR",
			TransactionID: txID,
			IssuedAt:      issuedAt,
		}
		if err := s.notifier.SendInvoice(ctx, invoice); err != nil {
			s.logger.Warn("Failed to send invoice", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}()
}
