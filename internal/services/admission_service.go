package services

import (
	"context"
	"errors"
	"fmt"

	"localclaw/internal/metrics"
	"localclaw/internal/models"
	"localclaw/internal/repositories"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// UsageDateLayout is the calendar-day format stored in last_usage_date (UTC)
const UsageDateLayout = "2006-01-02"

// AdmissionService gates deployments and heartbeats on the daily free-tier budget
type AdmissionService interface {
	// CheckAndMaybeCharge applies the lazy daily reset, then either charges one
	// quantum (charge=true) or only reports the remaining budget.
	CheckAndMaybeCharge(ctx context.Context, tenantID string, charge bool) (*models.AdmissionDecision, error)
}

type admissionService struct {
	usageRepo    repositories.UsageRepository
	clock        clockwork.Clock
	dailySeconds int
	quantum      int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewAdmissionService(
	usageRepo repositories.UsageRepository,
	clock clockwork.Clock,
	dailySeconds, quantum int,
	m *metrics.Metrics,
	logger *zap.Logger,
) AdmissionService {
	return &admissionService{
		usageRepo:    usageRepo,
		clock:        clock,
		dailySeconds: dailySeconds,
		quantum:      quantum,
		metrics:      m,
		logger:       logger,
	}
}

func (s *admissionService) CheckAndMaybeCharge(ctx context.Context, tenantID string, charge bool) (*models.AdmissionDecision, error) {
	if tenantID == "" {
		return nil, ErrUnauthorized
	}

	now := s.clock.Now().UTC()
	today := now.Format(UsageDateLayout)
	var decision models.AdmissionDecision

	_, err := s.usageRepo.Mutate(ctx, tenantID, func(u *models.TenantUsage) (bool, error) {
		if u.IsPremium(now) {
			decision = models.AdmissionDecision{Allowed: true, Unlimited: true}
			return false, nil
		}

		changed := false
		if u.UsageDate() != today {
			u.SecondsUsedToday = 0
			u.LastUsageDate = &today
			changed = true
		}

		if u.SecondsUsedToday >= s.dailySeconds {
			decision = models.AdmissionDecision{Allowed: false, Remaining: 0}
			return changed, nil
		}

		if !charge {
			decision = models.AdmissionDecision{Allowed: true, Remaining: s.dailySeconds - u.SecondsUsedToday}
			return changed, nil
		}

		u.SecondsUsedToday += s.quantum
		u.LastHeartbeatAt = &now
		// the tick that reaches the budget is charged and reported blocked, never
		// allowed with a negative remainder
		if u.SecondsUsedToday >= s.dailySeconds {
			decision = models.AdmissionDecision{Allowed: false, Remaining: 0}
		} else {
			decision = models.AdmissionDecision{Allowed: true, Remaining: s.dailySeconds - u.SecondsUsedToday}
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUsageNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}

	s.record(charge, &decision)
	return &decision, nil
}

func (s *admissionService) record(charge bool, d *models.AdmissionDecision) {
	path := "check"
	if charge {
		path = "charge"
	}
	result := "blocked"
	switch {
	case d.Unlimited:
		result = "unlimited"
	case d.Allowed:
		result = "allowed"
	}
	s.metrics.AdmissionDecisions.WithLabelValues(path, result).Inc()
}
