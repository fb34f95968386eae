package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"localclaw/internal/caching"
	"localclaw/internal/metrics"
	"localclaw/internal/models"

	"github.com/labstack/gommon/random"
	"go.uber.org/zap"
)

const (
	agentIDPrefix  = "agent-"
	suffixLength   = 6
	maxSlugLength  = 32
	maxAgentIDSize = 63
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	agentIDSuffix = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// DeployService runs the full deployment flow for one tenant request
type DeployService interface {
	Deploy(ctx context.Context, tenantID string, req *models.DeployRequest) (*models.Deployment, error)
}

// DeployOptions carries the settings the deployment flow needs beyond its collaborators
type DeployOptions struct {
	GatewayToken  string
	PublicBaseURL string
	NamePrefixes  []string
}

type deployService struct {
	admission   AdmissionService
	reaper      ReaperService
	models      ModelService
	synthesizer *ConfigSynthesizer
	provisioner ProvisionerService
	archive     ArchiveService
	locker      caching.AgentLocker
	opts        DeployOptions
	newSuffix   func() string
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewDeployService(
	admission AdmissionService,
	reaper ReaperService,
	modelSvc ModelService,
	synthesizer *ConfigSynthesizer,
	provisioner ProvisionerService,
	archive ArchiveService,
	locker caching.AgentLocker,
	opts DeployOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) DeployService {
	return &deployService{
		admission:   admission,
		reaper:      reaper,
		models:      modelSvc,
		synthesizer: synthesizer,
		provisioner: provisioner,
		archive:     archive,
		locker:      locker,
		opts:        opts,
		newSuffix: func() string {
			return random.String(suffixLength, random.Lowercase, random.Numeric)
		},
		metrics: m,
		logger:  logger,
	}
}

// Slug lowercases name and joins its alphanumeric runs with dashes
func Slug(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	return s
}

func (s *deployService) Deploy(ctx context.Context, tenantID string, req *models.DeployRequest) (*models.Deployment, error) {
	deployment, err := s.deploy(ctx, tenantID, req)
	s.metrics.Deployments.WithLabelValues(outcome(err)).Inc()
	return deployment, err
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTenantNotFound), errors.As(err, &verr):
		return "rejected"
	default:
		return "failed"
	}
}

func (s *deployService) deploy(ctx context.Context, tenantID string, req *models.DeployRequest) (*models.Deployment, error) {
	if tenantID == "" {
		return nil, ErrUnauthorized
	}

	provider, ok := models.ParseProvider(req.Provider)
	if !ok {
		return nil, invalid("provider", "must be one of local, openai, gemini")
	}

	agentID, err := s.agentID(req)
	if err != nil {
		return nil, err
	}

	decision, err := s.admission.CheckAndMaybeCharge(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrQuotaExceeded
	}

	doc, err := s.synthesizer.Synthesize(agentID, provider, req.APIKey, req.Channels)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}
	defer unlock()

	logger := s.logger.With(zap.String("tenant_id", tenantID), zap.String("agent_id", agentID))

	report := s.reaper.ReclaimOrphans(ctx, agentID)
	if len(report.Failed) > 0 {
		logger.Warn("orphan cleanup incomplete", zap.Strings("failed", report.Failed))
	}

	if provider == models.ProviderLocal {
		s.models.EnsureModel(ctx, s.synthesizer.LocalModel())
	}

	port, err := s.provisioner.Provision(ctx, ProvisionRequest{
		AgentID:  agentID,
		TenantID: tenantID,
		Config:   doc,
	})
	if err != nil {
		logger.Error("deployment failed", zap.Error(err))
		return nil, err
	}

	if redacted, err := s.synthesizer.Redacted(agentID, provider, req.APIKey, req.Channels); err == nil {
		if err := s.archive.Store(ctx, agentID, redacted); err != nil {
			logger.Warn("failed to archive agent config", zap.Error(err))
		}
	}

	logger.Info("agent deployed", zap.String("port", port), zap.String("provider", string(provider)))

	return &models.Deployment{
		AgentID:      agentID,
		Port:         port,
		DashboardURL: s.dashboardURL(port),
	}, nil
}

// agentID returns the caller's id for a redeploy, or a fresh one from the agent name
func (s *deployService) agentID(req *models.DeployRequest) (string, error) {
	if id := strings.TrimSpace(req.AgentID); id != "" {
		if len(id) > maxAgentIDSize || !HasAgentPrefix(id, s.opts.NamePrefixes) {
			return "", invalid("agentId", "must start with a known agent prefix")
		}
		for _, p := range s.opts.NamePrefixes {
			if strings.HasPrefix(id, p) && agentIDSuffix.MatchString(strings.TrimPrefix(id, p)) {
				return id, nil
			}
		}
		return "", invalid("agentId", "may only contain lowercase letters, digits and dashes")
	}

	slug := Slug(req.AgentName)
	if slug == "" {
		return "", invalid("agentName", "is required")
	}
	return agentIDPrefix + slug + "-" + s.newSuffix(), nil
}

func (s *deployService) dashboardURL(port string) string {
	base := strings.TrimRight(s.opts.PublicBaseURL, "/")
	return fmt.Sprintf("%s:%s/?token=%s", base, port, url.QueryEscape(s.opts.GatewayToken))
}
