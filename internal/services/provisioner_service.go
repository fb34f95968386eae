package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"localclaw/internal/containers"
	"localclaw/internal/metrics"

	"go.uber.org/zap"
)

// AgentContainerPort is the gateway port inside every agent container
const AgentContainerPort = "18789/tcp"

var agentCommand = []string{"node", "openclaw.mjs", "gateway", "--bind", "lan", "--allow-unconfigured"}

// ProvisionRequest is one create-or-replace of an agent container
type ProvisionRequest struct {
	AgentID  string
	TenantID string
	Config   []byte
}

// ProvisionerOptions are the runtime settings shared by every agent container
type ProvisionerOptions struct {
	Image       string
	Network     string
	CallTimeout time.Duration
	PullTimeout time.Duration
}

// ProvisionerService creates, replaces and starts agent containers
type ProvisionerService interface {
	// Provision returns the host port published for the agent gateway
	Provision(ctx context.Context, req ProvisionRequest) (string, error)
}

type provisionerService struct {
	backend containers.Backend
	agents  AgentFS
	opts    ProvisionerOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewProvisionerService(
	backend containers.Backend,
	agents AgentFS,
	opts ProvisionerOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) ProvisionerService {
	return &provisionerService{
		backend: backend,
		agents:  agents,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

func (s *provisionerService) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

func (s *provisionerService) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	start := time.Now()
	defer func() {
		s.metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.ensureImage(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	if err := s.agents.Prepare(req.AgentID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}
	if err := s.agents.WriteConfig(req.AgentID, req.Config); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	rmCtx, cancel := s.call(ctx)
	err := s.backend.RemoveContainer(rmCtx, req.AgentID)
	cancel()
	if err != nil && !errors.Is(err, containers.ErrNotFound) {
		s.logger.Warn("failed to remove previous agent container", zap.String("agent_id", req.AgentID), zap.Error(err))
	}

	spec := containers.Spec{
		Name:  req.AgentID,
		Image: s.opts.Image,
		User:  "0:0",
		Cmd:   agentCommand,
		Labels: map[string]string{
			"com.docker.compose.project": "localclaw",
			"com.docker.compose.service": "agent",
			"com.docker.compose.oneoff":  "False",
			"localclaw.agent-id":         req.AgentID,
			"localclaw.tenant-id":        req.TenantID,
		},
		Network:       s.opts.Network,
		Binds:         s.agents.Binds(req.AgentID),
		ContainerPort: AgentContainerPort,
		RestartPolicy: "unless-stopped",
	}

	createCtx, cancel := s.call(ctx)
	id, err := s.backend.CreateContainer(createCtx, spec)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: create container: %w", ErrProvisioningFailed, err)
	}

	startCtx, cancel := s.call(ctx)
	err = s.backend.StartContainer(startCtx, id)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: start container: %w", ErrProvisioningFailed, err)
	}

	inspectCtx, cancel := s.call(ctx)
	port, err := s.backend.PublishedPort(inspectCtx, id, AgentContainerPort)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: inspect container: %w", ErrProvisioningFailed, err)
	}
	if port == "" {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, ErrPortResolution)
	}

	s.logger.Info("agent container started",
		zap.String("agent_id", req.AgentID),
		zap.String("tenant_id", req.TenantID),
		zap.String("port", port),
	)
	return port, nil
}

func (s *provisionerService) ensureImage(ctx context.Context) error {
	inspectCtx, cancel := s.call(ctx)
	exists, err := s.backend.ImageExists(inspectCtx, s.opts.Image)
	cancel()
	if err != nil {
		return fmt.Errorf("inspect image: %w", err)
	}
	if exists {
		return nil
	}

	s.logger.Info("pulling agent image", zap.String("image", s.opts.Image))
	pullCtx, cancel := context.WithTimeout(ctx, s.opts.PullTimeout)
	defer cancel()
	if err := s.backend.PullImage(pullCtx, s.opts.Image); err != nil {
		s.metrics.ImagePulls.WithLabelValues("failed").Inc()
		return fmt.Errorf("pull image %s: %w", s.opts.Image, err)
	}
	s.metrics.ImagePulls.WithLabelValues("pulled").Inc()
	return nil
}
