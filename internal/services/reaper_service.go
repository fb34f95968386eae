package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"localclaw/internal/containers"
	"localclaw/internal/metrics"

	"go.uber.org/zap"
)

// ReapReport lists what a sweep touched. Failed names had at least one half of
// the delete (container or directory) fail.
type ReapReport struct {
	Targets []string
	Failed  []string
}

// ReaperService removes agent containers and directories left over from earlier deployments
type ReaperService interface {
	// ReclaimOrphans removes every agent container except exclude, plus its directory.
	// It never fails; problems are logged and reported.
	ReclaimOrphans(ctx context.Context, exclude string) ReapReport
}

// HasAgentPrefix reports whether name follows the agent naming convention
func HasAgentPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) && len(name) > len(p) {
			return true
		}
	}
	return false
}

// SelectTargets picks the containers a sweep removes from a runtime snapshot
func SelectTargets(snapshot []containers.Summary, prefixes []string, exclude string) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, c := range snapshot {
		name := c.Name()
		if name == "" || name == exclude || seen[name] {
			continue
		}
		if HasAgentPrefix(name, prefixes) {
			seen[name] = true
			targets = append(targets, name)
		}
	}
	return targets
}

type reaperService struct {
	backend     containers.Backend
	agents      AgentFS
	prefixes    []string
	callTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewReaperService(
	backend containers.Backend,
	agents AgentFS,
	prefixes []string,
	callTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) ReaperService {
	return &reaperService{
		backend:     backend,
		agents:      agents,
		prefixes:    prefixes,
		callTimeout: callTimeout,
		metrics:     m,
		logger:      logger,
	}
}

func (s *reaperService) ReclaimOrphans(ctx context.Context, exclude string) ReapReport {
	var report ReapReport

	listCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	snapshot, err := s.backend.ListContainers(listCtx, true)
	cancel()
	if err != nil {
		s.logger.Warn("orphan sweep skipped: cannot list containers", zap.Error(err))
		return report
	}

	report.Targets = SelectTargets(snapshot, s.prefixes, exclude)
	if len(report.Targets) == 0 {
		return report
	}
	s.logger.Info("reclaiming orphaned agents", zap.Int("count", len(report.Targets)))

	for _, name := range report.Targets {
		if !s.reclaim(ctx, name) {
			report.Failed = append(report.Failed, name)
			s.metrics.OrphansReclaimed.WithLabelValues("partial").Inc()
			continue
		}
		s.metrics.OrphansReclaimed.WithLabelValues("removed").Inc()
	}
	return report
}

// reclaim attempts both halves of the delete and reports whether both succeeded
func (s *reaperService) reclaim(ctx context.Context, name string) bool {
	ok := true

	rmCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err := s.backend.RemoveContainer(rmCtx, name)
	cancel()
	if err != nil && !errors.Is(err, containers.ErrNotFound) {
		s.logger.Warn("failed to remove orphaned container", zap.String("agent_id", name), zap.Error(err))
		ok = false
	}

	if err := s.agents.Remove(name); err != nil {
		s.logger.Warn("failed to remove orphaned agent directory", zap.String("agent_id", name), zap.Error(err))
		ok = false
	}
	return ok
}
