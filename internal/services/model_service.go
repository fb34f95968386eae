package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"localclaw/internal/metrics"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ModelService makes sure the inference sidecar has a model before a local agent starts
type ModelService interface {
	// EnsureModel never fails; a missing model only degrades the agent later
	EnsureModel(ctx context.Context, name string)
}

type modelService struct {
	client  *api.Client
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewOllamaClient builds a sidecar client for baseURL
func NewOllamaClient(baseURL string) (*api.Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}

func NewModelService(client *api.Client, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) ModelService {
	return &modelService{
		client:  client,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

func (s *modelService) EnsureModel(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	present, err := s.hasModel(ctx, name)
	if err != nil {
		s.degraded(name, "model catalog unavailable", err)
		return
	}
	if present {
		s.metrics.ModelEnsure.WithLabelValues("present").Inc()
		return
	}

	s.logger.Info("pulling missing model", zap.String("model", name))
	err = s.client.Pull(ctx, &api.PullRequest{Model: name}, func(p api.ProgressResponse) error {
		s.logger.Debug("model pull progress", zap.String("model", name), zap.String("status", p.Status))
		return nil
	})
	if err != nil {
		s.degraded(name, "model pull failed", err)
		return
	}

	s.metrics.ModelEnsure.WithLabelValues("pulled").Inc()
	s.logger.Info("model installed", zap.String("model", name))
}

func (s *modelService) hasModel(ctx context.Context, name string) (bool, error) {
	list, err := s.client.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list.Models {
		if strings.Contains(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *modelService) degraded(name, msg string, err error) {
	s.metrics.ModelEnsure.WithLabelValues("failed").Inc()
	s.logger.Warn(msg+", proceeding without it", zap.String("model", name), zap.Error(err))
}
