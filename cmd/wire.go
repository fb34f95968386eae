package main

import (
	"context"
	"fmt"
	"time"

	"localclaw/internal/caching"
	"localclaw/internal/config"
	"localclaw/internal/containers"
	"localclaw/internal/metrics"
	"localclaw/internal/services"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// runtime is the container-side half of the app, shared by serve and reap
type runtime struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	clock    clockwork.Clock
	backend  containers.Backend
	agents   services.AgentFS
	reaper   services.ReaperService
}

func newRuntime(cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	backend, err := containers.NewDockerBackend(cfg.Runtime.DockerHost)
	if err != nil {
		return nil, err
	}

	agents := services.NewAgentFS(afero.NewOsFs(), cfg.Runtime.AgentsRoot, cfg.Runtime.HostAgentsRoot)
	reaper := services.NewReaperService(backend, agents, cfg.Runtime.NamePrefixes, cfg.Runtime.CallTimeout, m, logger)

	return &runtime{
		registry: registry,
		metrics:  m,
		clock:    clockwork.NewRealClock(),
		backend:  backend,
		agents:   agents,
		reaper:   reaper,
	}, nil
}

// newLocker returns a Redis lock when Redis is configured and an in-process lock otherwise
func newLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (caching.AgentLocker, *redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("Redis not configured, using in-process agent locks")
		return caching.NewKeyedLocker(), nil, nil
	}

	client := caching.NewRedisClient(cfg.Addr, cfg.Password, cfg.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Redis agent locks enabled", zap.String("addr", cfg.Addr))
	return caching.NewRedisLocker(client, cfg.LockTTL, logger), client, nil
}

// newArchive returns a MinIO archive when an endpoint is configured and a no-op otherwise
func newArchive(cfg config.ArchiveConfig, timeout time.Duration, logger *zap.Logger) (services.ArchiveService, error) {
	if cfg.Endpoint == "" {
		return services.NewNoopArchive(), nil
	}
	client, err := services.NewMinioClient(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	logger.Info("Config archive enabled", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return services.NewArchiveService(client, cfg.Bucket, timeout), nil
}
