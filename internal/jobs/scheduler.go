package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"localclaw/internal/caching"
	"localclaw/internal/containers"
	"localclaw/internal/metrics"
	"localclaw/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DirectorySweepJob = "agent-directory-sweep"
	AgentGaugeJob     = "agent-gauge"
)

// Options configures job intervals
type Options struct {
	DirectorySweepInterval time.Duration
	GaugeInterval          time.Duration
	Prefixes               []string
	CallTimeout            time.Duration
	// LockWait bounds how long the sweep waits on a deployment holding an agent lock
	LockWait time.Duration
}

// JobScheduler runs the periodic housekeeping jobs
type JobScheduler struct {
	scheduler gocron.Scheduler
	backend   containers.Backend
	agents    services.AgentFS
	locker    caching.AgentLocker
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a scheduler and registers all jobs
func NewJobScheduler(
	clock clockwork.Clock,
	backend containers.Backend,
	agents services.AgentFS,
	locker caching.AgentLocker,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = time.Second
	}

	js := &JobScheduler{
		scheduler: scheduler,
		backend:   backend,
		agents:    agents,
		locker:    locker,
		opts:      opts,
		metrics:   m,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("Starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames returns the names of the registered jobs
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

func (js *JobScheduler) registerJobs() error {
	register := func(name string, interval time.Duration, task func(context.Context)) error {
		if interval <= 0 {
			js.logger.Info("Background job disabled", zap.String("job", name))
			return nil
		}
		job, err := js.scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(task, context.Background()),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s job: %w", name, err)
		}
		js.mu.Lock()
		js.jobs[name] = job
		js.mu.Unlock()
		return nil
	}

	if err := register(DirectorySweepJob, js.opts.DirectorySweepInterval, func(ctx context.Context) {
		js.SweepDirectories(ctx)
	}); err != nil {
		return err
	}
	return register(AgentGaugeJob, js.opts.GaugeInterval, js.UpdateAgentGauge)
}

// SweepDirectories removes agent directories that no container references.
// Containers are never touched here; the deployment-time reaper owns them.
func (js *JobScheduler) SweepDirectories(ctx context.Context) int {
	dirs, err := js.agents.List()
	if err != nil {
		js.logger.Warn("Directory sweep skipped: cannot list agent directories", zap.Error(err))
		return 0
	}

	var candidates []string
	for _, d := range dirs {
		if services.HasAgentPrefix(d, js.opts.Prefixes) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	swept := 0
	for _, agentID := range candidates {
		removed, err := js.sweepOne(ctx, agentID)
		if err != nil {
			js.logger.Warn("Failed to sweep agent directory", zap.String("agent_id", agentID), zap.Error(err))
			continue
		}
		if removed {
			swept++
			js.metrics.DirectoriesSwept.Inc()
		}
	}
	if swept > 0 {
		js.logger.Info("Swept dangling agent directories", zap.Int("count", swept))
	}
	return swept
}

// sweepOne holds the agent lock so a deployment between directory creation
// and container creation is never swept.
func (js *JobScheduler) sweepOne(ctx context.Context, agentID string) (bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, js.opts.LockWait)
	unlock, err := js.locker.Lock(lockCtx, agentID)
	cancel()
	if errors.Is(err, caching.ErrLockTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer unlock()

	exists, err := js.containerExists(ctx, agentID)
	if err != nil || exists {
		return false, err
	}
	if err := js.agents.Remove(agentID); err != nil {
		return false, err
	}
	return true, nil
}

func (js *JobScheduler) containerExists(ctx context.Context, name string) (bool, error) {
	listCtx, cancel := context.WithTimeout(ctx, js.opts.CallTimeout)
	defer cancel()
	list, err := js.backend.ListContainers(listCtx, true)
	if err != nil {
		return false, err
	}
	for _, c := range list {
		if c.Name() == name {
			return true, nil
		}
	}
	return false, nil
}

// UpdateAgentGauge sets the running agent gauge from the runtime's view
func (js *JobScheduler) UpdateAgentGauge(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, js.opts.CallTimeout)
	defer cancel()

	list, err := js.backend.ListContainers(listCtx, false)
	if err != nil {
		js.logger.Warn("Agent gauge skipped: cannot list containers", zap.Error(err))
		return
	}
	running := 0
	for _, c := range list {
		if services.HasAgentPrefix(c.Name(), js.opts.Prefixes) {
			running++
		}
	}
	js.metrics.AgentsRunning.Set(float64(running))
}
