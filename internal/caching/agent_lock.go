package caching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended
var ErrLockTimeout = errors.New("timed out waiting for agent lock")

// AgentLocker serialises work on a single agent id.
// The returned unlock func must be called exactly once.
type AgentLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), error)
}

// keyedLocker is an in-process lock per key
type keyedLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker returns an AgentLocker that only excludes callers in this process
func NewKeyedLocker() AgentLocker {
	return &keyedLocker{slots: make(map[string]*lockSlot)}
}

func (k *keyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, slot)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			k.release(key, slot)
		})
	}, nil
}

func (k *keyedLocker) release(key string, slot *lockSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}

// releaseScript deletes the key only if it still holds our token
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// refreshScript extends the key's expiry only while it still holds our token
const refreshScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

type redisLocker struct {
	client          redis.UniversalClient
	ttl             time.Duration
	pollInterval    time.Duration
	refreshInterval time.Duration
	clock           clockwork.Clock
	newToken        func() string
	logger          *zap.Logger
}

// RedisLockerOption configures a Redis-backed locker
type RedisLockerOption func(*redisLocker)

// WithPollInterval sets how often a contended lock is retried
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(r *redisLocker) { r.pollInterval = d }
}

// WithRefreshInterval sets how often a held lock's expiry is pushed back
func WithRefreshInterval(d time.Duration) RedisLockerOption {
	return func(r *redisLocker) { r.refreshInterval = d }
}

// WithClock replaces the clock driving lease refresh
func WithClock(clock clockwork.Clock) RedisLockerOption {
	return func(r *redisLocker) { r.clock = clock }
}

// WithTokenFunc replaces the random lock token generator
func WithTokenFunc(fn func() string) RedisLockerOption {
	return func(r *redisLocker) { r.newToken = fn }
}

// NewRedisLocker returns an AgentLocker backed by SET NX PX on client.
// While held, the lease is extended every ttl/3 so long image and model pulls
// keep it. A holder that dies releases the lock after ttl.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger, opts ...RedisLockerOption) AgentLocker {
	r := &redisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval:    200 * time.Millisecond,
		refreshInterval: ttl / 3,
		clock:           clockwork.NewRealClock(),
		newToken:        uuid.NewString,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.refreshInterval <= 0 {
		r.refreshInterval = time.Second
	}
	return r
}

// NewRedisClient builds the client used by the lock and the readiness probe
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func lockKey(key string) string {
	return fmt.Sprintf("localclaw:lock:agent:%s", key)
}

func (r *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKey(key)
	token := r.newToken()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire agent lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(r.pollInterval):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(redisKey, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("failed to release agent lock", zap.String("agent_id", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lease until stop is closed or the key is no longer ours
func (r *redisLocker) keepAlive(redisKey, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := r.clock.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			held, err := r.client.Eval(ctx, refreshScript, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				r.logger.Warn("failed to extend agent lock", zap.String("agent_id", key), zap.Error(err))
			case held == 0:
				r.logger.Warn("agent lock lease lost", zap.String("agent_id", key))
				return
			default:
				r.logger.Debug("agent lock lease extended", zap.String("agent_id", key))
			}
		}
	}
}
