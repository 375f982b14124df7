// Package lock implements a Redis lease lock (SET NX EX) with owner-checked
// release and extension.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/titletester/internal/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "lock:"

var ErrNotAcquired = errors.New("lock not acquired")

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

type Config struct {
	TTL        time.Duration // default 30s
	RetryDelay time.Duration // default 100ms
	MaxRetries int           // default 10
}

// Lease identifies a held lock.
type Lease struct {
	Resource string
	Owner    string
}

// Info describes the current holder of a resource.
type Info struct {
	Locked bool
	Owner  string
	TTL    time.Duration
}

type Manager struct {
	rds redis.Cmdable
	cfg Config
	log *zap.Logger
}

func NewManager(rds redis.Cmdable, cfg Config, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{rds: rds, cfg: cfg, log: log.With(zap.String("component", "lock"))}
}

// Acquire tries to take resource, retrying MaxRetries times. acquired is
// false when another owner kept the lock for the whole retry budget.
func (m *Manager) Acquire(ctx context.Context, resource string) (lease Lease, acquired bool, err error) {
	lease = Lease{Resource: resource, Owner: util.New()}
	key := keyPrefix + resource

	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		ok, err := m.rds.SetNX(ctx, key, lease.Owner, m.cfg.TTL).Result()
		if err != nil {
			m.log.Error("lock acquisition error", zap.String("resource", resource), zap.Int("attempt", attempt), zap.Error(err))
			if attempt == m.cfg.MaxRetries {
				return lease, false, fmt.Errorf("acquire %s: %w", resource, err)
			}
		} else if ok {
			m.log.Debug("lock acquired", zap.String("resource", resource), zap.String("owner", lease.Owner), zap.Int("attempt", attempt))
			return lease, true, nil
		}

		if attempt < m.cfg.MaxRetries {
			t := time.NewTimer(m.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return lease, false, ctx.Err()
			case <-t.C:
			}
		}
	}

	m.log.Warn("failed to acquire lock after max retries", zap.String("resource", resource), zap.Int("max_retries", m.cfg.MaxRetries))
	return lease, false, nil
}

// Release deletes the lock if lease still owns it.
func (m *Manager) Release(ctx context.Context, lease Lease) (bool, error) {
	n, err := releaseScript.Run(ctx, m.rds, []string{keyPrefix + lease.Resource}, lease.Owner).Int64()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", lease.Resource, err)
	}
	if n == 0 {
		m.log.Warn("attempted to release lock not owned", zap.String("resource", lease.Resource), zap.String("owner", lease.Owner))
		return false, nil
	}
	return true, nil
}

// Extend resets the TTL if lease still owns the lock.
func (m *Manager) Extend(ctx context.Context, lease Lease) (bool, error) {
	n, err := extendScript.Run(ctx, m.rds, []string{keyPrefix + lease.Resource}, lease.Owner, m.cfg.TTL.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", lease.Resource, err)
	}
	return n == 1, nil
}

func (m *Manager) Info(ctx context.Context, resource string) (Info, error) {
	key := keyPrefix + resource
	owner, err := m.rds.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}

	info := Info{Locked: true, Owner: owner}
	ttl, err := m.rds.PTTL(ctx, key).Result()
	if err != nil {
		return info, err
	}
	if ttl > 0 {
		info.TTL = ttl
	}
	return info, nil
}

// WithLock runs fn while holding resource and keeps the lease alive until fn
// returns. ErrNotAcquired is returned when the lock stayed taken.
func (m *Manager) WithLock(ctx context.Context, resource string, fn func(ctx context.Context) error) error {
	lease, ok, err := m.Acquire(ctx, resource)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	stop := m.keepAlive(ctx, lease)
	defer func() {
		stop()
		if _, err := m.Release(context.WithoutCancel(ctx), lease); err != nil {
			m.log.Error("lock release error", zap.String("resource", resource), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// keepAlive extends lease every TTL/3 until stop is called or the lease is lost.
func (m *Manager) keepAlive(ctx context.Context, lease Lease) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(m.cfg.TTL / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			ok, err := m.Extend(ctx, lease)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				m.log.Warn("lock extend error", zap.String("resource", lease.Resource), zap.Error(err))
			case !ok:
				m.log.Warn("lock lost before release", zap.String("resource", lease.Resource), zap.String("owner", lease.Owner))
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
