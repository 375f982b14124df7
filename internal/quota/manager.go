// Package quota tracks the daily YouTube Data API unit budget in Redis, with
// an optional SQL ledger as the durable copy.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/titletester/internal/metrics"
	"github.com/jmehdipour/titletester/internal/model"
	"github.com/jmehdipour/titletester/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "quota:"
	cacheTTL  = 24 * time.Hour
)

// ResetLock is the lock resource Reset runs under.
const ResetLock = "quota:reset"

var ErrUnknownOperation = errors.New("unknown quota operation")

type Config struct {
	Daily                   int64 // default 10000
	WarningThreshold        int64 // default 9000
	CircuitBreakerThreshold int64 // default 9500
}

// Locker serializes critical sections across processes.
type Locker interface {
	WithLock(ctx context.Context, resource string, fn func(ctx context.Context) error) error
}

// Check is the verdict for a single upcoming API call.
type Check struct {
	Allowed              bool  `json:"allowed"`
	CurrentUsage         int64 `json:"currentUsage"`
	RemainingQuota       int64 `json:"remainingQuota"`
	CircuitBreakerActive bool  `json:"circuitBreakerActive"`
	ProjectedUsage       int64 `json:"projectedUsage"`
}

type Status struct {
	TotalQuota              int64 `json:"totalQuota"`
	CurrentUsage            int64 `json:"currentUsage"`
	RemainingQuota          int64 `json:"remainingQuota"`
	WarningThreshold        int64 `json:"warningThreshold"`
	CircuitBreakerThreshold int64 `json:"circuitBreakerThreshold"`
	CircuitBreakerActive    bool  `json:"circuitBreakerActive"`
}

type Manager struct {
	rds    redis.Cmdable
	store  repository.QuotaUsageRepository
	locker Locker
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Manager)

// WithStore adds the SQL ledger used as fallback and durable copy.
func WithStore(s repository.QuotaUsageRepository) Option {
	return func(m *Manager) { m.store = s }
}

func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(rds redis.Cmdable, cfg Config, log *zap.Logger, opts ...Option) *Manager {
	if cfg.Daily <= 0 {
		cfg.Daily = 10000
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 9000
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 9500
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		rds: rds,
		cfg: cfg,
		log: log.With(zap.String("component", "quota")),
		now: time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) today() time.Time { return m.now().UTC() }

func dayKey(day time.Time) string { return keyPrefix + day.Format(time.DateOnly) }

// usage reads the day's units from Redis, falling back to the ledger when
// the cache is empty. recache writes the ledger value back to Redis.
func (m *Manager) usage(ctx context.Context, day time.Time, recache bool) (int64, error) {
	key := dayKey(day)
	n, err := m.rds.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if n != 0 || m.store == nil {
		return n, nil
	}

	u, err := m.store.GetByDate(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	if u != nil {
		n = u.TotalUnitsUsed
	}
	if recache {
		if err := m.rds.Set(ctx, key, n, cacheTTL).Err(); err != nil {
			return 0, fmt.Errorf("cache %s: %w", key, err)
		}
	}
	return n, nil
}

// Check decides whether op fits in today's budget. On any failure the
// returned Check denies the call with the breaker active.
func (m *Manager) Check(ctx context.Context, op model.QuotaOperation) (Check, error) {
	denied := Check{CircuitBreakerActive: true}
	if !op.Valid() {
		return denied, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	day := m.today()
	current, err := m.usage(ctx, day, true)
	if err != nil {
		m.log.Error("quota check failed", zap.String("operation", op.String()), zap.Error(err))
		return denied, fmt.Errorf("quota check: %w", err)
	}

	res := Check{
		CurrentUsage:         current,
		RemainingQuota:       m.cfg.Daily - current,
		ProjectedUsage:       current + op.Cost(),
		CircuitBreakerActive: current >= m.cfg.CircuitBreakerThreshold,
	}
	res.Allowed = !res.CircuitBreakerActive && res.ProjectedUsage <= m.cfg.Daily

	switch {
	case res.CircuitBreakerActive:
		m.trip(ctx, day, current, op)
	case current >= m.cfg.WarningThreshold:
		m.log.Warn("approaching daily quota limit",
			zap.Int64("current_usage", current),
			zap.Int64("remaining_quota", res.RemainingQuota),
			zap.Int64("threshold", m.cfg.WarningThreshold),
			zap.String("operation", op.String()),
		)
	}
	return res, nil
}

// trip records the breaker activation once per day.
func (m *Manager) trip(ctx context.Context, day time.Time, current int64, op model.QuotaOperation) {
	first, err := m.rds.SetNX(ctx, dayKey(day)+":tripped", 1, cacheTTL).Result()
	if err != nil || !first {
		return
	}
	m.log.Error("circuit breaker activated, youtube api calls stopped",
		zap.Int64("current_usage", current),
		zap.Int64("threshold", m.cfg.CircuitBreakerThreshold),
		zap.String("operation", op.String()),
	)
	if m.store != nil {
		if err := m.store.MarkTripped(ctx, day, current); err != nil {
			m.log.Error("mark circuit breaker tripped", zap.Error(err))
		}
	}
}

// Record adds the cost of a completed call and returns the new daily usage.
func (m *Manager) Record(ctx context.Context, op model.QuotaOperation) (int64, error) {
	if !op.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	day := m.today()
	key := dayKey(day)
	cost := op.Cost()

	n, err := m.rds.IncrBy(ctx, key, cost).Result()
	if err != nil {
		m.log.Error("failed to record usage", zap.String("operation", op.String()), zap.Int64("cost", cost), zap.Error(err))
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if err := m.rds.Expire(ctx, key, cacheTTL).Err(); err != nil {
		m.log.Warn("quota cache expiry not set", zap.String("key", key), zap.Error(err))
	}
	metrics.QuotaUnitsTotal.WithLabelValues(op.String()).Add(float64(cost))

	if m.store != nil {
		if err := m.store.RecordCall(ctx, day, op, n); err != nil {
			m.log.Error("failed to record usage", zap.String("operation", op.String()), zap.Int64("cost", cost), zap.Error(err))
			return n, fmt.Errorf("record ledger: %w", err)
		}
	}

	m.log.Debug("usage recorded", zap.String("operation", op.String()), zap.Int64("cost", cost), zap.Int64("new_usage", n))
	return n, nil
}

// Status reports today's budget. Lookup failures are logged and reported as
// zero usage.
func (m *Manager) Status(ctx context.Context) Status {
	current, err := m.usage(ctx, m.today(), false)
	if err != nil {
		m.log.Error("quota status check failed", zap.Error(err))
		current = 0
	}
	return Status{
		TotalQuota:              m.cfg.Daily,
		CurrentUsage:            current,
		RemainingQuota:          m.cfg.Daily - current,
		WarningThreshold:        m.cfg.WarningThreshold,
		CircuitBreakerThreshold: m.cfg.CircuitBreakerThreshold,
		CircuitBreakerActive:    current >= m.cfg.CircuitBreakerThreshold,
	}
}

// Reset clears today's usage in Redis and the ledger.
func (m *Manager) Reset(ctx context.Context) error {
	reset := func(ctx context.Context) error {
		day := m.today()
		key := dayKey(day)
		if err := m.rds.Del(ctx, key, key+":tripped").Err(); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		if m.store != nil {
			if err := m.store.Reset(ctx, day); err != nil {
				return fmt.Errorf("reset ledger: %w", err)
			}
		}
		m.log.Info("quota reset successfully", zap.String("date", day.Format(time.DateOnly)))
		return nil
	}

	var err error
	if m.locker != nil {
		err = m.locker.WithLock(ctx, ResetLock, reset)
	} else {
		err = reset(ctx)
	}
	if err != nil {
		m.log.Error("quota reset failed", zap.Error(err))
	}
	return err
}
