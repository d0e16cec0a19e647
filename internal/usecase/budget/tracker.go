// Package budget caps the provider tokens spent per UTC day and month.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	"github.com/kailas-cloud/semroute/internal/metrics"
)

// Action defines what happens once a limit is reached.
type Action string

const (
	// ActionWarn logs and lets the call through.
	ActionWarn Action = "warn"
	// ActionReject fails the call with domain.ErrBudgetExceeded.
	ActionReject Action = "reject"
)

// Period names a budget window.
type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

// Store persists counters so restarts and replicas share one budget.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Limits are token caps; zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// Tracker counts spent tokens in memory and writes them behind to an optional Store.
// Check never touches the store.
type Tracker struct {
	mu     sync.Mutex
	limits Limits
	action Action
	prefix string
	used   map[Period]int64
	window map[Period]string
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewTracker creates a tracker. keyPrefix namespaces persisted counters, e.g. "semroute:".
func NewTracker(limits Limits, action Action, keyPrefix string, logger *zap.Logger) *Tracker {
	t := &Tracker{
		limits: limits,
		action: action,
		prefix: keyPrefix + "budget:",
		used:   map[Period]int64{},
		window: map[Period]string{},
		now:    time.Now,
		logger: logger,
	}
	t.roll()
	return t
}

// WithStore attaches persistence and seeds counters for the current windows.
func (t *Tracker) WithStore(ctx context.Context, s Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s
	t.roll()
	for _, p := range []Period{Daily, Monthly} {
		val, err := s.Get(ctx, t.key(p))
		if err != nil {
			t.logger.Warn("Failed to load token budget", zap.String("period", string(p)), zap.Error(err))
			continue
		}
		t.used[p] = val
	}
	t.logger.Info("Token budget loaded",
		zap.Int64("daily_used", t.used[Daily]),
		zap.Int64("monthly_used", t.used[Monthly]),
	)
	return t
}

// Check reports whether another provider call is allowed.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.roll()
	var exceeded []Period
	if t.limits.Daily > 0 && t.used[Daily] >= t.limits.Daily {
		exceeded = append(exceeded, Daily)
	}
	if t.limits.Monthly > 0 && t.used[Monthly] >= t.limits.Monthly {
		exceeded = append(exceeded, Monthly)
	}
	if len(exceeded) == 0 {
		return nil
	}
	if t.action == ActionReject {
		return fmt.Errorf("%w: %s limit reached", domain.ErrBudgetExceeded, exceeded[0])
	}
	t.logger.Warn("Token budget exceeded",
		zap.Int64("daily_used", t.used[Daily]),
		zap.Int64("daily_limit", t.limits.Daily),
		zap.Int64("monthly_used", t.used[Monthly]),
		zap.Int64("monthly_limit", t.limits.Monthly),
	)
	return nil
}

// Record adds spent tokens. Persisting happens synchronously with its own short timeout.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	t.mu.Lock()
	t.roll()
	t.used[Daily] += tokens
	t.used[Monthly] += tokens
	s := t.store
	keys := map[Period]string{Daily: t.key(Daily), Monthly: t.key(Monthly)}
	t.mu.Unlock()

	metrics.TokenBudgetRemaining.WithLabelValues(string(Daily)).Set(float64(t.Remaining(Daily)))
	metrics.TokenBudgetRemaining.WithLabelValues(string(Monthly)).Set(float64(t.Remaining(Monthly)))

	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for p, key := range keys {
		if _, err := s.IncrBy(ctx, key, tokens, ttlFor(p)); err != nil {
			t.logger.Warn("Failed to persist token budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Remaining returns tokens left in the period, or -1 when the period is unlimited.
func (t *Tracker) Remaining(p Period) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.roll()
	limit := t.limits.Daily
	if p == Monthly {
		limit = t.limits.Monthly
	}
	if limit == 0 {
		return -1
	}
	return max(limit-t.used[p], 0)
}

// Used returns tokens spent in the current period.
func (t *Tracker) Used(p Period) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	return t.used[p]
}

// roll zeroes counters whose window has passed. Caller holds mu.
func (t *Tracker) roll() {
	now := t.now().UTC()
	for p, w := range map[Period]string{Daily: now.Format("2006-01-02"), Monthly: now.Format("2006-01")} {
		if t.window[p] != w {
			t.window[p] = w
			t.used[p] = 0
		}
	}
}

func (t *Tracker) key(p Period) string {
	return t.prefix + string(p) + ":" + t.window[p]
}

func ttlFor(p Period) time.Duration {
	if p == Daily {
		return 48 * time.Hour
	}
	return 62 * 24 * time.Hour
}
