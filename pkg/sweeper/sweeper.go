// Package sweeper periodically expires invitations whose response window has
// closed. When a Redis locker is configured only one replica sweeps at a time;
// without one every replica sweeps, which is safe because expiry only moves
// invitations toward a terminal state.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/storage/redisstore"
)

// DefaultSchedule runs the sweep every five minutes
const DefaultSchedule = "*/5 * * * *"

const lockKey = "invitation-expiry"

// Expirer expires stale invitations and reports how many it changed
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs the expiry sweep on a cron schedule
type Sweeper struct {
	expirer Expirer
	locker  *redisstore.Locker
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
	timeout time.Duration
	cron    *cron.Cron
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithLocker guards each run with a distributed lock
func WithLocker(locker *redisstore.Locker) Option {
	return func(s *Sweeper) { s.locker = locker }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Sweeper) { s.metrics = metrics }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithTimeout bounds a single run
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sweeper) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// New creates a sweeper over expirer
func New(expirer Expirer, opts ...Option) *Sweeper {
	s := &Sweeper{
		expirer: expirer,
		logger:  observability.Discard(),
		now:     time.Now,
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs one sweep and returns the number of invitations expired.
// It returns zero without error when another replica holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, lockKey, s.timeout)
		if errors.Is(err, redisstore.ErrLockHeld) {
			s.metrics.RecordSweep("skipped", 0, time.Since(start))
			s.logger.Debug("Invitation sweep skipped, another replica holds the lock")
			return 0, nil
		}
		if err != nil {
			s.metrics.RecordSweep("error", 0, time.Since(start))
			return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		defer release()
	}

	expired, err := s.expirer.ExpireStale(ctx, s.now())
	if err != nil {
		s.metrics.RecordSweep("error", expired, time.Since(start))
		return expired, fmt.Errorf("failed to expire invitations: %w", err)
	}
	s.metrics.RecordSweep("success", expired, time.Since(start))
	if expired > 0 {
		s.logger.WithField("expired", expired).Info("Expired stale invitations")
	}
	return expired, nil
}

func (s *Sweeper) run() {
	defer observability.RecoverPanic(s.logger, "invitation sweep")
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.WithError(err).Error("Invitation sweep failed")
	}
}

// Start schedules the sweep. schedule is a standard five-field cron spec
// evaluated in UTC.
func (s *Sweeper) Start(schedule string) error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("failed to schedule invitation sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.WithField("schedule", schedule).Info("Invitation sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	s.cron = nil
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
