package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/access-service/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const expiryJobTimeout = 2 * time.Minute

// SubscriptionExpirer closes subscriptions whose end date has passed
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// SessionSweeper drops sessions nobody has used for a while
type SessionSweeper interface {
	EvictIdle(maxIdle time.Duration) int
}

// Jobs runs periodic maintenance in-process
type Jobs struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewJobs schedules the subscription expiry sweep and the idle session
// sweep. Sessions idle for longer than sessionIdle are released.
func NewJobs(
	cfg config.JobsConfig,
	subscriptions SubscriptionExpirer,
	sessions SessionSweeper,
	sessionIdle time.Duration,
	logger *zap.Logger,
) (*Jobs, error) {
	logger = logger.Named("jobs")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(cfg.ExpirySchedule, func() {
		expireDue(subscriptions, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JOBS_EXPIRY_SCHEDULE %q: %w", cfg.ExpirySchedule, err)
	}

	_, err = c.AddFunc(cfg.SessionSweepSchedule, func() {
		sweepSessions(sessions, sessionIdle, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JOBS_SESSION_SWEEP_SCHEDULE %q: %w", cfg.SessionSweepSchedule, err)
	}

	return &Jobs{cron: c, logger: logger}, nil
}

func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("scheduled jobs started", zap.Int("jobs", len(j.cron.Entries())))
}

// Stop prevents new runs and waits for a running job until ctx is done
func (j *Jobs) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func expireDue(subscriptions SubscriptionExpirer, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryJobTimeout)
	defer cancel()

	start := time.Now()
	n, err := subscriptions.ExpireDue(ctx)
	if err != nil {
		logger.Error("failed to expire subscriptions", zap.Error(err))
		return
	}

	logger.Info("expired subscriptions",
		zap.Int64("count", n),
		zap.Duration("took", time.Since(start)),
	)
}

func sweepSessions(sessions SessionSweeper, maxIdle time.Duration, logger *zap.Logger) {
	if n := sessions.EvictIdle(maxIdle); n > 0 {
		logger.Info("released idle sessions", zap.Int("count", n), zap.Duration("max_idle", maxIdle))
	}
}
