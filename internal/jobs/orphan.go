package jobs

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
)

const defaultOrphanBatch = 50

// StaleSweeper times out jobs whose polling loop stopped with its process.
// Live loops touch their row on every poll, so only rows nobody polls for
// staleAfter are affected.
type StaleSweeper struct {
	jobs   domain.JobRepository
	after  time.Duration
	logger *infra.Logger
}

// NewStaleSweeper returns a sweeper, or nil when staleAfter is not positive.
func NewStaleSweeper(jobs domain.JobRepository, staleAfter time.Duration, logger *infra.Logger) *StaleSweeper {
	if staleAfter <= 0 {
		return nil
	}
	return &StaleSweeper{jobs: jobs, after: staleAfter, logger: discardIfNil(logger)}
}

// SweepOnce marks stale non-terminal jobs as timedOut.
func (s *StaleSweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, nil
	}
	n, err := s.jobs.ExpireStale(ctx, s.after, domain.ErrTimedOut.Error())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("jobs", n).Dur("stale_after", s.after).Msg("orphan: stale jobs timed out")
	}
	return n, nil
}

// Run calls SweepOnce every interval until ctx is done.
func (s *StaleSweeper) Run(ctx context.Context, interval time.Duration) error {
	if s == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return every(ctx, interval, func(ctx context.Context) error {
		_, err := s.SweepOnce(ctx)
		return err
	}, s.logger)
}

// OrphanOptions configures an OrphanChecker.
type OrphanOptions struct {
	// Batch caps the jobs inspected per pass.
	Batch int
	// StaleAfter, when positive, first times out jobs left unpolled that long.
	StaleAfter time.Duration
	Logger     *infra.Logger
}

// OrphanChecker looks up what became of jobs that timed out locally. It only
// records the provider's late status; the job stays timedOut and is never
// charged or delivered.
type OrphanChecker struct {
	predictor Predictor
	jobs      domain.JobRepository
	sweeper   *StaleSweeper
	logger    *infra.Logger
	batch     int
}

// NewOrphanChecker builds a checker.
func NewOrphanChecker(predictor Predictor, jobs domain.JobRepository, opts OrphanOptions) *OrphanChecker {
	batch := opts.Batch
	if batch <= 0 {
		batch = defaultOrphanBatch
	}
	logger := discardIfNil(opts.Logger)
	return &OrphanChecker{
		predictor: predictor,
		jobs:      jobs,
		sweeper:   NewStaleSweeper(jobs, opts.StaleAfter, logger),
		logger:    logger,
		batch:     batch,
	}
}

// CheckOnce sweeps stale jobs, then issues one status query per unchecked
// timed-out job and returns how many jobs were recorded. Jobs whose query
// fails are retried next pass.
func (c *OrphanChecker) CheckOnce(ctx context.Context) (int, error) {
	if _, err := c.sweeper.SweepOnce(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("orphan: stale sweep failed")
	}
	pending, err := c.jobs.ListUncheckedTimedOut(ctx, c.batch)
	if err != nil {
		return 0, err
	}
	recorded := 0
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}
		pred, err := c.predictor.GetPrediction(ctx, job.Handle)
		if err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Str("prediction_id", job.Handle).Msg("orphan: status query failed")
			continue
		}
		if err := c.jobs.SetLateStatus(ctx, job.ID, pred.Status); err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orphan: record late status failed")
			continue
		}
		recorded++
		c.logger.Info().
			Str("job_id", job.ID).
			Str("prediction_id", job.Handle).
			Str("late_status", pred.Status).
			Msg("orphan: late status recorded")
	}
	return recorded, nil
}

// Run calls CheckOnce every interval until ctx is done.
func (c *OrphanChecker) Run(ctx context.Context, interval time.Duration) error {
	return every(ctx, interval, func(ctx context.Context) error {
		_, err := c.CheckOnce(ctx)
		return err
	}, c.logger)
}

func every(ctx context.Context, interval time.Duration, pass func(context.Context) error, logger *infra.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("orphan: pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func discardIfNil(logger *infra.Logger) *infra.Logger {
	if logger != nil {
		return logger
	}
	l := infra.Logger(zerolog.New(io.Discard))
	return &l
}
