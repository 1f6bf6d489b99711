package jobs

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/providers/replicate"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 120

	startingProgress  = 10
	processingBase    = 20
	processingStep    = 2
	processingCeiling = 85
	succeededProgress = 100
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller drives one Job from created to a terminal state. Status queries are
// strictly sequential: the next query is scheduled only after the previous
// response has been applied.
type Poller struct {
	predictor   Predictor
	interval    time.Duration
	maxAttempts int
	sleep       SleepFunc
	logger      *infra.Logger
}

// PollerOptions configures a Poller. Zero values use the defaults.
type PollerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       SleepFunc
	Logger      *infra.Logger
}

// NewPoller constructs a poller over predictor.
func NewPoller(predictor Predictor, opts PollerOptions) *Poller {
	p := &Poller{
		predictor:   predictor,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		p.logger = &l
	}
	return p
}

// Run polls until the prediction reaches a terminal status, the attempt
// ceiling is hit, or ctx is done. job is updated in place and observe, when
// set, receives a snapshot after every applied response. The returned
// prediction is the last one received. Cancelling ctx stops local polling
// only; the provider job keeps running.
func (p *Poller) Run(ctx context.Context, job *domain.Job, observe func(domain.Job)) (*replicate.Prediction, error) {
	var last *replicate.Prediction
	for job.Attempts < p.maxAttempts {
		if job.Attempts > 0 {
			if err := p.sleep(ctx, p.interval); err != nil {
				return last, err
			}
		}

		pred, err := p.predictor.GetPrediction(ctx, job.Handle)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			job.Attempts++
			p.logger.Warn().Err(err).
				Str("prediction_id", job.Handle).
				Int("attempt", job.Attempts).
				Msg("jobs: status query failed")
			notify(observe, job)
			continue
		}
		last = pred

		switch pred.Status {
		case replicate.StatusSucceeded:
			job.State = job.State.Advance(domain.JobStateSucceeded)
			job.Progress = succeededProgress
			job.Attempts++
			job.ErrorDetail = ""
			notify(observe, job)
			return pred, nil
		case replicate.StatusFailed:
			job.Attempts++
			return pred, p.terminate(job, domain.JobStateFailed, domain.ErrPredictionFailed, pred.ErrorText(), observe)
		case replicate.StatusCanceled:
			job.Attempts++
			return pred, p.terminate(job, domain.JobStateCanceled, domain.ErrCanceled, pred.ErrorText(), observe)
		case replicate.StatusStarting:
			job.State = job.State.Advance(domain.JobStateStarting)
			job.Progress = max(job.Progress, startingProgress)
		case replicate.StatusProcessing:
			job.State = job.State.Advance(domain.JobStateProcessing)
			job.Progress = max(job.Progress, processingProgress(job.Attempts))
		default:
			p.logger.Debug().Str("prediction_id", job.Handle).Str("status", pred.Status).Msg("jobs: unrecognized status")
		}
		job.Attempts++
		notify(observe, job)
	}
	return last, p.terminate(job, domain.JobStateTimedOut, domain.ErrTimedOut, "", observe)
}

func (p *Poller) terminate(job *domain.Job, state domain.JobState, cause error, detail string, observe func(domain.Job)) error {
	jerr := &domain.JobError{State: state, Detail: detail, Err: cause}
	job.State = state
	job.ErrorDetail = detail
	if job.ErrorDetail == "" {
		job.ErrorDetail = cause.Error()
	}
	notify(observe, job)
	return jerr
}

// processingProgress ramps with completed polls and stays below completion.
func processingProgress(attempts int) int {
	return min(processingBase+attempts*processingStep, processingCeiling)
}

func notify(observe func(domain.Job), job *domain.Job) {
	if observe != nil {
		observe(*job)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
