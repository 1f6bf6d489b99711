package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aieditor/internal/domain"
	"aieditor/internal/events"
	"aieditor/internal/infra"
	"aieditor/internal/providers/replicate"
)

const (
	persistTimeout     = 5 * time.Second
	materializeTimeout = 2 * time.Minute
)

// inputFilenames are the upload name hints used when a URL-only operation
// arrives with inline bytes.
var inputFilenames = map[domain.OperationKind]string{
	domain.OperationUpscale: "upscale-input.png",
	domain.OperationExpand:  "temp-image.png",
}

// Options wires a Service.
type Options struct {
	Gate         *Gate
	Adapter      *Adapter
	Poller       *Poller
	Materializer *Materializer
	Blobs        Blobs
	Jobs         domain.JobRepository
	Images       domain.ImageRepository
	Events       events.Publisher
	Metrics      *Metrics
	Logger       *infra.Logger
}

// Service runs the gate → submit → poll → materialize → confirm pipeline.
// Each job is polled by its own goroutine; the only shared state is the
// registry of cancel functions for those goroutines.
type Service struct {
	gate         *Gate
	adapter      *Adapter
	poller       *Poller
	materializer *Materializer
	blobs        Blobs
	jobs         domain.JobRepository
	images       domain.ImageRepository
	events       events.Publisher
	metrics      *Metrics
	logger       *infra.Logger

	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService constructs a Service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.Noop{}
	}
	base, stop := context.WithCancel(context.Background())
	return &Service{
		gate:         opts.Gate,
		adapter:      opts.Adapter,
		poller:       opts.Poller,
		materializer: opts.Materializer,
		blobs:        opts.Blobs,
		jobs:         opts.Jobs,
		images:       opts.Images,
		events:       publisher,
		metrics:      opts.Metrics,
		logger:       logger,
		base:         base,
		stop:         stop,
		running:      map[string]context.CancelFunc{},
	}
}

// Start admits, submits and persists a job, then polls it in the background.
// The returned job is in state created.
func (s *Service) Start(ctx context.Context, userID string, req domain.OperationRequest) (*domain.Job, error) {
	job, grant, err := s.submit(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	snapshot := *job

	runCtx, cancel := context.WithCancel(s.base)
	s.mu.Lock()
	s.running[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(job.ID)
		_ = s.drive(runCtx, job, grant)
	}()
	return &snapshot, nil
}

// Execute runs the whole pipeline in the caller's goroutine and returns the
// terminal job. The error is the job's typed outcome.
func (s *Service) Execute(ctx context.Context, userID string, req domain.OperationRequest) (*domain.Job, error) {
	job, grant, err := s.submit(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	err = s.drive(ctx, job, grant)
	return job, err
}

// Status returns the persisted snapshot of a job owned by userID.
func (s *Service) Status(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.jobs.GetForUser(ctx, jobID, userID)
}

// Abandon stops local polling for a job. The provider job is not cancelled.
// It reports whether a running loop was stopped.
func (s *Service) Abandon(ctx context.Context, userID, jobID string) (bool, error) {
	if _, err := s.Status(ctx, userID, jobID); err != nil {
		return false, err
	}
	s.mu.Lock()
	cancel, ok := s.running[jobID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok, nil
}

// Running returns the number of jobs being polled.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown stops every polling loop and waits for them to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) forget(jobID string) {
	s.mu.Lock()
	delete(s.running, jobID)
	s.mu.Unlock()
}

func (s *Service) submit(ctx context.Context, userID string, req domain.OperationRequest) (*domain.Job, *Grant, error) {
	if !req.Kind.Valid() {
		return nil, nil, &domain.ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", req.Kind)}
	}
	if !s.adapter.Configured() {
		return nil, nil, domain.ErrNotConfigured
	}
	grant, err := s.gate.Authorize(ctx, userID, req.Kind)
	if err != nil {
		return nil, nil, err
	}
	if err := s.prepare(ctx, &req); err != nil {
		return nil, nil, err
	}

	job, err := s.adapter.Submit(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("kind", string(req.Kind)).Msg("jobs: submission rejected")
		return nil, nil, err
	}
	job.ID = uuid.NewString()
	job.UserID = userID
	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("prediction_id", job.Handle).Msg("jobs: persist job failed")
		return nil, nil, fmt.Errorf("persist job: %w", err)
	}
	s.metrics.jobSubmitted(job.Kind)
	s.logger.Info().
		Str("job_id", job.ID).
		Str("prediction_id", job.Handle).
		Str("kind", string(job.Kind)).
		Str("user_id", userID).
		Msg("jobs: prediction created")
	return job, grant, nil
}

// prepare uploads inline images for operations whose model only accepts URLs.
func (s *Service) prepare(ctx context.Context, req *domain.OperationRequest) error {
	filename, needsURL := inputFilenames[req.Kind]
	if !needsURL || strings.TrimSpace(req.ImageURL) != "" {
		return nil
	}
	if strings.TrimSpace(req.ImageData) == "" {
		return domain.Missing("image_data")
	}
	if s.blobs == nil {
		return errors.New("jobs: no blob store configured for url-only operations")
	}
	obj, err := s.blobs.Upload(ctx, req.ImageData, filename)
	if err != nil {
		return fmt.Errorf("upload input image: %w", err)
	}
	req.ImageURL = obj.URL
	return nil
}

// drive polls job to a terminal state, materializes a success and confirms
// the grant. A cancelled ctx leaves the job at its last observed state.
func (s *Service) drive(ctx context.Context, job *domain.Job, grant *Grant) error {
	pred, err := s.poller.Run(ctx, job, func(snap domain.Job) {
		s.persist(ctx, &snap)
	})
	if err != nil && ctx.Err() != nil && !job.State.Terminal() {
		s.logger.Info().Str("job_id", job.ID).Str("state", string(job.State)).Msg("jobs: polling abandoned")
		return err
	}

	if err == nil {
		err = s.complete(ctx, job, pred, grant)
	}

	s.persist(ctx, job)
	s.metrics.jobFinished(job)
	s.publish(ctx, job)
	return err
}

// complete runs after the provider reported success, so abandoning the job
// no longer interrupts result delivery.
func (s *Service) complete(ctx context.Context, job *domain.Job, pred *replicate.Prediction, grant *Grant) error {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), materializeTimeout)
	defer cancel()
	artifact, err := s.materializer.Materialize(mctx, job, pred)
	if err != nil {
		job.State = domain.JobStateFailed
		job.ErrorDetail = domain.ErrConversionFailed.Error()
		return &domain.JobError{State: domain.JobStateFailed, Err: err}
	}
	job.Result = artifact
	grant.Confirm(context.WithoutCancel(ctx))
	s.recordHistory(ctx, job)
	return nil
}

func (s *Service) recordHistory(ctx context.Context, job *domain.Job) {
	if s.images == nil || job.Result == nil {
		return
	}
	original := job.SourceURL
	if original == "" {
		original = "inline"
	}
	img := &domain.UserImage{
		UserID:       job.UserID,
		OriginalURL:  original,
		ProcessedURL: job.Result.URL,
		Operation:    domain.ImageOperation(job.Kind),
		FileName:     fmt.Sprintf("%s-%s.png", job.Kind, job.ID),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.images.Save(ctx, img); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: record image history failed")
	}
}

func (s *Service) persist(ctx context.Context, job *domain.Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Str("state", string(job.State)).Msg("jobs: persist snapshot failed")
	}
}

func (s *Service) publish(ctx context.Context, job *domain.Job) {
	evt := events.JobFinished{
		JobID:        job.ID,
		PredictionID: job.Handle,
		UserID:       job.UserID,
		Kind:         string(job.Kind),
		State:        string(job.State),
		Progress:     job.Progress,
		Error:        job.ErrorDetail,
		FinishedAt:   time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.events.PublishJobFinished(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: publish event failed")
	}
}
