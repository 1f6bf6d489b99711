package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"aieditor/internal/domain"
	"aieditor/internal/providers/replicate"
)

type serviceFixture struct {
	predictor *fakePredictor
	ents      *fakeEntitlements
	jobs      *memoryJobs
	images    *memoryImages
	blobs     *fakeBlobs
	events    *recordingPublisher
	service   *Service
}

func newServiceFixture(t *testing.T, script func(string, int) (*replicate.Prediction, error), pollerOpts PollerOptions, client *http.Client, allowed []string) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		predictor: newFakePredictor(script),
		ents: &fakeEntitlements{byUser: map[string]*domain.Entitlement{
			"pro":  proUser("pro", 0, 10),
			"free": freeUser("free"),
		}},
		jobs:   newMemoryJobs(),
		images: &memoryImages{},
		blobs:  &fakeBlobs{},
		events: newRecordingPublisher(),
	}
	if pollerOpts.Sleep == nil {
		pollerOpts.Sleep = (&recordingSleep{}).Sleep
	}
	if client == nil {
		client = &http.Client{Transport: failingTransport{}}
	}
	metrics := NewMetrics(nil)
	f.service = NewService(Options{
		Gate:         NewGate(f.ents, metrics, nil),
		Adapter:      NewAdapter(f.predictor, testCatalog()),
		Poller:       NewPoller(f.predictor, pollerOpts),
		Materializer: NewMaterializer(MaterializerOptions{HTTPClient: client, AllowedHosts: allowed, Blobs: f.blobs}),
		Blobs:        f.blobs,
		Jobs:         f.jobs,
		Images:       f.images,
		Events:       f.events,
		Metrics:      metrics,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.service.Shutdown(ctx)
	})
	return f
}

func upscaleRequest() domain.OperationRequest {
	return domain.OperationRequest{Kind: domain.OperationUpscale, ImageData: "data:image/png;base64,aGVsbG8="}
}

func TestExecuteUpscaleSuccess(t *testing.T) {
	f := newServiceFixture(t, sequence(
		prediction("pred-1", replicate.StatusStarting),
		prediction("pred-1", replicate.StatusProcessing),
		succeededWith("pred-1", "https://replicate.delivery/up.png"),
	), PollerOptions{}, nil, nil)

	job, err := f.service.Execute(context.Background(), "pro", upscaleRequest())
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if job.State != domain.JobStateSucceeded || job.Progress != 100 {
		t.Fatalf("job = %s/%d", job.State, job.Progress)
	}
	if job.Result == nil || job.Result.URL != "https://replicate.delivery/up.png" {
		t.Fatalf("result = %+v", job.Result)
	}
	if len(f.blobs.uploads) != 1 || f.blobs.uploads[0] != "upscale-input.png" {
		t.Fatalf("inline input should be uploaded first: %v", f.blobs.uploads)
	}
	if got := f.predictor.inputs[0]["image"]; !strings.HasPrefix(got.(string), "https://cdn.example.com/") {
		t.Fatalf("provider received %v, want uploaded url", got)
	}
	if got := f.ents.incrementCount(); got != 1 {
		t.Fatalf("increments = %d, want 1", got)
	}
	if len(f.images.rows) != 1 || f.images.rows[0].Operation != domain.ImageOpUpscale {
		t.Fatalf("history = %+v", f.images.rows)
	}
	stored, err := f.service.Status(context.Background(), "pro", job.ID)
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if stored.State != domain.JobStateSucceeded {
		t.Fatalf("stored state = %s", stored.State)
	}
	evts, err := f.events.wait(1, time.Second)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if evts[0].RoutingKey() != "jobs.upscale.succeeded" {
		t.Fatalf("routing key = %s", evts[0].RoutingKey())
	}
}

func TestExecuteFailureNeverIncrements(t *testing.T) {
	f := newServiceFixture(t, sequence(
		prediction("pred-1", replicate.StatusProcessing),
		&replicate.Prediction{ID: "pred-1", Status: replicate.StatusFailed, Error: "model crashed"},
	), PollerOptions{}, nil, nil)

	job, err := f.service.Execute(context.Background(), "pro", upscaleRequest())
	if !errors.Is(err, domain.ErrPredictionFailed) {
		t.Fatalf("err = %v, want ErrPredictionFailed", err)
	}
	if job.State != domain.JobStateFailed || job.ErrorDetail != "model crashed" {
		t.Fatalf("job = %s %q", job.State, job.ErrorDetail)
	}
	if got := f.ents.incrementCount(); got != 0 {
		t.Fatalf("increments = %d, want 0", got)
	}
	if len(f.images.rows) != 0 {
		t.Fatalf("failed jobs must not be recorded in history")
	}
}

func TestExecuteTimeoutNeverIncrements(t *testing.T) {
	f := newServiceFixture(t, sequence(prediction("pred-1", replicate.StatusProcessing)), PollerOptions{MaxAttempts: 4}, nil, nil)
	job, err := f.service.Execute(context.Background(), "pro", upscaleRequest())
	if !errors.Is(err, domain.ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	if job.State != domain.JobStateTimedOut {
		t.Fatalf("state = %s", job.State)
	}
	if f.ents.incrementCount() != 0 {
		t.Fatalf("timed out jobs must not be charged")
	}
}

func TestExecuteConversionFailureIsDistinct(t *testing.T) {
	f := newServiceFixture(t, sequence(succeededWith("pred-1", "https://replicate.delivery/x.png")), PollerOptions{}, nil, nil)
	req := upscaleRequest()
	req.Inline = true

	job, err := f.service.Execute(context.Background(), "pro", req)
	if !errors.Is(err, domain.ErrConversionFailed) {
		t.Fatalf("err = %v, want ErrConversionFailed", err)
	}
	if errors.Is(err, domain.ErrPredictionFailed) {
		t.Fatalf("conversion failure must not look like a provider failure")
	}
	if job.State != domain.JobStateFailed || job.ErrorDetail != domain.ErrConversionFailed.Error() {
		t.Fatalf("job = %s %q", job.State, job.ErrorDetail)
	}
	if f.ents.incrementCount() != 0 {
		t.Fatalf("undelivered results must not be charged")
	}
}

func TestFreeTierExpandNeverReachesProvider(t *testing.T) {
	f := newServiceFixture(t, sequence(prediction("pred-1", replicate.StatusProcessing)), PollerOptions{}, nil, nil)
	_, err := f.service.Start(context.Background(), "free", domain.OperationRequest{
		Kind:     domain.OperationExpand,
		ImageURL: "https://cdn.example.com/in.png",
		Aspect:   domain.AspectWide,
	})
	var denial *domain.DenialError
	if !errors.As(err, &denial) || denial.Reason != domain.DenialSubscriptionRequired {
		t.Fatalf("err = %v, want subscription_required", err)
	}
	if got := f.predictor.createCount(); got != 0 {
		t.Fatalf("submission calls = %d, want 0", got)
	}
	if len(f.blobs.uploads) != 0 {
		t.Fatalf("denied requests must not upload")
	}
}

func TestMissingCredentialFailsBeforeGate(t *testing.T) {
	f := newServiceFixture(t, nil, PollerOptions{}, nil, nil)
	f.predictor.noCreds = true
	f.ents.getErr = errors.New("gate must not be consulted")
	_, err := f.service.Start(context.Background(), "pro", upscaleRequest())
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestStartRunsJobsIndependently(t *testing.T) {
	script := func(handle string, n int) (*replicate.Prediction, error) {
		switch handle {
		case "pred-1":
			if n < 3 {
				return prediction(handle, replicate.StatusProcessing), nil
			}
			return succeededWith(handle, "https://replicate.delivery/up.png"), nil
		default:
			if n < 1 {
				return prediction(handle, replicate.StatusStarting), nil
			}
			return &replicate.Prediction{ID: handle, Status: replicate.StatusFailed, Error: "bad image"}, nil
		}
	}
	f := newServiceFixture(t, script, PollerOptions{}, nil, nil)

	first, err := f.service.Start(context.Background(), "pro", upscaleRequest())
	if err != nil {
		t.Fatalf("Start upscale: %v", err)
	}
	second, err := f.service.Start(context.Background(), "pro", domain.OperationRequest{
		Kind:     domain.OperationExpand,
		ImageURL: "https://cdn.example.com/in.png",
		Aspect:   domain.AspectSquare,
	})
	if err != nil {
		t.Fatalf("Start expand: %v", err)
	}
	if first.State != domain.JobStateCreated || second.State != domain.JobStateCreated {
		t.Fatalf("started jobs should be created: %s %s", first.State, second.State)
	}

	evts, err := f.events.wait(2, 2*time.Second)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	states := map[string]string{}
	for _, e := range evts {
		states[e.JobID] = e.State
	}
	if states[first.ID] != "succeeded" || states[second.ID] != "failed" {
		t.Fatalf("states = %v", states)
	}
	if got := f.ents.incrementCount(); got != 1 {
		t.Fatalf("increments = %d, want 1", got)
	}
	if got := f.predictor.pollCount("pred-1"); got != 4 {
		t.Fatalf("upscale polls = %d, want 4", got)
	}
	if got := f.predictor.pollCount("pred-2"); got != 2 {
		t.Fatalf("expand polls = %d, want 2", got)
	}
}

func TestAbandonStopsLocalPolling(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	sleep := func(ctx context.Context, d time.Duration) error {
		once.Do(func() { close(release) })
		<-ctx.Done()
		return ctx.Err()
	}
	f := newServiceFixture(t, sequence(prediction("pred-1", replicate.StatusProcessing)), PollerOptions{Sleep: sleep}, nil, nil)

	job, err := f.service.Start(context.Background(), "pro", upscaleRequest())
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	<-release

	stopped, err := f.service.Abandon(context.Background(), "pro", job.ID)
	if err != nil || !stopped {
		t.Fatalf("Abandon = %v, %v", stopped, err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.service.Running() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("polling loop did not stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.predictor.pollCount("pred-1"); got != 1 {
		t.Fatalf("polls = %d, want 1", got)
	}
	stored, err := f.service.Status(context.Background(), "pro", job.ID)
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if stored.State.Terminal() {
		t.Fatalf("abandoned job should keep its last observed state, got %s", stored.State)
	}
	if f.ents.incrementCount() != 0 {
		t.Fatalf("abandoned jobs must not be charged")
	}
	select {
	case evt := <-f.events.ch:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

// gatedTransport blocks the result fetch until released or until the request
// context is cancelled.
type gatedTransport struct {
	started chan struct{}
	release chan struct{}
	body    []byte
}

func (g *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"image/png"}},
		Body:       io.NopCloser(bytes.NewReader(g.body)),
		Request:    req,
	}, nil
}

func TestAbandonDuringResultFetchStillDelivers(t *testing.T) {
	transport := &gatedTransport{started: make(chan struct{}), release: make(chan struct{}), body: pngBytes(4, 4)}
	f := newServiceFixture(t, sequence(succeededWith("pred-1", "https://replicate.delivery/up.png")),
		PollerOptions{}, &http.Client{Transport: transport}, []string{"replicate.delivery"})
	req := upscaleRequest()
	req.Inline = true

	job, err := f.service.Start(context.Background(), "pro", req)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	select {
	case <-transport.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("result fetch never started")
	}
	if _, err := f.service.Abandon(context.Background(), "pro", job.ID); err != nil {
		t.Fatalf("Abandon error: %v", err)
	}
	close(transport.release)

	evts, err := f.events.wait(1, 2*time.Second)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if evts[0].State != string(domain.JobStateSucceeded) {
		t.Fatalf("event state = %s, want succeeded", evts[0].State)
	}
	stored, err := f.service.Status(context.Background(), "pro", job.ID)
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if stored.State != domain.JobStateSucceeded || stored.Result == nil || stored.Result.DataURL == "" {
		t.Fatalf("stored = %s %+v", stored.State, stored.Result)
	}
	if got := f.ents.incrementCount(); got != 1 {
		t.Fatalf("increments = %d, want 1", got)
	}
}

func TestStatusHidesOtherUsersJobs(t *testing.T) {
	f := newServiceFixture(t, sequence(succeededWith("pred-1", "https://replicate.delivery/up.png")), PollerOptions{}, nil, nil)
	job, err := f.service.Execute(context.Background(), "pro", upscaleRequest())
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if _, err := f.service.Status(context.Background(), "free", job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := f.service.Status(context.Background(), "pro", "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
