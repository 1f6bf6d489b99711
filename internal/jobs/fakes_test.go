package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"aieditor/internal/domain"
	"aieditor/internal/events"
	"aieditor/internal/infra"
	"aieditor/internal/providers/replicate"
	"aieditor/internal/storage"
)

type fakePredictor struct {
	mu        sync.Mutex
	noCreds   bool
	createErr error
	versions  []string
	inputs    []map[string]any
	polls     map[string]int
	script    func(handle string, n int) (*replicate.Prediction, error)
}

func newFakePredictor(script func(handle string, n int) (*replicate.Prediction, error)) *fakePredictor {
	return &fakePredictor{polls: map[string]int{}, script: script}
}

func (f *fakePredictor) HasCredentials() bool { return !f.noCreds }

func (f *fakePredictor) CreatePrediction(ctx context.Context, version string, input map[string]any) (*replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, version)
	f.inputs = append(f.inputs, input)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &replicate.Prediction{ID: fmt.Sprintf("pred-%d", len(f.inputs)), Status: replicate.StatusStarting}, nil
}

func (f *fakePredictor) GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error) {
	f.mu.Lock()
	n := f.polls[id]
	f.polls[id] = n + 1
	script := f.script
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return script(id, n)
}

func (f *fakePredictor) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakePredictor) pollCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[id]
}

func prediction(id, status string) *replicate.Prediction {
	return &replicate.Prediction{ID: id, Status: status}
}

func succeededWith(id, url string) *replicate.Prediction {
	return &replicate.Prediction{ID: id, Status: replicate.StatusSucceeded, Output: []byte(`"` + url + `"`)}
}

// sequence replays statuses in order and repeats the last one.
func sequence(statuses ...*replicate.Prediction) func(string, int) (*replicate.Prediction, error) {
	return func(_ string, n int) (*replicate.Prediction, error) {
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		return statuses[n], nil
	}
}

type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

type fakeEntitlements struct {
	mu         sync.Mutex
	byUser     map[string]*domain.Entitlement
	getErr     error
	incErr     error
	increments []domain.Feature
}

func (f *fakeEntitlements) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	ent, ok := f.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ent, nil
}

func (f *fakeEntitlements) IncrementUsage(ctx context.Context, userID string, feature domain.Feature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments = append(f.increments, feature)
	return f.incErr
}

func (f *fakeEntitlements) incrementCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.increments)
}

func proUser(id string, used, quota int) *domain.Entitlement {
	return &domain.Entitlement{
		UserID: id,
		Tier:   domain.TierPro,
		Usage: map[domain.Feature]domain.Usage{
			domain.FeatureUpscale: {Used: used, Quota: quota},
			domain.FeatureExpand:  {Used: used, Quota: quota},
		},
	}
}

func freeUser(id string) *domain.Entitlement {
	return &domain.Entitlement{
		UserID: id,
		Tier:   domain.TierFree,
		Usage: map[domain.Feature]domain.Usage{
			domain.FeatureUpscale: {Quota: 10},
			domain.FeatureExpand:  {Quota: 10},
		},
	}
}

type memoryJobs struct {
	mu   sync.Mutex
	rows map[string]domain.Job
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{rows: map[string]domain.Job{}}
}

func (m *memoryJobs) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	m.rows[job.ID] = *job
	return nil
}

func (m *memoryJobs) Update(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[job.ID]; !ok {
		return domain.ErrNotFound
	}
	job.UpdatedAt = time.Now()
	m.rows[job.ID] = *job
	return nil
}

func (m *memoryJobs) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *memoryJobs) ListUncheckedTimedOut(ctx context.Context, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, job := range m.rows {
		if job.State == domain.JobStateTimedOut && job.LateStatus == "" {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memoryJobs) ExpireStale(ctx context.Context, staleAfter time.Duration, detail string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	var n int64
	for id, job := range m.rows {
		if job.State.Terminal() || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		job.State = domain.JobStateTimedOut
		job.ErrorDetail = detail
		job.UpdatedAt = time.Now()
		m.rows[id] = job
		n++
	}
	return n, nil
}

func (m *memoryJobs) SetLateStatus(ctx context.Context, jobID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.LateStatus = status
	m.rows[jobID] = job
	return nil
}

type memoryImages struct {
	mu   sync.Mutex
	rows []domain.UserImage
}

func (m *memoryImages) Save(ctx context.Context, img *domain.UserImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img.ID = fmt.Sprintf("img-%d", len(m.rows)+1)
	m.rows = append(m.rows, *img)
	return nil
}

func (m *memoryImages) ListByUser(ctx context.Context, userID string) ([]domain.UserImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.UserImage(nil), m.rows...), nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	uploads []string
	puts    int
	err     error
}

func (f *fakeBlobs) Upload(ctx context.Context, imageData, filename string) (storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Object{}, f.err
	}
	f.uploads = append(f.uploads, filename)
	key := fmt.Sprintf("%d-%s", len(f.uploads), filename)
	return storage.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (f *fakeBlobs) Put(ctx context.Context, filename string, data []byte, contentType string) (storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Object{}, f.err
	}
	f.puts++
	return storage.Object{Key: filename, URL: "https://cdn.example.com/results/" + filename}, nil
}

type recordingPublisher struct {
	ch chan events.JobFinished
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ch: make(chan events.JobFinished, 16)}
}

func (p *recordingPublisher) PublishJobFinished(ctx context.Context, evt events.JobFinished) error {
	p.ch <- evt
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) wait(n int, timeout time.Duration) ([]events.JobFinished, error) {
	var out []events.JobFinished
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case evt := <-p.ch:
			out = append(out, evt)
		case <-deadline:
			return out, errors.New("timed out waiting for events")
		}
	}
	return out, nil
}

func pngBytes(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testCatalog() infra.ModelCatalog {
	return infra.DefaultModelCatalog()
}
