package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"aieditor/internal/canvas"
	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/providers/replicate"
	"aieditor/internal/storage"
)

const (
	defaultResultContentType = "image/jpeg"
	maxResultBytes           = 64 << 20
)

// Blobs stores re-encoded results.
type Blobs interface {
	Upload(ctx context.Context, imageData, filename string) (storage.Object, error)
	Put(ctx context.Context, filename string, data []byte, contentType string) (storage.Object, error)
}

// MaterializerOptions configures result conversion.
type MaterializerOptions struct {
	HTTPClient *http.Client
	// AllowedHosts limits which result hosts may be fetched. Subdomains of
	// an entry are accepted. An empty list accepts any host.
	AllowedHosts []string
	Blobs        Blobs
	Logger       *infra.Logger
}

// Materializer turns a succeeded prediction into the artifact the caller asked for.
type Materializer struct {
	client  *http.Client
	allowed []string
	blobs   Blobs
	logger  *infra.Logger
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(opts MaterializerOptions) *Materializer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	allowed := make([]string, 0, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed = append(allowed, h)
		}
	}
	return &Materializer{client: client, allowed: allowed, blobs: opts.Blobs, logger: logger}
}

// Materialize returns the provider URL as-is by default. Inline jobs get a
// data URL with the fetched content type. Expand jobs with custom bounds are
// center-cropped to those bounds. Any local fetch or decode problem wraps
// domain.ErrConversionFailed.
func (m *Materializer) Materialize(ctx context.Context, job *domain.Job, pred *replicate.Prediction) (*domain.Artifact, error) {
	urls := pred.OutputURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: prediction returned no output", domain.ErrConversionFailed)
	}
	resultURL := urls[0]
	crop := job.Kind == domain.OperationExpand && job.Bounds != nil

	if !crop && !job.Inline {
		return &domain.Artifact{URL: resultURL}, nil
	}

	data, contentType, err := m.fetch(ctx, resultURL)
	if err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", resultURL).Msg("jobs: result fetch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	if crop {
		return m.cropped(ctx, job, data)
	}

	artifact := &domain.Artifact{
		DataURL:     canvas.EncodeDataURL(contentType, data),
		ContentType: contentType,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		artifact.Width, artifact.Height = cfg.Width, cfg.Height
	}
	return artifact, nil
}

func (m *Materializer) cropped(ctx context.Context, job *domain.Job, data []byte) (*domain.Artifact, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", domain.ErrConversionFailed, err)
	}
	out := CenterCropToFill(img, *job.Bounds)
	encoded, err := canvas.EncodePNG(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}
	artifact := &domain.Artifact{
		ContentType: "image/png",
		Width:       job.Bounds.Width,
		Height:      job.Bounds.Height,
		Cropped:     true,
	}
	if job.Inline || m.blobs == nil {
		artifact.DataURL = canvas.EncodeDataURL("image/png", encoded)
		return artifact, nil
	}
	obj, err := m.blobs.Put(ctx, "expand-result.png", encoded, "image/png")
	if err != nil {
		return nil, fmt.Errorf("%w: store cropped result: %v", domain.ErrConversionFailed, err)
	}
	artifact.URL = obj.URL
	return artifact, nil
}

func (m *Materializer) fetch(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !m.hostAllowed(u.Hostname()) {
		return nil, "", fmt.Errorf("host %q is not allowed", u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxResultBytes {
		return nil, "", errors.New("result exceeds size limit")
	}
	return data, responseContentType(resp.Header.Get("Content-Type")), nil
}

func (m *Materializer) hostAllowed(host string) bool {
	if len(m.allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range m.allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func responseContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return defaultResultContentType
	}
	return mediaType
}
