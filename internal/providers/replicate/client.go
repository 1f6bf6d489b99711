package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Options configures the Replicate predictions client.
type Options struct {
	APIToken       string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// CreatePrediction starts a prediction. A version containing ":" or a bare
// hash is sent to /predictions; an owner/name reference runs the model's
// latest version through /models/{owner}/{name}/predictions.
func (c *Client) CreatePrediction(ctx context.Context, version string, input map[string]any) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrNotConfigured
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, errors.New("replicate: model version is required")
	}

	endpoint := c.baseURL + "/predictions"
	payload := createRequest{Input: input}
	switch {
	case strings.Contains(version, ":"):
		payload.Version = version[strings.LastIndex(version, ":")+1:]
	case strings.Contains(version, "/"):
		endpoint = fmt.Sprintf("%s/models/%s/predictions", c.baseURL, version)
	default:
		payload.Version = version
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("version", version).
		Int("body_bytes", len(body)).
		Msg("replicate: creating prediction")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var prediction Prediction
	if err := c.do(req, &prediction, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	if prediction.ID == "" {
		return nil, errors.New("replicate: prediction id missing from response")
	}
	c.logger.Debug().Str("prediction_id", prediction.ID).Str("status", prediction.Status).Msg("replicate: prediction created")
	return &prediction, nil
}

// GetPrediction fetches the current status of a prediction by handle.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("replicate: prediction id is required")
	}
	endpoint := c.baseURL + "/predictions/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	var prediction Prediction
	if err := c.do(req, &prediction, http.StatusOK); err != nil {
		return nil, err
	}
	return &prediction, nil
}

func (c *Client) do(req *http.Request, out any, accepted ...int) error {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}

	ok := false
	for _, code := range accepted {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		message := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			message = detail.Detail
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("detail", message).Msg("replicate: request rejected")
		return &domain.ProviderError{
			Class:      domain.ClassifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}
