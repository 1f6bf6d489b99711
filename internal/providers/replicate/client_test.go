package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"aieditor/internal/domain"
)

type captureTransport struct {
	responses map[string]responseStub
	lastPath  string
	lastBody  []byte
	lastAuth  string
}

type responseStub struct {
	status int
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastPath = req.URL.Path
	c.lastAuth = req.Header.Get("Authorization")
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	stub, ok := c.responses[req.Method+" "+req.URL.Path]
	if !ok {
		stub = responseStub{status: http.StatusNotFound, body: []byte(`{"detail":"not found"}`)}
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(stub.body)),
	}, nil
}

func (c *captureTransport) setJSON(method, path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[method+" "+path] = responseStub{status: status, body: body}
}

func newTestClient(transport *captureTransport) *Client {
	return NewClient(Options{
		APIToken:   "r8_test",
		BaseURL:    "https://api.example.test/v1/",
		HTTPClient: &http.Client{Transport: transport},
	})
}

func TestCreatePredictionWithVersionHash(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSON(http.MethodPost, "/v1/predictions", http.StatusCreated, map[string]any{"id": "pred-1", "status": "starting"})

	client := newTestClient(transport)
	pred, err := client.CreatePrediction(context.Background(), "abc123", map[string]any{"image": "https://cdn.example.com/a.png"})
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if pred.ID != "pred-1" || pred.Status != StatusStarting {
		t.Fatalf("prediction = %+v", pred)
	}
	if transport.lastAuth != "Bearer r8_test" {
		t.Fatalf("authorization = %q", transport.lastAuth)
	}
	var sent createRequest
	if err := json.Unmarshal(transport.lastBody, &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.Version != "abc123" {
		t.Fatalf("version = %q, want abc123", sent.Version)
	}
	if sent.Input["image"] != "https://cdn.example.com/a.png" {
		t.Fatalf("input image = %v", sent.Input["image"])
	}
}

func TestCreatePredictionVersionRouting(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		wantPath    string
		wantVersion string
	}{
		{name: "owner name uses model endpoint", version: "luma/reframe-image", wantPath: "/v1/models/luma/reframe-image/predictions"},
		{name: "pinned reference strips owner", version: "owner/model:deadbeef", wantPath: "/v1/predictions", wantVersion: "deadbeef"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			transport.setJSON(http.MethodPost, tc.wantPath, http.StatusCreated, map[string]any{"id": "pred-2", "status": "starting"})
			if _, err := newTestClient(transport).CreatePrediction(context.Background(), tc.version, map[string]any{}); err != nil {
				t.Fatalf("CreatePrediction error: %v", err)
			}
			if transport.lastPath != tc.wantPath {
				t.Fatalf("path = %q, want %q", transport.lastPath, tc.wantPath)
			}
			var sent createRequest
			_ = json.Unmarshal(transport.lastBody, &sent)
			if sent.Version != tc.wantVersion {
				t.Fatalf("version = %q, want %q", sent.Version, tc.wantVersion)
			}
		})
	}
}

func TestCreatePredictionClassifiesRejections(t *testing.T) {
	tests := []struct {
		status int
		class  domain.FailureClass
	}{
		{status: http.StatusUnauthorized, class: domain.FailureUnauthorized},
		{status: http.StatusPaymentRequired, class: domain.FailureBilling},
		{status: http.StatusTooManyRequests, class: domain.FailureRateLimited},
		{status: http.StatusUnprocessableEntity, class: domain.FailureBadRequest},
		{status: http.StatusBadGateway, class: domain.FailureServer},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			transport.setJSON(http.MethodPost, "/v1/predictions", tc.status, map[string]any{"title": "x", "detail": "provider says no"})
			_, err := newTestClient(transport).CreatePrediction(context.Background(), "abc", nil)
			var perr *domain.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if perr.Class != tc.class {
				t.Fatalf("class = %q, want %q", perr.Class, tc.class)
			}
			if perr.Message != "provider says no" {
				t.Fatalf("message = %q", perr.Message)
			}
			if !errors.Is(err, domain.ErrProviderFailure) {
				t.Fatalf("expected ErrProviderFailure in chain")
			}
		})
	}
}

func TestClientWithoutTokenIsNotConfigured(t *testing.T) {
	client := NewClient(Options{})
	if client.HasCredentials() {
		t.Fatalf("client should report missing credentials")
	}
	if _, err := client.CreatePrediction(context.Background(), "abc", nil); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("CreatePrediction err = %v, want ErrNotConfigured", err)
	}
	if _, err := client.GetPrediction(context.Background(), "pred-1"); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("GetPrediction err = %v, want ErrNotConfigured", err)
	}
}

func TestGetPrediction(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSON(http.MethodGet, "/v1/predictions/pred-9", http.StatusOK, map[string]any{
		"id":     "pred-9",
		"status": "succeeded",
		"output": []string{"https://replicate.delivery/out.png"},
		"logs":   "step 1\nstep 2\n",
	})
	pred, err := newTestClient(transport).GetPrediction(context.Background(), "pred-9")
	if err != nil {
		t.Fatalf("GetPrediction error: %v", err)
	}
	urls := pred.OutputURLs()
	if len(urls) != 1 || urls[0] != "https://replicate.delivery/out.png" {
		t.Fatalf("output urls = %v", urls)
	}
	if pred.LogTail(1) != "step 2" {
		t.Fatalf("log tail = %q", pred.LogTail(1))
	}
}

func TestOutputURLsShapes(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{name: "single string", output: `"https://x/y.png"`, want: 1},
		{name: "list", output: `["https://x/1.png","https://x/2.png"]`, want: 2},
		{name: "null", output: `null`, want: 0},
		{name: "empty", output: ``, want: 0},
		{name: "object", output: `{"url":"https://x"}`, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Prediction{Output: json.RawMessage(tc.output)}
			if got := len(p.OutputURLs()); got != tc.want {
				t.Fatalf("len = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestErrorText(t *testing.T) {
	if got := (Prediction{Error: "NSFW content detected"}).ErrorText(); got != "NSFW content detected" {
		t.Fatalf("string error = %q", got)
	}
	if got := (Prediction{Error: map[string]any{"message": "bad input"}}).ErrorText(); got != "bad input" {
		t.Fatalf("map error = %q", got)
	}
	if got := (Prediction{}).ErrorText(); got != "" {
		t.Fatalf("nil error = %q", got)
	}
}
