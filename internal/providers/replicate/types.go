package replicate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider status vocabulary.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Prediction is the provider's job record.
type Prediction struct {
	ID        string          `json:"id"`
	Version   string          `json:"version,omitempty"`
	Status    string          `json:"status"`
	Input     map[string]any  `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     any             `json:"error,omitempty"`
	Logs      string          `json:"logs,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// OutputURLs normalizes the operation-dependent output shape: a single URL
// string or a list of URLs.
func (p Prediction) OutputURLs() []string {
	raw := strings.TrimSpace(string(p.Output))
	if raw == "" || raw == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, u := range list {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
		return out
	}
	return nil
}

// ErrorText returns the provider error message, if any.
func (p Prediction) ErrorText() string {
	switch v := p.Error.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg, ok := v["message"]; ok {
			return fmt.Sprintf("%v", msg)
		}
		if detail, ok := v["detail"]; ok {
			return fmt.Sprintf("%v", detail)
		}
	}
	b, _ := json.Marshal(p.Error)
	return string(b)
}

// LogTail returns the last n lines of the prediction logs.
func (p Prediction) LogTail(n int) string {
	logs := strings.TrimRight(p.Logs, "\n")
	if logs == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(logs, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
