package domain

import "time"

// OperationKind enumerates the AI transformations a job can perform.
type OperationKind string

const (
	OperationUpscale OperationKind = "upscale"
	OperationFill    OperationKind = "fill"
	OperationExpand  OperationKind = "expand"
)

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationUpscale, OperationFill, OperationExpand:
		return true
	}
	return false
}

// JobState enumerates the local job lifecycle states.
type JobState string

const (
	JobStateCreated    JobState = "created"
	JobStateStarting   JobState = "starting"
	JobStateProcessing JobState = "processing"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
	JobStateCanceled   JobState = "canceled"
	JobStateTimedOut   JobState = "timedOut"
)

// Terminal reports whether no further status queries may be issued.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled, JobStateTimedOut:
		return true
	}
	return false
}

// rank orders non-terminal states so observations never regress.
func (s JobState) rank() int {
	switch s {
	case JobStateCreated:
		return 0
	case JobStateStarting:
		return 1
	case JobStateProcessing:
		return 2
	default:
		return 3
	}
}

// Advance returns the later of s and next.
func (s JobState) Advance(next JobState) JobState {
	if next.rank() < s.rank() {
		return s
	}
	return next
}

// Artifact is a materialized job result.
type Artifact struct {
	URL         string `json:"url,omitempty"`
	DataURL     string `json:"data_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Cropped     bool   `json:"cropped,omitempty"`
}

// Job tracks one inference request through to a terminal outcome.
type Job struct {
	ID          string
	UserID      string
	Handle      string
	Kind        OperationKind
	State       JobState
	Progress    int
	Attempts    int
	Result      *Artifact
	ErrorDetail string
	Bounds      *Bounds
	Inline      bool
	SourceURL   string
	LateStatus  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
