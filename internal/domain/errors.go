package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotConfigured    = errors.New("provider credential not configured")
	ErrTimedOut         = errors.New("timed out waiting for result, please retry")
	ErrConversionFailed = errors.New("failed to retrieve result")
	ErrProviderFailure  = errors.New("provider failure")
	ErrPredictionFailed = errors.New("prediction failed")
	ErrCanceled         = errors.New("prediction canceled")
)

// ValidationError reports a missing or malformed OperationRequest field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// Missing is shorthand for a ValidationError on an absent field.
func Missing(field string) error {
	return &ValidationError{Field: field}
}

// DenialReason distinguishes why the operation gate refused a request.
type DenialReason string

const (
	DenialNotSignedIn          DenialReason = "not_signed_in"
	DenialSubscriptionRequired DenialReason = "subscription_required"
	DenialQuotaExhausted       DenialReason = "quota_exhausted"
)

// DenialError is a normal control-flow outcome, not a system failure.
type DenialError struct {
	Reason  DenialReason
	Feature Feature
}

func (e *DenialError) Error() string {
	switch e.Reason {
	case DenialNotSignedIn:
		return "sign in required"
	case DenialSubscriptionRequired:
		return "pro subscription required"
	case DenialQuotaExhausted:
		return fmt.Sprintf("%s quota exhausted", e.Feature)
	default:
		return "operation not permitted"
	}
}

// FailureClass is the HTTP-equivalent class of a provider rejection.
type FailureClass string

const (
	FailureBadRequest   FailureClass = "bad_request"
	FailureUnauthorized FailureClass = "unauthorized"
	FailureRateLimited  FailureClass = "rate_limited"
	FailureBilling      FailureClass = "billing"
	FailureServer       FailureClass = "server_error"
)

// ProviderError carries the provider's own message verbatim.
type ProviderError struct {
	Class      FailureClass
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (status %d): %s", e.Class, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderFailure
}

// ClassifyStatus maps a provider HTTP status onto a FailureClass.
func ClassifyStatus(status int) FailureClass {
	switch {
	case status == 401 || status == 403:
		return FailureUnauthorized
	case status == 402:
		return FailureBilling
	case status == 429:
		return FailureRateLimited
	case status >= 400 && status < 500:
		return FailureBadRequest
	default:
		return FailureServer
	}
}

// JobError is the terminal outcome of a job that did not succeed.
type JobError struct {
	State  JobState
	Detail string
	Err    error
}

func (e *JobError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
