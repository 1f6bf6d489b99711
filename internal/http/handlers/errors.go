package handlers

import (
	"errors"
	"net/http"

	"aieditor/internal/domain"
	"aieditor/internal/middleware"
	"aieditor/internal/transfer"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// error writes {"error": {...}}. An empty message is replaced by the
// localized text for code.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if message == "" {
		message = localize(middleware.LocaleFromContext(r.Context()), code)
	}
	a.json(w, status, map[string]any{"error": errorBody{Code: code, Message: message}})
}

// fail maps a domain error onto its HTTP status and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	status, body := classify(err, locale)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Str("code", body.Code).Msg("request failed")
	}
	a.json(w, status, map[string]any{"error": body})
}

func classify(err error, locale string) (int, errorBody) {
	var (
		denial     *domain.DenialError
		validation *domain.ValidationError
		provider   *domain.ProviderError
	)
	switch {
	case errors.As(err, &denial):
		status := http.StatusForbidden
		if denial.Reason == domain.DenialNotSignedIn {
			status = http.StatusUnauthorized
		}
		code := string(denial.Reason)
		return status, errorBody{Code: code, Message: localize(locale, code)}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Code: "invalid_request", Message: validation.Error(), Field: validation.Field}
	case errors.As(err, &provider):
		return providerStatus(provider.Class), errorBody{
			Code:    "provider_" + string(provider.Class),
			Message: localize(locale, "provider_failure"),
			Detail:  provider.Message,
		}
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, errorBody{Code: "not_configured", Message: localize(locale, "not_configured")}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, transfer.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: localize(locale, "not_found")}
	case errors.Is(err, transfer.ErrEmptyPayload):
		return http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error(), Field: "image_data"}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal", Message: localize(locale, "internal")}
	}
}

// providerStatus maps a provider failure to the caller's status. A rejected
// provider credential is a gateway fault, never the caller's 401.
func providerStatus(class domain.FailureClass) int {
	switch class {
	case domain.FailureBadRequest:
		return http.StatusBadRequest
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
