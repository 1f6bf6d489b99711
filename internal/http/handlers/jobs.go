package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aieditor/internal/domain"
	"aieditor/internal/middleware"
)

type upscaleRequest struct {
	ImageData string `json:"image_data"`
	ImageURL  string `json:"image_url"`
	Inline    bool   `json:"inline"`
}

type fillRequest struct {
	Image   string          `json:"image"`
	Mask    string          `json:"mask"`
	Strokes []domain.Stroke `json:"strokes"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Prompt  string          `json:"prompt"`
	Inline  bool            `json:"inline"`
}

type expandRequest struct {
	ImageData    string         `json:"image_data"`
	ImageURL     string         `json:"image_url"`
	Prompt       string         `json:"prompt"`
	AspectRatio  string         `json:"aspect_ratio"`
	CustomBounds *domain.Bounds `json:"custom_bounds"`
	Inline       bool           `json:"inline"`
}

type jobAccepted struct {
	JobID        string `json:"job_id"`
	PredictionID string `json:"prediction_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
}

type jobView struct {
	JobID        string           `json:"job_id"`
	PredictionID string           `json:"prediction_id"`
	Operation    string           `json:"operation"`
	Status       string           `json:"status"`
	Progress     int              `json:"progress"`
	Attempts     int              `json:"attempts"`
	Result       *domain.Artifact `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
	Message      string           `json:"message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (a *App) JobsUpscale(w http.ResponseWriter, r *http.Request) {
	var req upscaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.startJob(w, r, domain.OperationRequest{
		Kind:      domain.OperationUpscale,
		ImageData: req.ImageData,
		ImageURL:  strings.TrimSpace(req.ImageURL),
		Inline:    req.Inline,
	})
}

func (a *App) JobsFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if !a.decode(w, r, &req) {
		return
	}
	op := domain.OperationRequest{
		Kind:      domain.OperationFill,
		ImageData: req.Image,
		Mask:      req.Mask,
		Prompt:    req.Prompt,
		Inline:    req.Inline,
	}
	if strings.TrimSpace(req.Mask) == "" && len(req.Strokes) > 0 {
		op.Strokes = &domain.StrokeMask{Width: req.Width, Height: req.Height, Strokes: req.Strokes}
	}
	a.startJob(w, r, op)
}

func (a *App) JobsExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.startJob(w, r, domain.OperationRequest{
		Kind:      domain.OperationExpand,
		ImageData: req.ImageData,
		ImageURL:  strings.TrimSpace(req.ImageURL),
		Prompt:    req.Prompt,
		Aspect:    domain.AspectPreset(strings.TrimSpace(req.AspectRatio)),
		Bounds:    req.CustomBounds,
		Inline:    req.Inline,
	})
}

func (a *App) startJob(w http.ResponseWriter, r *http.Request, req domain.OperationRequest) {
	job, err := a.Jobs.Start(r.Context(), a.currentUserID(r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, jobAccepted{
		JobID:        job.ID,
		PredictionID: job.Handle,
		Status:       string(job.State),
		Progress:     job.Progress,
	})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	job, err := a.Jobs.Status(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view := jobView{
		JobID:        job.ID,
		PredictionID: job.Handle,
		Operation:    string(job.Kind),
		Status:       string(job.State),
		Progress:     job.Progress,
		Attempts:     job.Attempts,
		Result:       job.Result,
		Error:        job.ErrorDetail,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if job.State.Terminal() && job.State != domain.JobStateSucceeded {
		view.Message = localize(middleware.LocaleFromContext(r.Context()), string(job.State))
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) JobAbandon(w http.ResponseWriter, r *http.Request) {
	stopped, err := a.Jobs.Abandon(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]bool{"stopped": stopped})
}
