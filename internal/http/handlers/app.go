package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/jobs"
	"aieditor/internal/middleware"
	"aieditor/internal/providers/replicate"
	"aieditor/internal/storage"
	"aieditor/internal/transfer"
)

const maxBodyBytes = 32 << 20

// PredictionReader is the provider status lookup behind the passthrough route.
type PredictionReader interface {
	GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

// Uploader stores inline images and returns their public location.
type Uploader interface {
	Upload(ctx context.Context, imageData, filename string) (storage.Object, error)
}

// App carries the dependencies shared by HTTP handlers.
type App struct {
	Config        *infra.Config
	Logger        infra.Logger
	Jobs          *jobs.Service
	Predictions   PredictionReader
	Users         domain.UserRepository
	Images        domain.ImageRepository
	Uploads       Uploader
	Transfers     transfer.Store
	CountryLookup middleware.CountryLookup
	Metrics       http.Handler
	JWTSecret     string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// decode reads a JSON body into dst. Unknown fields are ignored.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && err != io.EOF {
		a.error(w, r, http.StatusBadRequest, "bad_request", "")
		return false
	}
	return true
}
