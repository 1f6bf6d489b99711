package handlers

import (
	"errors"
	"net/http"
	"strings"

	"aieditor/internal/canvas"
	"aieditor/internal/storage"
)

type uploadRequest struct {
	ImageData string `json:"imageData"`
	Filename  string `json:"filename"`
}

func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		a.json(w, http.StatusBadRequest, map[string]any{"error": errorBody{Code: "invalid_request", Message: "imageData is required", Field: "imageData"}})
		return
	}
	obj, err := a.Uploads.Upload(r.Context(), req.ImageData, req.Filename)
	if err != nil {
		if errors.Is(err, canvas.ErrInvalidDataURL) || errors.Is(err, storage.ErrEmptyPayload) {
			a.json(w, http.StatusBadRequest, map[string]any{"error": errorBody{Code: "invalid_request", Message: err.Error(), Field: "imageData"}})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, obj)
}
