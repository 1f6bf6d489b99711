package handlers

import (
	"net/http"
	"strings"

	"aieditor/internal/domain"
)

type imageRecordRequest struct {
	OriginalURL  string `json:"original_url"`
	ProcessedURL string `json:"processed_url"`
	Operation    string `json:"operation_type"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
}

var historyOperations = map[domain.ImageOperation]struct{}{
	domain.ImageOpBackgroundRemoval: {},
	domain.ImageOpUpscale:           {},
	domain.ImageOpExpand:            {},
	domain.ImageOpFill:              {},
}

func (a *App) ImagesList(w http.ResponseWriter, r *http.Request) {
	images, err := a.Images.ListByUser(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if images == nil {
		images = []domain.UserImage{}
	}
	a.json(w, http.StatusOK, map[string]any{"data": images})
}

// ImagesRecord stores a history row for an operation performed on the client.
func (a *App) ImagesRecord(w http.ResponseWriter, r *http.Request) {
	var req imageRecordRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validateImageRecord(req); err != nil {
		a.fail(w, r, err)
		return
	}
	img := &domain.UserImage{
		UserID:       a.currentUserID(r),
		OriginalURL:  strings.TrimSpace(req.OriginalURL),
		ProcessedURL: strings.TrimSpace(req.ProcessedURL),
		Operation:    domain.ImageOperation(req.Operation),
		FileName:     strings.TrimSpace(req.FileName),
		FileSize:     req.FileSize,
	}
	if err := a.Images.Save(r.Context(), img); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"data": img})
}

func validateImageRecord(req imageRecordRequest) error {
	switch {
	case strings.TrimSpace(req.OriginalURL) == "":
		return domain.Missing("original_url")
	case strings.TrimSpace(req.Operation) == "":
		return domain.Missing("operation_type")
	case strings.TrimSpace(req.FileName) == "":
		return domain.Missing("file_name")
	case req.FileSize <= 0:
		return domain.Missing("file_size")
	}
	if _, ok := historyOperations[domain.ImageOperation(req.Operation)]; !ok {
		return &domain.ValidationError{Field: "operation_type", Reason: "unsupported operation"}
	}
	return nil
}
