package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type transferRequest struct {
	ImageData string `json:"image_data"`
}

// TransferCreate parks an image for the editor page to pick up once.
func (a *App) TransferCreate(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !a.decode(w, r, &req) {
		return
	}
	ticket, err := a.Transfers.Put(r.Context(), req.ImageData)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, ticket)
}

// TransferClaim returns and forgets a parked image.
func (a *App) TransferClaim(w http.ResponseWriter, r *http.Request) {
	payload, err := a.Transfers.Take(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"image_data": payload})
}
