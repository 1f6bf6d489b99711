package handlers

import (
	"errors"
	"net/http"
	"strings"

	"aieditor/internal/domain"
	"aieditor/internal/middleware"
)

type profileRequest struct {
	Email string `json:"email"`
}

func (a *App) ProfileGet(w http.ResponseWriter, r *http.Request) {
	ent, err := a.Users.GetEntitlement(r.Context(), a.currentUserID(r))
	if errors.Is(err, domain.ErrNotFound) {
		a.json(w, http.StatusOK, map[string]any{"data": nil})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"data": ent})
}

// ProfileCreate registers a free-tier profile with zero quotas. Calling it
// again refreshes the email and returns the existing counters.
func (a *App) ProfileCreate(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !a.decode(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = middleware.EmailFromContext(r.Context())
	}
	if email == "" {
		a.fail(w, r, domain.Missing("email"))
		return
	}
	ent, err := a.Users.CreateProfile(r.Context(), a.currentUserID(r), email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"data": ent})
}
