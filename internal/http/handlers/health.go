package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if a.Jobs != nil {
		status["running_jobs"] = a.Jobs.Running()
	}
	a.json(w, http.StatusOK, status)
}
