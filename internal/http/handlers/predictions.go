package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type predictionView struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
	Logs   string          `json:"logs,omitempty"`
}

// PredictionStatus relays the provider's view of a prediction for clients
// that poll on their own.
func (a *App) PredictionStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "prediction id required")
		return
	}
	pred, err := a.Predictions.GetPrediction(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	output := pred.Output
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	a.json(w, http.StatusOK, predictionView{
		ID:     pred.ID,
		Status: pred.Status,
		Output: output,
		Error:  pred.ErrorText(),
		Logs:   pred.LogTail(20),
	})
}
