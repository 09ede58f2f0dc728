package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"riderev/internal/plan"
	"riderev/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Problem titles shared across handlers. Error-kind responses go through
// writeError so the same kind always carries the same title.
const (
	titleInvalidJSON        = "Invalid JSON"
	titleInvalidInput       = "Invalid input"
	titleNotFound           = "Not found"
	titleSolverInconsistent = "Inconsistent solver result"
	titleRateLimited        = "Rate limit exceeded"
	titleInternal           = "Internal error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps a domain error onto its problem response.
func writeError(w http.ResponseWriter, err error, instance string) {
	switch {
	case errors.Is(err, plan.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, titleInvalidInput, err.Error(), instance)
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, titleNotFound, err.Error(), instance)
	case errors.Is(err, plan.ErrInconsistent):
		writeProblem(w, http.StatusInternalServerError, titleSolverInconsistent, err.Error(), instance)
	default:
		writeProblem(w, http.StatusInternalServerError, titleInternal, err.Error(), instance)
	}
}
