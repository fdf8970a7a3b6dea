package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/vipplay/articleforge/internal/api/middleware"
	"github.com/vipplay/articleforge/internal/api/response"
	"github.com/vipplay/articleforge/internal/orchestrate"
)

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/generate.
// The job is admitted and queued; the 202 body carries its id and advisory
// queue position.
func NewGenerateHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var body generationRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		job, err := svc.Submit(r.Context(), ownerID, body.toModel())
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		response.Accepted(w, toJobView(job))
	}
}

// writeSubmitError maps orchestration errors to API responses. Shared by the
// single and bulk submission handlers.
func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrate.ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, orchestrate.ErrBudgetExhausted):
		response.Error(w, http.StatusTooManyRequests, "BUDGET_EXHAUSTED", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit job", nil)
	}
}
