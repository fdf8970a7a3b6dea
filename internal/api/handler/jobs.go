package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/vipplay/articleforge/internal/api/middleware"
	"github.com/vipplay/articleforge/internal/api/response"
	"github.com/vipplay/articleforge/internal/orchestrate"
	"github.com/vipplay/articleforge/internal/store"
)

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The response carries the result artifact once one exists, including the
// preserved output of a cancelled job.
func NewGetJobHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, jobID, ok := ownerAndJobID(w, r)
		if !ok {
			return
		}

		job, result, err := svc.Get(r.Context(), ownerID, jobID)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, toJobDetailView(job, result))
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/status, a lightweight poll target.
func NewJobStatusHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, jobID, ok := ownerAndJobID(w, r)
		if !ok {
			return
		}

		status, err := svc.Status(r.Context(), ownerID, jobID)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, map[string]any{
			"id":     jobID,
			"status": status,
		})
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Supports status, kind, page, and limit query parameters.
func NewListJobsHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		q := r.URL.Query()
		filter := store.JobFilter{
			OwnerID: ownerID,
			Status:  q.Get("status"),
			Kind:    q.Get("kind"),
		}
		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		if filter.Page <= 0 {
			filter.Page = 1
		}
		if filter.Limit <= 0 {
			filter.Limit = 20
		}

		jobs, total, err := svc.List(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}

		views := make([]jobView, 0, len(jobs))
		for _, job := range jobs {
			views = append(views, toJobView(job))
		}
		response.Collection(w, views, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for
// DELETE /api/v1/jobs/{jobID}. Cancelling an already finished job is a 409.
func NewCancelJobHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, jobID, ok := ownerAndJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.Cancel(r.Context(), ownerID, jobID)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.JSON(w, toJobView(job))
	}
}

// ownerAndJobID extracts the authenticated owner and the jobID path param,
// writing the error response itself when either is missing.
func ownerAndJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := mw.GetOwnerID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
		return uuid.Nil, uuid.Nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, jobID, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, orchestrate.ErrNotCancellable):
		response.Error(w, http.StatusConflict, "NOT_CANCELLABLE", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Job operation failed", nil)
	}
}
