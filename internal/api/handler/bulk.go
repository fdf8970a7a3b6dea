package handler

import (
	"encoding/json"
	"net/http"

	mw "github.com/vipplay/articleforge/internal/api/middleware"
	"github.com/vipplay/articleforge/internal/api/response"
	"github.com/vipplay/articleforge/pkg/topics"
)

const defaultExpandCount = 5

// NewBulkGenerateHandler returns an http.HandlerFunc for
// POST /api/v1/generate/bulk. Callers either supply the topic list directly
// or give a seed topic plus a count and let the server fan it out.
func NewBulkGenerateHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var body struct {
			generationRequestBody
			Topics    []string `json:"topics"`
			SeedTopic string   `json:"seed_topic"`
			Count     int      `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req := body.toModel()
		req.Topics = body.Topics
		if len(req.Topics) == 0 && body.SeedTopic != "" {
			count := body.Count
			if count <= 0 {
				count = defaultExpandCount
			}
			req.Topics = topics.Expand(body.SeedTopic, count)
		}

		job, err := svc.SubmitBulk(r.Context(), ownerID, req)
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		response.Accepted(w, toJobView(job))
	}
}
