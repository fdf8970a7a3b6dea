package handler

import (
	"net/http"

	"github.com/vipplay/articleforge/internal/api/response"
	"github.com/vipplay/articleforge/internal/limiter"
)

// NewSystemStatusHandler returns an http.HandlerFunc for GET /api/v1/status.
// It reports generation capacity: how many backend calls are in flight, the
// limiter ceiling, and whether submissions go through the durable queue.
func NewSystemStatusHandler(lim *limiter.Limiter, queueConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inFlight := lim.InFlight()
		capacity := lim.Capacity()
		available := capacity - inFlight
		if available < 0 {
			available = 0
		}

		response.JSON(w, map[string]any{
			"active_generations": inFlight,
			"max_concurrent":     capacity,
			"available_slots":    available,
			"queue_configured":   queueConfigured,
		})
	}
}
