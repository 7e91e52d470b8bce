package handler

import (
	"net/http"

	"github.com/imagehub/storage-pipeline/internal/queue"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q   *queue.Queue
	dlq *queue.Queue
}

func NewMetricsHandler(q, dlq *queue.Queue) *MetricsHandler {
	return &MetricsHandler{q: q, dlq: dlq}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ready, inflight, delayed := h.q.Depths()
	deadReady, deadInflight, deadDelayed := h.dlq.Depths()
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{
			"ready":    ready,
			"inflight": inflight,
			"delayed":  delayed,
			"total":    ready + inflight + delayed,
		},
		"dead_letter_depth": deadReady + deadInflight + deadDelayed,
	})
}
