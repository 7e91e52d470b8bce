package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/imagehub/storage-pipeline/internal/api/middleware"
	"github.com/imagehub/storage-pipeline/internal/service"
)

// IngestHandler accepts raw storage-notification envelopes and hands them
// to the pipeline for normalization and fan-out.
type IngestHandler struct {
	svc    *service.PipelineService
	logger *zap.Logger
}

func NewIngestHandler(svc *service.PipelineService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, logger: logger}
}

// Ingest handles POST /api/v1/events
//
// @Summary     Ingest a storage notification envelope
// @Tags        events
// @Accept      json
// @Produce     json
// @Success     202  {object}  service.IngestResult
// @Failure     400  {object}  map[string]string
// @Router      /api/v1/events [post]
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.svc.Ingest(r.Context(), body)
	if err != nil {
		h.logger.Warn("ingest rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, result)
}
