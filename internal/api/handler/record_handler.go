package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/service"
)

// RecordHandler serves read access to persisted image records.
type RecordHandler struct {
	svc    *service.PipelineService
	logger *zap.Logger
}

func NewRecordHandler(svc *service.PipelineService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, logger: logger}
}

// GetByKey handles GET /api/v1/records/{key}
//
// @Summary  Get a record by resource key
// @Tags     records
// @Produce  json
// @Param    key  path      string  true  "Resource key (may contain slashes)"
// @Success  200  {object}  domain.Record
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/records/{key} [get]
func (h *RecordHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		respondError(w, http.StatusBadRequest, "resource key is required")
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), key)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// List handles GET /api/v1/records
//
// @Summary  List records with filtering and pagination
// @Tags     records
// @Produce  json
// @Param    extension  query     string  false  "Filter by extension"
// @Param    from       query     string  false  "Created after (RFC3339)"
// @Param    to         query     string  false  "Created before (RFC3339)"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/records [get]
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	records, total, err := h.svc.ListRecords(r.Context(), filter)
	if err != nil {
		h.logger.Error("list records failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if ext := q.Get("extension"); ext != "" {
		filter.Extension = &ext
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}
