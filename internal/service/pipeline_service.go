package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/bus"
	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/envelope"
	"github.com/imagehub/storage-pipeline/internal/repository"
)

// IngestResult summarises one transport batch: how many events entered the
// pipeline and how many raw records were dropped as malformed.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// PipelineService coordinates the normalizer and the subscription bus.
// Handlers and workers depend on this service, not on each other.
type PipelineService struct {
	bus    *bus.Bus
	repo   repository.RecordRepository
	logger *zap.Logger

	// onAccepted and onMalformed count normalized and dropped raw
	// records respectively (nil = no-op).
	onAccepted  func()
	onMalformed func()
}

func NewPipelineService(
	b *bus.Bus,
	repo repository.RecordRepository,
	logger *zap.Logger,
	onAccepted func(),
	onMalformed func(),
) *PipelineService {
	if onAccepted == nil {
		onAccepted = func() {}
	}
	if onMalformed == nil {
		onMalformed = func() {}
	}
	return &PipelineService{bus: b, repo: repo, logger: logger, onAccepted: onAccepted, onMalformed: onMalformed}
}

// Ingest decodes one raw transport batch, normalizes every record, and
// publishes the resulting events. Failures are handled at the smallest
// scope: a malformed record is logged and dropped while its siblings in
// the same batch and notification proceed. Only an undecodable outer
// envelope fails the call.
func (s *PipelineService) Ingest(ctx context.Context, body []byte) (IngestResult, error) {
	env, err := envelope.DecodeTransport(body)
	if err != nil {
		return IngestResult{}, err
	}

	receivedAt := time.Now().UTC()
	var result IngestResult

	for _, raw := range env.Records {
		events, errs := envelope.Normalize(raw, receivedAt)
		for _, nerr := range errs {
			s.logger.Warn("dropping malformed record", zap.Error(nerr))
			s.onMalformed()
			result.Dropped++
		}
		for _, ev := range events {
			s.bus.Publish(ctx, ev)
			s.onAccepted()
			result.Accepted++
		}
	}
	return result, nil
}

func (s *PipelineService) GetRecord(ctx context.Context, key string) (*domain.Record, error) {
	return s.repo.GetByKey(ctx, key)
}

func (s *PipelineService) ListRecords(ctx context.Context, filter domain.ListFilter) ([]*domain.Record, int, error) {
	return s.repo.List(ctx, filter)
}
