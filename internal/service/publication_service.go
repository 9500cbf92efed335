package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/observability"
	"github.com/noah-isme/sma-results-api/internal/repository"
)

// PublicationService flips batches of approved results to student-visible.
// Publication freezes direct edits; corrections then flow through the
// update request queue or an explicit unpublish.
type PublicationService interface {
	Publish(ctx context.Context, payload dto.PublishResultsRequest, actor Actor) (dto.PublishResultsResponse, error)
	Unpublish(ctx context.Context, payload dto.PublishResultsRequest, actor Actor) (dto.PublishResultsResponse, error)
}

type publicationService struct {
	results   repository.ResultRepository
	cache     CacheInvalidator
	validator *validator.Validate
	audit     AuditRecorder
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPublicationService constructs the publication gate.
func NewPublicationService(results repository.ResultRepository, cache CacheInvalidator, validate *validator.Validate, audit AuditRecorder, events EventPublisher, logger zerolog.Logger) PublicationService {
	return &publicationService{
		results:   results,
		cache:     cache,
		validator: validate,
		audit:     audit,
		events:    events,
		logger:    logger.With().Str("component", "publication_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sma-results-api/internal/service/publication"),
		now:       time.Now,
	}
}

func (s *publicationService) Publish(ctx context.Context, payload dto.PublishResultsRequest, actor Actor) (dto.PublishResultsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "publication.publish", trace.WithAttributes(
		attribute.Int64("publication.exam_id", int64(payload.ExamID)),
		attribute.Int64("publication.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.guard(payload, actor, span); err != nil {
		return dto.PublishResultsResponse{}, err
	}

	affected, err := s.results.PublishBatch(ctx, repository.ResultBatch{
		ExamID:    payload.ExamID,
		SubjectID: payload.SubjectID,
	}, s.now())
	if err != nil {
		span.RecordError(err)
		return dto.PublishResultsResponse{}, err
	}

	observability.PublicationBatchSize().Observe(float64(affected))
	s.record(ctx, actor, "results.published", payload, affected)

	if s.events != nil {
		s.events.Publish(ctx, EventResultsPublished, map[string]interface{}{
			"exam_id":  payload.ExamID,
			"affected": affected,
		})
	}
	if s.cache != nil {
		s.cache.InvalidateExam(ctx, payload.ExamID)
	}

	span.SetAttributes(attribute.Int64("publication.affected", affected))

	return dto.PublishResultsResponse{
		ExamID:    payload.ExamID,
		SubjectID: payload.SubjectID,
		Affected:  affected,
	}, nil
}

func (s *publicationService) Unpublish(ctx context.Context, payload dto.PublishResultsRequest, actor Actor) (dto.PublishResultsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "publication.unpublish", trace.WithAttributes(
		attribute.Int64("publication.exam_id", int64(payload.ExamID)),
		attribute.Int64("publication.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.guard(payload, actor, span); err != nil {
		return dto.PublishResultsResponse{}, err
	}

	affected, err := s.results.UnpublishBatch(ctx, repository.ResultBatch{
		ExamID:    payload.ExamID,
		SubjectID: payload.SubjectID,
	})
	if err != nil {
		span.RecordError(err)
		return dto.PublishResultsResponse{}, err
	}

	s.record(ctx, actor, "results.unpublished", payload, affected)

	if s.events != nil {
		s.events.Publish(ctx, EventResultsUnpublished, map[string]interface{}{
			"exam_id":  payload.ExamID,
			"affected": affected,
		})
	}
	if s.cache != nil {
		s.cache.InvalidateExam(ctx, payload.ExamID)
	}

	return dto.PublishResultsResponse{
		ExamID:    payload.ExamID,
		SubjectID: payload.SubjectID,
		Affected:  affected,
	}, nil
}

func (s *publicationService) guard(payload dto.PublishResultsRequest, actor Actor, span trace.Span) error {
	if !actor.CanApproveResults() {
		span.SetStatus(codes.Error, "permission_denied")
		return ErrNotApprover
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return err
	}

	return nil
}

func (s *publicationService) record(ctx context.Context, actor Actor, action string, payload dto.PublishResultsRequest, affected int64) {
	if s.audit == nil {
		return
	}

	metadata := map[string]interface{}{
		"exam_id":  payload.ExamID,
		"affected": affected,
	}
	if payload.SubjectID != nil {
		metadata["subject_id"] = *payload.SubjectID
	}

	s.audit.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     action,
		EntityType: "exam",
		EntityID:   &payload.ExamID,
		Metadata:   metadata,
	})
}
