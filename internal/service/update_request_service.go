package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/observability"
	"github.com/noah-isme/sma-results-api/internal/repository"
)

// UpdateRequestService queues and resolves post-approval score changes.
// Once a result is published this queue is the only way its score moves.
type UpdateRequestService interface {
	Request(ctx context.Context, payload dto.RequestUpdateRequest, actor Actor) (dto.UpdateRequestResponse, error)
	ApproveUpdate(ctx context.Context, requestID uint, actor Actor) (dto.ResultResponse, error)
	RejectUpdate(ctx context.Context, requestID uint, reason string, actor Actor) (dto.UpdateRequestResponse, error)
	List(ctx context.Context, filter dto.UpdateRequestFilter) ([]dto.UpdateRequestResponse, error)
}

type updateRequestService struct {
	requests  repository.UpdateRequestRepository
	results   repository.ResultRepository
	bands     repository.GradeBandRepository
	cache     CacheInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	audit     AuditRecorder
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewUpdateRequestService constructs the update request queue.
func NewUpdateRequestService(requests repository.UpdateRequestRepository, results repository.ResultRepository, bands repository.GradeBandRepository, cache CacheInvalidator, validate *validator.Validate, audit AuditRecorder, events EventPublisher, logger zerolog.Logger) UpdateRequestService {
	return &updateRequestService{
		requests:  requests,
		results:   results,
		bands:     bands,
		cache:     cache,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		audit:     audit,
		events:    events,
		logger:    logger.With().Str("component", "update_request_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sma-results-api/internal/service/update_request"),
		now:       time.Now,
	}
}

func (s *updateRequestService) Request(ctx context.Context, payload dto.RequestUpdateRequest, actor Actor) (dto.UpdateRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "update_request.create", trace.WithAttributes(
		attribute.Int64("update_request.result_id", int64(payload.ResultID)),
		attribute.Int64("update_request.teacher_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.UpdateRequestResponse{}, err
	}

	cleanReason := strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))
	if cleanReason == "" {
		span.SetStatus(codes.Error, "reason_missing")
		return dto.UpdateRequestResponse{}, ErrReasonRequired
	}

	result, err := s.results.GetByID(ctx, payload.ResultID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "result_not_found")
			return dto.UpdateRequestResponse{}, ErrResultNotFound
		}
		span.RecordError(err)
		return dto.UpdateRequestResponse{}, err
	}

	if result.ApprovalStatus != models.ResultStatusApproved {
		span.SetStatus(codes.Error, "result_not_approved")
		return dto.UpdateRequestResponse{}, ErrResultNotApproved
	}

	if payload.NewScore > result.TotalScore {
		span.SetStatus(codes.Error, "score_exceeds_total")
		return dto.UpdateRequestResponse{}, ErrScoreExceedsTotal
	}

	request := models.ResultUpdateRequest{
		ResultID:     result.ID,
		CurrentScore: result.MarksObtained,
		NewScore:     payload.NewScore,
		Reason:       cleanReason,
		Status:       models.UpdateRequestStatusPending,
		RequestedBy:  actor.ID,
		RequestedAt:  s.now(),
	}

	if err := s.requests.Create(ctx, &request); err != nil {
		span.RecordError(err)
		return dto.UpdateRequestResponse{}, err
	}

	created, err := s.requests.GetByID(ctx, request.ID)
	if err != nil {
		span.RecordError(err)
		return dto.UpdateRequestResponse{}, err
	}

	s.record(ctx, actor, "update_request.created", created.ID, map[string]interface{}{
		"result_id": created.ResultID,
		"new_score": created.NewScore,
	})

	if s.events != nil {
		s.events.Publish(ctx, EventUpdateRequested, map[string]interface{}{
			"request_id": created.ID,
			"result_id":  created.ResultID,
		})
	}

	return dto.NewUpdateRequestResponse(created), nil
}

func (s *updateRequestService) ApproveUpdate(ctx context.Context, requestID uint, actor Actor) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "update_request.approve", trace.WithAttributes(
		attribute.Int64("update_request.id", int64(requestID)),
		attribute.Int64("update_request.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanApproveResults() {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.ResultResponse{}, ErrNotApprover
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "request_not_found")
			return dto.ResultResponse{}, ErrUpdateRequestNotFound
		}
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	bands, err := s.bands.List(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}
	letter := gradeLetterFor(bands, request.NewScore, request.Result.TotalScore)

	resolvedAt := s.now()
	resolved, applied, err := s.requests.ApproveWithScore(ctx, requestID, map[string]interface{}{
		"status":      models.UpdateRequestStatusApproved,
		"resolved_by": actor.ID,
		"resolved_at": resolvedAt,
	}, request.ResultID, request.NewScore, letter)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}
	if resolved == 0 {
		span.SetStatus(codes.Error, "transition_conflict")
		return dto.ResultResponse{}, ErrInvalidTransition
	}
	if applied == 0 {
		span.SetStatus(codes.Error, "result_not_approved")
		return dto.ResultResponse{}, ErrResultNotApproved
	}

	result, err := s.results.GetByID(ctx, request.ResultID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	observability.UpdateRequestResolutions().WithLabelValues(models.UpdateRequestStatusApproved).Inc()
	s.record(ctx, actor, "update_request.approved", requestID, map[string]interface{}{
		"result_id": result.ID,
		"old_score": request.CurrentScore,
		"new_score": request.NewScore,
	})

	if s.events != nil {
		s.events.Publish(ctx, EventUpdateRequestApproved, map[string]interface{}{
			"request_id": requestID,
			"result_id":  result.ID,
			"new_score":  request.NewScore,
		})
	}
	if s.cache != nil {
		s.cache.InvalidateExam(ctx, result.ExamID)
	}

	return dto.NewResultResponse(result), nil
}

func (s *updateRequestService) RejectUpdate(ctx context.Context, requestID uint, reason string, actor Actor) (dto.UpdateRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "update_request.reject", trace.WithAttributes(
		attribute.Int64("update_request.id", int64(requestID)),
		attribute.Int64("update_request.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanApproveResults() {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.UpdateRequestResponse{}, ErrNotApprover
	}

	cleanReason := strings.TrimSpace(s.sanitizer.Sanitize(reason))
	if cleanReason == "" {
		span.SetStatus(codes.Error, "reason_missing")
		return dto.UpdateRequestResponse{}, ErrReasonRequired
	}

	affected, err := s.requests.Resolve(ctx, requestID, map[string]interface{}{
		"status":          models.UpdateRequestStatusRejected,
		"resolution_note": cleanReason,
		"resolved_by":     actor.ID,
		"resolved_at":     s.now(),
	})
	if err != nil {
		span.RecordError(err)
		return dto.UpdateRequestResponse{}, err
	}
	if affected == 0 {
		if _, getErr := s.requests.GetByID(ctx, requestID); getErr != nil {
			if errors.Is(getErr, gorm.ErrRecordNotFound) {
				span.SetStatus(codes.Error, "request_not_found")
				return dto.UpdateRequestResponse{}, ErrUpdateRequestNotFound
			}
			span.RecordError(getErr)
			return dto.UpdateRequestResponse{}, getErr
		}
		span.SetStatus(codes.Error, "transition_conflict")
		return dto.UpdateRequestResponse{}, ErrInvalidTransition
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return dto.UpdateRequestResponse{}, err
	}

	observability.UpdateRequestResolutions().WithLabelValues(models.UpdateRequestStatusRejected).Inc()
	s.record(ctx, actor, "update_request.rejected", requestID, map[string]interface{}{
		"result_id": request.ResultID,
		"reason":    cleanReason,
	})

	if s.events != nil {
		s.events.Publish(ctx, EventUpdateRequestRejected, map[string]interface{}{
			"request_id": requestID,
			"result_id":  request.ResultID,
		})
	}

	return dto.NewUpdateRequestResponse(request), nil
}

func (s *updateRequestService) List(ctx context.Context, filter dto.UpdateRequestFilter) ([]dto.UpdateRequestResponse, error) {
	requests, err := s.requests.List(ctx, repository.UpdateRequestFilter{Status: filter.Status})
	if err != nil {
		return nil, err
	}

	return dto.NewUpdateRequestResponseSlice(requests), nil
}

func (s *updateRequestService) record(ctx context.Context, actor Actor, action string, requestID uint, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}

	id := requestID
	s.audit.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     action,
		EntityType: "update_request",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
