package service

import (
	"context"
	"errors"
	"strings"
	"time"

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

// ApprovalService moves pending results to their terminal approval outcome.
type ApprovalService interface {
	Approve(ctx context.Context, resultID uint, actor Actor) (dto.ResultResponse, error)
	Reject(ctx context.Context, resultID uint, reason string, actor Actor) (dto.ResultResponse, error)
	ListPending(ctx context.Context, filter dto.PendingGradeFilter) ([]dto.ResultResponse, error)
}

type approvalService struct {
	results   repository.ResultRepository
	cache     CacheInvalidator
	sanitizer *bluemonday.Policy
	audit     AuditRecorder
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewApprovalService constructs the approval gate.
func NewApprovalService(results repository.ResultRepository, cache CacheInvalidator, audit AuditRecorder, events EventPublisher, logger zerolog.Logger) ApprovalService {
	return &approvalService{
		results:   results,
		cache:     cache,
		sanitizer: bluemonday.StrictPolicy(),
		audit:     audit,
		events:    events,
		logger:    logger.With().Str("component", "approval_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sma-results-api/internal/service/approval"),
		now:       time.Now,
	}
}

func (s *approvalService) Approve(ctx context.Context, resultID uint, actor Actor) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.approve", trace.WithAttributes(
		attribute.Int64("approval.result_id", int64(resultID)),
		attribute.Int64("approval.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanApproveResults() {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.ResultResponse{}, ErrNotApprover
	}

	approvedAt := s.now()
	affected, err := s.results.TransitionStatus(ctx, resultID, models.ResultStatusPending, map[string]interface{}{
		"approval_status": models.ResultStatusApproved,
		"approved_by":     actor.ID,
		"approved_at":     approvedAt,
	})
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}
	if affected == 0 {
		return dto.ResultResponse{}, s.transitionConflict(ctx, resultID, span)
	}

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	observability.ResultTransitions().WithLabelValues(models.ResultStatusPending, models.ResultStatusApproved).Inc()
	s.recordDecision(ctx, actor, result, "result.approved", nil)

	if s.events != nil {
		s.events.Publish(ctx, EventResultApproved, map[string]interface{}{
			"result_id": result.ID,
			"exam_id":   result.ExamID,
		})
	}
	if s.cache != nil {
		s.cache.InvalidateExam(ctx, result.ExamID)
	}

	return dto.NewResultResponse(result), nil
}

func (s *approvalService) Reject(ctx context.Context, resultID uint, reason string, actor Actor) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.reject", trace.WithAttributes(
		attribute.Int64("approval.result_id", int64(resultID)),
		attribute.Int64("approval.officer_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanApproveResults() {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.ResultResponse{}, ErrNotApprover
	}

	cleanReason := strings.TrimSpace(s.sanitizer.Sanitize(reason))
	if cleanReason == "" {
		span.SetStatus(codes.Error, "reason_missing")
		return dto.ResultResponse{}, ErrReasonRequired
	}

	// Clearing active frees the (student, subject, exam) slot so the
	// teacher can resubmit a corrected grade.
	affected, err := s.results.TransitionStatus(ctx, resultID, models.ResultStatusPending, map[string]interface{}{
		"approval_status":  models.ResultStatusRejected,
		"rejection_reason": cleanReason,
		"approved_by":      actor.ID,
		"approved_at":      s.now(),
		"active":           nil,
	})
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}
	if affected == 0 {
		return dto.ResultResponse{}, s.transitionConflict(ctx, resultID, span)
	}

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	observability.ResultTransitions().WithLabelValues(models.ResultStatusPending, models.ResultStatusRejected).Inc()
	s.recordDecision(ctx, actor, result, "result.rejected", map[string]interface{}{"reason": cleanReason})

	if s.events != nil {
		s.events.Publish(ctx, EventResultRejected, map[string]interface{}{
			"result_id": result.ID,
			"exam_id":   result.ExamID,
			"reason":    cleanReason,
		})
	}
	if s.cache != nil {
		s.cache.InvalidateExam(ctx, result.ExamID)
	}

	return dto.NewResultResponse(result), nil
}

func (s *approvalService) ListPending(ctx context.Context, filter dto.PendingGradeFilter) ([]dto.ResultResponse, error) {
	results, err := s.results.ListPending(ctx, repository.PendingResultFilter{
		ExamID:    filter.ExamID,
		SubjectID: filter.SubjectID,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewResultResponseSlice(results), nil
}

// transitionConflict distinguishes a missing result from one that has already
// been decided, possibly by a concurrent officer.
func (s *approvalService) transitionConflict(ctx context.Context, resultID uint, span trace.Span) error {
	if _, err := s.results.GetByID(ctx, resultID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "result_not_found")
			return ErrResultNotFound
		}
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Error, "transition_conflict")
	return ErrInvalidTransition
}

func (s *approvalService) recordDecision(ctx context.Context, actor Actor, result models.Result, action string, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}

	metadata := map[string]interface{}{
		"student_id": result.StudentID,
		"subject_id": result.SubjectID,
		"exam_id":    result.ExamID,
	}
	for key, value := range extra {
		metadata[key] = value
	}

	id := result.ID
	s.audit.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     action,
		EntityType: "result",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
