package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
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

// CacheInvalidator drops cached exam listings after a lifecycle mutation.
type CacheInvalidator interface {
	InvalidateExam(ctx context.Context, examID uint)
}

// ResultService records grades and serves result listings.
type ResultService interface {
	CacheInvalidator
	SubmitGrade(ctx context.Context, payload dto.SubmitGradeRequest, actor Actor) (dto.ResultResponse, error)
	ListByExam(ctx context.Context, examID uint, showUnverified bool) ([]dto.ResultResponse, error)
	SetVerified(ctx context.Context, resultID uint, verified bool, actor Actor) (dto.ResultResponse, error)
}

type resultService struct {
	results   repository.ResultRepository
	bands     repository.GradeBandRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	audit     AuditRecorder
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewResultService constructs the result service.
func NewResultService(results repository.ResultRepository, bands repository.GradeBandRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, audit AuditRecorder, events EventPublisher, logger zerolog.Logger) ResultService {
	return &resultService{
		results:   results,
		bands:     bands,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		audit:     audit,
		events:    events,
		logger:    logger.With().Str("component", "result_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sma-results-api/internal/service/result"),
		now:       time.Now,
	}
}

func (s *resultService) SubmitGrade(ctx context.Context, payload dto.SubmitGradeRequest, actor Actor) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "results.submit", trace.WithAttributes(
		attribute.Int64("result.student_id", int64(payload.StudentID)),
		attribute.Int64("result.exam_id", int64(payload.ExamID)),
		attribute.Int64("result.teacher_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ResultResponse{}, err
	}

	total := 100.0
	if payload.TotalScore != nil {
		total = *payload.TotalScore
	}

	if payload.MarksObtained > total {
		span.SetStatus(codes.Error, "score_exceeds_total")
		return dto.ResultResponse{}, ErrScoreExceedsTotal
	}

	if _, err := s.results.FindActive(ctx, payload.StudentID, payload.SubjectID, payload.ExamID); err == nil {
		span.SetStatus(codes.Error, "duplicate_submission")
		return dto.ResultResponse{}, ErrDuplicateSubmission
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	letter, err := s.gradeLetter(ctx, payload.MarksObtained, total)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	active := true
	submittedAt := s.now()
	result := models.Result{
		StudentID:      payload.StudentID,
		SubjectID:      payload.SubjectID,
		ExamID:         payload.ExamID,
		Active:         &active,
		TestScore:      payload.TestScore,
		ExamScore:      payload.ExamScore,
		MarksObtained:  payload.MarksObtained,
		TotalScore:     total,
		GradeLetter:    letter,
		Remarks:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Remarks)),
		ApprovalStatus: models.ResultStatusPending,
		SubmittedBy:    actor.ID,
		SubmittedAt:    submittedAt,
	}

	if err := s.results.Create(ctx, &result); err != nil {
		// A concurrent submission for the same triple loses here on the
		// unique index rather than on the pre-check above.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "duplicate_submission")
			return dto.ResultResponse{}, ErrDuplicateSubmission
		}
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	created, err := s.results.GetByID(ctx, result.ID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	observability.ResultTransitions().WithLabelValues("", models.ResultStatusPending).Inc()

	if s.audit != nil {
		resultID := created.ID
		s.audit.Record(ctx, AuditEvent{
			Actor:      actor,
			Action:     "result.submitted",
			EntityType: "result",
			EntityID:   &resultID,
			Metadata: map[string]interface{}{
				"student_id": created.StudentID,
				"subject_id": created.SubjectID,
				"exam_id":    created.ExamID,
				"marks":      created.MarksObtained,
			},
		})
	}

	if s.events != nil {
		s.events.Publish(ctx, EventResultSubmitted, map[string]interface{}{
			"result_id": created.ID,
			"exam_id":   created.ExamID,
		})
	}

	return dto.NewResultResponse(created), nil
}

// ListByExam returns the results recorded for an exam. The default view hides
// unverified rows; only the verified-only view is cached since that is what
// public result checking hits.
func (s *resultService) ListByExam(ctx context.Context, examID uint, showUnverified bool) ([]dto.ResultResponse, error) {
	cacheKey := examCacheKey(examID)

	if !showUnverified && s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var responses []dto.ResultResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &responses); unmarshalErr == nil {
				s.logger.Debug().Uint("exam_id", examID).Msg("exam results cache hit")
				return responses, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read exam results cache")
		}
	}

	results, err := s.results.ListByExam(ctx, examID, showUnverified)
	if err != nil {
		return nil, err
	}

	responses := dto.NewResultResponseSlice(results)

	if !showUnverified && s.cache != nil {
		if payload, err := json.Marshal(responses); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store exam results cache")
			}
		}
	}

	return responses, nil
}

func (s *resultService) SetVerified(ctx context.Context, resultID uint, verified bool, actor Actor) (dto.ResultResponse, error) {
	if !actor.CanApproveResults() {
		return dto.ResultResponse{}, ErrNotApprover
	}

	affected, err := s.results.SetVerified(ctx, resultID, verified)
	if err != nil {
		return dto.ResultResponse{}, err
	}
	if affected == 0 {
		return dto.ResultResponse{}, ErrResultNotFound
	}

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	s.InvalidateExam(ctx, result.ExamID)

	if s.audit != nil {
		id := result.ID
		s.audit.Record(ctx, AuditEvent{
			Actor:      actor,
			Action:     "result.verified",
			EntityType: "result",
			EntityID:   &id,
			Metadata:   map[string]interface{}{"verified": verified},
		})
	}

	return dto.NewResultResponse(result), nil
}

// InvalidateExam drops the cached verified-only listing for the exam.
func (s *resultService) InvalidateExam(ctx context.Context, examID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, examCacheKey(examID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to invalidate exam results cache")
	}
}

func (s *resultService) gradeLetter(ctx context.Context, marks, total float64) (string, error) {
	bands, err := s.bands.List(ctx)
	if err != nil {
		return "", err
	}

	return gradeLetterFor(bands, marks, total), nil
}

// gradeLetterFor resolves the letter grade for the marks scaled to a
// percentage of the result's total. Bands arrive ordered by min_marks
// descending, so the first floor the percentage clears wins; fractional
// scores between two bands fall to the lower band instead of no band.
func gradeLetterFor(bands []models.GradeBand, marks, total float64) string {
	percentage := marks
	if total > 0 && total != 100 {
		percentage = marks / total * 100
	}

	for _, band := range bands {
		if percentage >= band.MinMarks {
			return band.Letter
		}
	}

	return ""
}

func examCacheKey(examID uint) string {
	return fmt.Sprintf("results:exam:%d:verified", examID)
}
