package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
)

// AuditEvent captures the details required to persist an audit entry.
type AuditEvent struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// AuditRecorder defines behaviour for recording lifecycle audit events.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

// AuditService exposes methods to record and query the audit trail.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo   repository.AuditRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit trail service.
func NewAuditService(repo repository.AuditRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

// Record persists the event. Audit writes never fail the operation that
// triggered them; failures are logged and dropped.
func (s *auditService) Record(ctx context.Context, event AuditEvent) {
	action := strings.ToLower(strings.TrimSpace(event.Action))
	entityType := strings.ToLower(strings.TrimSpace(event.EntityType))
	if action == "" || entityType == "" {
		s.logger.Warn().Str("action", event.Action).Str("entity_type", event.EntityType).Msg("dropping audit event with missing fields")
		return
	}

	metadata := sanitizeAuditMetadata(event.Metadata)
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		metadata["correlation_id"] = correlation
	}

	entry := models.AuditEntry{
		ActorID:    event.Actor.ID,
		ActorRole:  strings.ToLower(strings.TrimSpace(event.Actor.Role)),
		Action:     action,
		EntityType: entityType,
		EntityID:   event.EntityID,
		Metadata:   metadata,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit entry")
	}
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	filter := repository.AuditFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, err
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAuditEntryResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}

	return dto.AuditListResponse{Items: responses, Pagination: pagination}, nil
}

func sanitizeAuditMetadata(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 {
		return map[string]interface{}{}
	}

	clean := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		switch v := value.(type) {
		case string, bool, float64, float32, int, int64, uint, uint64, nil:
			clean[trimmed] = v
		default:
			clean[trimmed] = fmt.Sprintf("%v", v)
		}
	}

	return clean
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
