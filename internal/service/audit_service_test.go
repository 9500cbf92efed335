package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
)

type fakeAuditRepo struct {
	entries   []models.AuditEntry
	createErr error
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditEntry, int64, error) {
	matched := make([]models.AuditEntry, 0)
	for _, entry := range f.entries {
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		matched = append(matched, entry)
	}
	total := int64(len(matched))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func TestAuditServiceRecordNormalizesAndSanitizes(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, testLogger())

	entityID := uint(5)
	svc.Record(context.Background(), AuditEvent{
		Actor:      Actor{ID: 42, Role: " Exam_Officer "},
		Action:     " Result.Approved ",
		EntityType: "Result",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"exam_id": uint(3),
			"  ":      "dropped",
			"nested":  []int{1, 2},
		},
	})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.Equal(t, "result.approved", entry.Action)
	require.Equal(t, "result", entry.EntityType)
	require.Equal(t, "exam_officer", entry.ActorRole)
	require.Equal(t, uint(3), entry.Metadata["exam_id"])
	require.NotContains(t, entry.Metadata, "  ")
	require.Equal(t, "[1 2]", entry.Metadata["nested"], "non-scalar metadata is stringified")
}

func TestAuditServiceRecordStampsCorrelationID(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, testLogger())

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-1234")
	svc.Record(ctx, AuditEvent{
		Actor:      officerActor(),
		Action:     "result.approved",
		EntityType: "result",
	})
	svc.Record(context.Background(), AuditEvent{
		Actor:      officerActor(),
		Action:     "result.approved",
		EntityType: "result",
	})

	require.Len(t, repo.entries, 2)
	require.Equal(t, "req-1234", repo.entries[0].Metadata["correlation_id"])
	require.NotContains(t, repo.entries[1].Metadata, "correlation_id")
}

func TestAuditServiceRecordDropsIncompleteEvents(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, testLogger())

	svc.Record(context.Background(), AuditEvent{Actor: officerActor(), Action: "", EntityType: "result"})
	svc.Record(context.Background(), AuditEvent{Actor: officerActor(), Action: "result.approved", EntityType: "  "})

	require.Empty(t, repo.entries)
}

func TestAuditServiceListPaginates(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, testLogger())

	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), AuditEvent{
			Actor:      officerActor(),
			Action:     "result.approved",
			EntityType: "result",
		})
	}
	svc.Record(context.Background(), AuditEvent{
		Actor:      Actor{ID: 9, Role: RoleAdmin},
		Action:     "results.published",
		EntityType: "exam",
	})

	response, err := svc.List(context.Background(), dto.AuditListRequest{Page: 2, PageSize: 2, Action: "result.approved"})
	require.NoError(t, err)
	require.Len(t, response.Items, 2)
	require.Equal(t, int64(5), response.Pagination.TotalItems)
	require.Equal(t, 3, response.Pagination.TotalPages)
	require.Equal(t, 2, response.Pagination.Page)

	filtered, err := svc.List(context.Background(), dto.AuditListRequest{EntityType: "exam"})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
	require.Equal(t, uint(9), filtered.Items[0].ActorID)
}
