package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func seedApprovedResult(t *testing.T, repo ResultRepository) models.Result {
	t.Helper()
	active := true
	result := models.Result{
		StudentID:      1,
		SubjectID:      1,
		ExamID:         1,
		Active:         &active,
		MarksObtained:  60,
		TotalScore:     100,
		GradeLetter:    "C",
		ApprovalStatus: models.ResultStatusApproved,
		SubmittedBy:    7,
		SubmittedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), &result))
	return result
}

func TestUpdateRequestRepositoryResolveIsConditional(t *testing.T) {
	db := setupResultsTestDB(t, &models.Student{}, &models.Subject{}, &models.Exam{}, &models.Result{}, &models.ResultUpdateRequest{})
	seedResultFixtures(t, db)
	results := NewResultRepository(db)
	repo := NewUpdateRequestRepository(db)
	ctx := context.Background()

	result := seedApprovedResult(t, results)
	request := models.ResultUpdateRequest{
		ResultID:     result.ID,
		CurrentScore: 60,
		NewScore:     75,
		Reason:       "remark after appeal",
		Status:       models.UpdateRequestStatusPending,
		RequestedBy:  7,
		RequestedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(ctx, &request))

	resolve := map[string]interface{}{
		"status":      models.UpdateRequestStatusApproved,
		"resolved_by": uint(42),
		"resolved_at": time.Now(),
	}

	affected, err := repo.Resolve(ctx, request.ID, resolve)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	affected, err = repo.Resolve(ctx, request.ID, resolve)
	require.NoError(t, err)
	require.Equal(t, int64(0), affected, "a resolved request never resolves twice")

	stored, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.True(t, stored.IsResolved())
	require.NotNil(t, stored.ResolvedBy)
	require.Equal(t, uint(42), *stored.ResolvedBy)
	require.Equal(t, result.ID, stored.Result.ID, "lookup preloads the target result")
}

func TestUpdateRequestRepositoryApproveWithScoreUpdatesBothRows(t *testing.T) {
	db := setupResultsTestDB(t, &models.Student{}, &models.Subject{}, &models.Exam{}, &models.Result{}, &models.ResultUpdateRequest{})
	seedResultFixtures(t, db)
	results := NewResultRepository(db)
	repo := NewUpdateRequestRepository(db)
	ctx := context.Background()

	result := seedApprovedResult(t, results)
	request := models.ResultUpdateRequest{
		ResultID:     result.ID,
		CurrentScore: 60,
		NewScore:     90,
		Reason:       "remark after appeal",
		Status:       models.UpdateRequestStatusPending,
		RequestedBy:  7,
		RequestedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(ctx, &request))

	resolve := map[string]interface{}{
		"status":      models.UpdateRequestStatusApproved,
		"resolved_by": uint(42),
		"resolved_at": time.Now(),
	}

	resolved, applied, err := repo.ApproveWithScore(ctx, request.ID, resolve, result.ID, 90, "A")
	require.NoError(t, err)
	require.Equal(t, int64(1), resolved)
	require.Equal(t, int64(1), applied)

	storedResult, err := results.GetByID(ctx, result.ID)
	require.NoError(t, err)
	require.Equal(t, 90.0, storedResult.MarksObtained)
	require.Equal(t, "A", storedResult.GradeLetter)

	storedRequest, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.UpdateRequestStatusApproved, storedRequest.Status)

	resolved, _, err = repo.ApproveWithScore(ctx, request.ID, resolve, result.ID, 90, "A")
	require.NoError(t, err)
	require.Equal(t, int64(0), resolved, "a resolved request never resolves twice")
}

func TestUpdateRequestRepositoryApproveWithScoreRollsBack(t *testing.T) {
	db := setupResultsTestDB(t, &models.Student{}, &models.Subject{}, &models.Exam{}, &models.Result{}, &models.ResultUpdateRequest{})
	seedResultFixtures(t, db)
	results := NewResultRepository(db)
	repo := NewUpdateRequestRepository(db)
	ctx := context.Background()

	pending := activeResult(1, 1, models.ResultStatusPending)
	require.NoError(t, results.Create(ctx, &pending))
	request := models.ResultUpdateRequest{
		ResultID:     pending.ID,
		CurrentScore: pending.MarksObtained,
		NewScore:     90,
		Reason:       "remark after appeal",
		Status:       models.UpdateRequestStatusPending,
		RequestedBy:  7,
		RequestedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(ctx, &request))

	resolved, applied, err := repo.ApproveWithScore(ctx, request.ID, map[string]interface{}{
		"status":      models.UpdateRequestStatusApproved,
		"resolved_by": uint(42),
		"resolved_at": time.Now(),
	}, pending.ID, 90, "A")
	require.NoError(t, err)
	require.Equal(t, int64(1), resolved)
	require.Equal(t, int64(0), applied)

	storedRequest, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.UpdateRequestStatusPending, storedRequest.Status, "resolve rolls back when the score cannot land")

	storedResult, err := results.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, pending.MarksObtained, storedResult.MarksObtained)
}

func TestUpdateRequestRepositoryListFiltersAndOrders(t *testing.T) {
	db := setupResultsTestDB(t, &models.Student{}, &models.Subject{}, &models.Exam{}, &models.Result{}, &models.ResultUpdateRequest{})
	seedResultFixtures(t, db)
	results := NewResultRepository(db)
	repo := NewUpdateRequestRepository(db)
	ctx := context.Background()

	result := seedApprovedResult(t, results)

	older := models.ResultUpdateRequest{
		ResultID:     result.ID,
		CurrentScore: 60,
		NewScore:     75,
		Reason:       "remark after appeal",
		Status:       models.UpdateRequestStatusPending,
		RequestedBy:  7,
		RequestedAt:  time.Now().Add(-2 * time.Hour),
	}
	newer := models.ResultUpdateRequest{
		ResultID:     result.ID,
		CurrentScore: 60,
		NewScore:     65,
		Reason:       "addition error on script",
		Status:       models.UpdateRequestStatusRejected,
		RequestedBy:  7,
		RequestedAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, &newer))
	require.NoError(t, repo.Create(ctx, &older))

	all, err := repo.List(ctx, UpdateRequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, older.ID, all[0].ID, "oldest request first")

	status := models.UpdateRequestStatusPending
	pending, err := repo.List(ctx, UpdateRequestFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, older.ID, pending[0].ID)
}
