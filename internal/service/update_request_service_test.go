package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
)

type fakeUpdateRequestRepo struct {
	nextID   uint
	requests map[uint]models.ResultUpdateRequest
	results  *fakeResultRepo
}

func newFakeUpdateRequestRepo(results *fakeResultRepo) *fakeUpdateRequestRepo {
	return &fakeUpdateRequestRepo{requests: map[uint]models.ResultUpdateRequest{}, results: results}
}

func (f *fakeUpdateRequestRepo) Create(ctx context.Context, request *models.ResultUpdateRequest) error {
	f.nextID++
	request.ID = f.nextID
	f.requests[request.ID] = *request
	return nil
}

func (f *fakeUpdateRequestRepo) GetByID(ctx context.Context, id uint) (models.ResultUpdateRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return models.ResultUpdateRequest{}, gorm.ErrRecordNotFound
	}
	if f.results != nil {
		if result, err := f.results.GetByID(ctx, request.ResultID); err == nil {
			request.Result = result
		}
	}
	return request, nil
}

func (f *fakeUpdateRequestRepo) List(ctx context.Context, filter repository.UpdateRequestFilter) ([]models.ResultUpdateRequest, error) {
	matched := make([]models.ResultUpdateRequest, 0)
	for _, request := range f.requests {
		if filter.Status != nil && request.Status != *filter.Status {
			continue
		}
		if filter.ResultID != nil && request.ResultID != *filter.ResultID {
			continue
		}
		matched = append(matched, request)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RequestedAt.Before(matched[j].RequestedAt) })
	return matched, nil
}

func (f *fakeUpdateRequestRepo) Resolve(ctx context.Context, id uint, updates map[string]interface{}) (int64, error) {
	request, ok := f.requests[id]
	if !ok || request.Status != models.UpdateRequestStatusPending {
		return 0, nil
	}
	for key, value := range updates {
		switch key {
		case "status":
			request.Status = value.(string)
		case "resolution_note":
			request.ResolutionNote = value.(string)
		case "resolved_by":
			resolvedBy := value.(uint)
			request.ResolvedBy = &resolvedBy
		case "resolved_at":
			resolvedAt := value.(time.Time)
			request.ResolvedAt = &resolvedAt
		}
	}
	f.requests[id] = request
	return 1, nil
}

func (f *fakeUpdateRequestRepo) ApproveWithScore(ctx context.Context, id uint, updates map[string]interface{}, resultID uint, marks float64, gradeLetter string) (int64, int64, error) {
	request, ok := f.requests[id]
	if !ok || request.Status != models.UpdateRequestStatusPending {
		return 0, 0, nil
	}

	// the score and the resolution land together or not at all
	result, err := f.results.GetByID(ctx, resultID)
	if err != nil || result.ApprovalStatus != models.ResultStatusApproved {
		return 1, 0, nil
	}
	result.MarksObtained = marks
	result.GradeLetter = gradeLetter
	f.results.results[resultID] = result

	resolved, err := f.Resolve(ctx, id, updates)
	return resolved, 1, err
}

type flakyBandRepo struct {
	err error
}

func (f *flakyBandRepo) List(ctx context.Context) ([]models.GradeBand, error) {
	if f.err != nil {
		return nil, f.err
	}
	return models.DefaultGradeBands(), nil
}

func (f *flakyBandRepo) SeedDefaults(ctx context.Context) error { return nil }

func approvedResult(id uint, marks float64) models.Result {
	active := true
	approvedBy := uint(42)
	approvedAt := time.Now().Add(-time.Hour)
	return models.Result{
		ID:             id,
		StudentID:      1,
		SubjectID:      2,
		ExamID:         3,
		Active:         &active,
		MarksObtained:  marks,
		TotalScore:     100,
		GradeLetter:    "C",
		ApprovalStatus: models.ResultStatusApproved,
		SubmittedBy:    7,
		SubmittedAt:    time.Now().Add(-2 * time.Hour),
		ApprovedBy:     &approvedBy,
		ApprovedAt:     &approvedAt,
	}
}

func newUpdateRequestFixture(t *testing.T, result models.Result) (*fakeResultRepo, *fakeUpdateRequestRepo, UpdateRequestService) {
	t.Helper()
	results := newFakeResultRepo()
	results.nextID = result.ID
	results.results[result.ID] = result
	requests := newFakeUpdateRequestRepo(results)
	svc := NewUpdateRequestService(requests, results, fakeBandRepo{}, nil, newTestValidator(), nil, nil, testLogger())
	return results, requests, svc
}

func TestUpdateRequestServiceRequestRequiresApprovedResult(t *testing.T) {
	pending := approvedResult(1, 60)
	pending.ApprovalStatus = models.ResultStatusPending
	_, _, svc := newUpdateRequestFixture(t, pending)

	_, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 70,
		Reason:   "transcription error",
	}, teacherActor())
	require.ErrorIs(t, err, ErrResultNotApproved)
}

func TestUpdateRequestServiceRequestRejectsEmptyReason(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	// passes struct validation but sanitizes down to nothing
	_, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 70,
		Reason:   "<b></b><i></i>",
	}, teacherActor())
	require.ErrorIs(t, err, ErrReasonRequired)
}

func TestUpdateRequestServiceRequestScoreExceedsTotal(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	_, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 120,
		Reason:   "transcription error",
	}, teacherActor())
	require.ErrorIs(t, err, ErrScoreExceedsTotal)
}

func TestUpdateRequestServiceRequestSnapshotsCurrentScore(t *testing.T) {
	published := approvedResult(1, 60)
	published.IsPublished = true
	_, requests, svc := newUpdateRequestFixture(t, published)

	request, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "marks were copied from the wrong script",
	}, teacherActor())
	require.NoError(t, err, "published results still accept update requests")
	require.Equal(t, models.UpdateRequestStatusPending, request.Status)
	require.Equal(t, 60.0, request.CurrentScore)
	require.Equal(t, 75.0, request.NewScore)
	require.Equal(t, uint(7), request.RequestedBy)
	require.Len(t, requests.requests, 1)
}

func TestUpdateRequestServiceRequestMissingResult(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	_, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 99,
		NewScore: 70,
		Reason:   "transcription error",
	}, teacherActor())
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestUpdateRequestServiceApproveAppliesExactlyNewScore(t *testing.T) {
	results, requests, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	created, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	result, err := svc.ApproveUpdate(context.Background(), created.ID, officerActor())
	require.NoError(t, err)
	require.Equal(t, 75.0, result.MarksObtained)
	require.Equal(t, "B", result.GradeLetter, "letter grade is recomputed from the new score")
	require.Equal(t, models.ResultStatusApproved, result.ApprovalStatus)

	stored := requests.requests[created.ID]
	require.Equal(t, models.UpdateRequestStatusApproved, stored.Status)
	require.NotNil(t, stored.ResolvedBy)
	require.Equal(t, uint(42), *stored.ResolvedBy)

	require.Equal(t, 75.0, results.results[1].MarksObtained)
}

func TestUpdateRequestServiceApproveSurvivesBandLookupFailure(t *testing.T) {
	results := newFakeResultRepo()
	results.nextID = 1
	results.results[1] = approvedResult(1, 60)
	requests := newFakeUpdateRequestRepo(results)
	bands := &flakyBandRepo{}
	svc := NewUpdateRequestService(requests, results, bands, nil, newTestValidator(), nil, nil, testLogger())

	created, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 90,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	bands.err = errors.New("grade bands unavailable")
	_, err = svc.ApproveUpdate(context.Background(), created.ID, officerActor())
	require.Error(t, err)
	require.Equal(t, models.UpdateRequestStatusPending, requests.requests[created.ID].Status, "a failed approval leaves the request pending")
	require.Equal(t, 60.0, results.results[1].MarksObtained)

	bands.err = nil
	applied, err := svc.ApproveUpdate(context.Background(), created.ID, officerActor())
	require.NoError(t, err)
	require.Equal(t, 90.0, applied.MarksObtained)
	require.Equal(t, "A", applied.GradeLetter)
	require.Equal(t, models.UpdateRequestStatusApproved, requests.requests[created.ID].Status)
	require.Equal(t, 90.0, results.results[1].MarksObtained)
}

func TestUpdateRequestServiceApproveRequiresApprover(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	_, err := svc.ApproveUpdate(context.Background(), 1, teacherActor())
	require.ErrorIs(t, err, ErrNotApprover)
}

func TestUpdateRequestServiceResolutionIsFinal(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	created, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	_, err = svc.ApproveUpdate(context.Background(), created.ID, officerActor())
	require.NoError(t, err)

	_, err = svc.ApproveUpdate(context.Background(), created.ID, officerActor())
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.RejectUpdate(context.Background(), created.ID, "already handled", officerActor())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateRequestServiceRejectRequiresReason(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	created, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	_, err = svc.RejectUpdate(context.Background(), created.ID, "  ", officerActor())
	require.ErrorIs(t, err, ErrReasonRequired)
}

func TestUpdateRequestServiceRejectLeavesResultUntouched(t *testing.T) {
	results, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	created, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	rejected, err := svc.RejectUpdate(context.Background(), created.ID, "no supporting evidence", officerActor())
	require.NoError(t, err)
	require.Equal(t, models.UpdateRequestStatusRejected, rejected.Status)
	require.Equal(t, "no supporting evidence", rejected.ResolutionNote)

	require.Equal(t, 60.0, results.results[1].MarksObtained)
}

func TestUpdateRequestServiceApproveMissingRequest(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	_, err := svc.ApproveUpdate(context.Background(), 99, officerActor())
	require.ErrorIs(t, err, ErrUpdateRequestNotFound)
}

func TestUpdateRequestServiceListFiltersByStatus(t *testing.T) {
	_, _, svc := newUpdateRequestFixture(t, approvedResult(1, 60))

	first, err := svc.Request(context.Background(), dto.RequestUpdateRequest{
		ResultID: 1,
		NewScore: 75,
		Reason:   "remark after appeal",
	}, teacherActor())
	require.NoError(t, err)

	_, err = svc.RejectUpdate(context.Background(), first.ID, "no supporting evidence", officerActor())
	require.NoError(t, err)

	status := models.UpdateRequestStatusPending
	pending, err := svc.List(context.Background(), dto.UpdateRequestFilter{Status: &status})
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := svc.List(context.Background(), dto.UpdateRequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}
