package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// UpdateRequestFilter narrows update request queries.
type UpdateRequestFilter struct {
	Status   *string
	ResultID *uint
}

// UpdateRequestRepository defines data operations for result update requests.
type UpdateRequestRepository interface {
	Create(ctx context.Context, request *models.ResultUpdateRequest) error
	GetByID(ctx context.Context, id uint) (models.ResultUpdateRequest, error)
	List(ctx context.Context, filter UpdateRequestFilter) ([]models.ResultUpdateRequest, error)
	Resolve(ctx context.Context, id uint, updates map[string]interface{}) (int64, error)
	ApproveWithScore(ctx context.Context, id uint, updates map[string]interface{}, resultID uint, marks float64, gradeLetter string) (int64, int64, error)
}

type updateRequestRepository struct {
	db *gorm.DB
}

// NewUpdateRequestRepository instantiates the repository.
func NewUpdateRequestRepository(db *gorm.DB) UpdateRequestRepository {
	return &updateRequestRepository{db: db}
}

func (r *updateRequestRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ResultUpdateRequest{}).
		Preload("Result").
		Preload("Result.Student").
		Preload("Result.Subject").
		Preload("Result.Exam")
}

func (r *updateRequestRepository) Create(ctx context.Context, request *models.ResultUpdateRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *updateRequestRepository) GetByID(ctx context.Context, id uint) (models.ResultUpdateRequest, error) {
	var request models.ResultUpdateRequest
	if err := r.baseQuery(ctx).First(&request, id).Error; err != nil {
		return models.ResultUpdateRequest{}, err
	}

	return request, nil
}

func (r *updateRequestRepository) List(ctx context.Context, filter UpdateRequestFilter) ([]models.ResultUpdateRequest, error) {
	query := r.baseQuery(ctx)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.ResultID != nil {
		query = query.Where("result_id = ?", *filter.ResultID)
	}

	var requests []models.ResultUpdateRequest
	if err := query.Order("requested_at ASC").Find(&requests).Error; err != nil {
		return nil, err
	}

	return requests, nil
}

// Resolve finalizes a pending request; zero rows affected means it was
// already resolved by a concurrent officer.
func (r *updateRequestRepository) Resolve(ctx context.Context, id uint, updates map[string]interface{}) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.ResultUpdateRequest{}).
		Where("id = ?", id).
		Where("status = ?", models.UpdateRequestStatusPending).
		Updates(updates)

	return tx.RowsAffected, tx.Error
}

var errScoreNotApplied = errors.New("score not applied")

// ApproveWithScore resolves a pending request and writes the new score onto
// its result in one transaction. Either both rows change or neither does, so
// a request is never marked approved while the result still carries the old
// score. The return values are the request and result rows matched.
func (r *updateRequestRepository) ApproveWithScore(ctx context.Context, id uint, updates map[string]interface{}, resultID uint, marks float64, gradeLetter string) (int64, int64, error) {
	var requestRows, resultRows int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolve := tx.Model(&models.ResultUpdateRequest{}).
			Where("id = ?", id).
			Where("status = ?", models.UpdateRequestStatusPending).
			Updates(updates)
		if resolve.Error != nil {
			return resolve.Error
		}
		requestRows = resolve.RowsAffected
		if requestRows == 0 {
			return nil
		}

		apply := tx.Model(&models.Result{}).
			Where("id = ?", resultID).
			Where("approval_status = ?", models.ResultStatusApproved).
			Updates(map[string]interface{}{
				"marks_obtained": marks,
				"grade_letter":   gradeLetter,
			})
		if apply.Error != nil {
			return apply.Error
		}
		resultRows = apply.RowsAffected
		if resultRows == 0 {
			// roll back the resolve so the request stays pending
			return errScoreNotApplied
		}

		return nil
	})
	if errors.Is(err, errScoreNotApplied) {
		err = nil
	}

	return requestRows, resultRows, err
}
