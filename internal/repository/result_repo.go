package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// PendingResultFilter narrows the pending-grades queue.
type PendingResultFilter struct {
	ExamID    *uint
	SubjectID *uint
}

// ResultBatch selects the results affected by a bulk publication change.
type ResultBatch struct {
	ExamID    uint
	SubjectID *uint
}

// ResultRepository defines data operations for exam results.
type ResultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	GetByID(ctx context.Context, id uint) (models.Result, error)
	FindActive(ctx context.Context, studentID, subjectID, examID uint) (models.Result, error)
	ListPending(ctx context.Context, filter PendingResultFilter) ([]models.Result, error)
	ListByExam(ctx context.Context, examID uint, showUnverified bool) ([]models.Result, error)
	TransitionStatus(ctx context.Context, id uint, from string, updates map[string]interface{}) (int64, error)
	SetVerified(ctx context.Context, id uint, verified bool) (int64, error)
	PublishBatch(ctx context.Context, batch ResultBatch, at time.Time) (int64, error)
	UnpublishBatch(ctx context.Context, batch ResultBatch) (int64, error)
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Result{}).
		Preload("Student").
		Preload("Subject").
		Preload("Exam")
}

func (r *resultRepository) Create(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *resultRepository) GetByID(ctx context.Context, id uint) (models.Result, error) {
	var result models.Result
	if err := r.baseQuery(ctx).First(&result, id).Error; err != nil {
		return models.Result{}, err
	}

	return result, nil
}

func (r *resultRepository) FindActive(ctx context.Context, studentID, subjectID, examID uint) (models.Result, error) {
	var result models.Result
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Where("subject_id = ?", subjectID).
		Where("exam_id = ?", examID).
		Where("active IS NOT NULL").
		First(&result).Error; err != nil {
		return models.Result{}, err
	}

	return result, nil
}

// ListPending returns pending results oldest-first so the queue is worked fairly.
func (r *resultRepository) ListPending(ctx context.Context, filter PendingResultFilter) ([]models.Result, error) {
	query := r.baseQuery(ctx).Where("approval_status = ?", models.ResultStatusPending)

	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}

	if filter.SubjectID != nil {
		query = query.Where("subject_id = ?", *filter.SubjectID)
	}

	var results []models.Result
	if err := query.Order("submitted_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

func (r *resultRepository) ListByExam(ctx context.Context, examID uint, showUnverified bool) ([]models.Result, error) {
	query := r.baseQuery(ctx).Where("exam_id = ?", examID)

	if !showUnverified {
		query = query.Where("is_verified = ?", true)
	}

	var results []models.Result
	if err := query.Order("subject_id ASC, student_id ASC").Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

// TransitionStatus applies updates only while the row is still in the expected
// status. A zero rows-affected count means a concurrent caller won the race.
func (r *resultRepository) TransitionStatus(ctx context.Context, id uint, from string, updates map[string]interface{}) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Result{}).
		Where("id = ?", id).
		Where("approval_status = ?", from).
		Updates(updates)

	return tx.RowsAffected, tx.Error
}

func (r *resultRepository) SetVerified(ctx context.Context, id uint, verified bool) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Result{}).
		Where("id = ?", id).
		Update("is_verified", verified)

	return tx.RowsAffected, tx.Error
}

func (r *resultRepository) PublishBatch(ctx context.Context, batch ResultBatch, at time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Result{}).
		Where("exam_id = ?", batch.ExamID).
		Where("approval_status = ?", models.ResultStatusApproved).
		Where("is_published = ?", false)

	if batch.SubjectID != nil {
		query = query.Where("subject_id = ?", *batch.SubjectID)
	}

	tx := query.Updates(map[string]interface{}{
		"is_published": true,
		"published_at": at,
	})

	return tx.RowsAffected, tx.Error
}

func (r *resultRepository) UnpublishBatch(ctx context.Context, batch ResultBatch) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Result{}).
		Where("exam_id = ?", batch.ExamID).
		Where("is_published = ?", true)

	if batch.SubjectID != nil {
		query = query.Where("subject_id = ?", *batch.SubjectID)
	}

	tx := query.Updates(map[string]interface{}{
		"is_published": false,
		"published_at": nil,
	})

	return tx.RowsAffected, tx.Error
}
