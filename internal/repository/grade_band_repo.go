package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// GradeBandRepository exposes the grading-scale lookup table.
type GradeBandRepository interface {
	List(ctx context.Context) ([]models.GradeBand, error)
	SeedDefaults(ctx context.Context) error
}

type gradeBandRepository struct {
	db *gorm.DB
}

// NewGradeBandRepository instantiates the repository.
func NewGradeBandRepository(db *gorm.DB) GradeBandRepository {
	return &gradeBandRepository{db: db}
}

func (r *gradeBandRepository) List(ctx context.Context) ([]models.GradeBand, error) {
	var bands []models.GradeBand
	if err := r.db.WithContext(ctx).Order("min_marks DESC").Find(&bands).Error; err != nil {
		return nil, err
	}

	return bands, nil
}

// SeedDefaults inserts the default grading scale when the table is empty.
func (r *gradeBandRepository) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.GradeBand{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	bands := models.DefaultGradeBands()
	return r.db.WithContext(ctx).Create(&bands).Error
}
