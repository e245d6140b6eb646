package archive

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openlms/attempt-service/internal/models"
)

// GormStore is the durable archive backend. One row per (assessment, role);
// a resubmission after a restart overwrites the prior row.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.ArchivedSubmission{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archived submissions: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Save(ctx context.Context, sub *models.ArchivedSubmission) error {
	var existing models.ArchivedSubmission
	err := g.db.WithContext(ctx).
		Where("assessment_id = ? AND role_id = ?", sub.AssessmentID, sub.RoleID).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := g.db.WithContext(ctx).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create archived submission: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up archived submission: %w", err)
	default:
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		if err := g.db.WithContext(ctx).Save(sub).Error; err != nil {
			return fmt.Errorf("failed to update archived submission: %w", err)
		}
	}
	return nil
}

func (g *GormStore) Get(ctx context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error) {
	var sub models.ArchivedSubmission
	err := g.db.WithContext(ctx).
		Where("assessment_id = ? AND role_id = ?", assessmentID, roleID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archived submission: %w", err)
	}
	return &sub, nil
}

func (g *GormStore) ListByAssessment(ctx context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error) {
	var subs []*models.ArchivedSubmission
	err := g.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("role_id asc").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list archived submissions: %w", err)
	}
	return subs, nil
}
