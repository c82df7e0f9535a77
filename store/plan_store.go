package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/quitline/quitline/models"
)

// PlanStore resolves plans for ownership checks and the stage-chart read path.
// Plan lifecycle management itself belongs to the plan domain.
type PlanStore interface {
	GetPlan(ctx context.Context, id uint) (*models.QuitPlan, error)
	GetPlanWithStages(ctx context.Context, id uint) (*models.QuitPlan, error)
	ListByUser(ctx context.Context, userID uint, page Pagination) ([]models.QuitPlan, int64, error)
}

// GormPlanStore reads plans through gorm.
type GormPlanStore struct {
	db *gorm.DB
}

// NewGormPlanStore creates a plan store over the given DB handle.
func NewGormPlanStore(db *gorm.DB) *GormPlanStore {
	return &GormPlanStore{db: db}
}

func (s *GormPlanStore) GetPlan(ctx context.Context, id uint) (*models.QuitPlan, error) {
	var plan models.QuitPlan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &plan, nil
}

func (s *GormPlanStore) GetPlanWithStages(ctx context.Context, id uint) (*models.QuitPlan, error) {
	var plan models.QuitPlan
	err := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&plan, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &plan, nil
}

func (s *GormPlanStore) ListByUser(ctx context.Context, userID uint, page Pagination) ([]models.QuitPlan, int64, error) {
	page = page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.QuitPlan{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateErr(err)
	}

	var plans []models.QuitPlan
	err := q.Order("created_at DESC").
		Offset((page.Page - 1) * page.Limit).
		Limit(page.Limit).
		Find(&plans).Error
	if err != nil {
		return nil, 0, translateErr(err)
	}
	return plans, total, nil
}
