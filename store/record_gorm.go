package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quitline/quitline/models"
)

const dayFormat = "2006-01-02"

// GormRecordStore persists progress records in MySQL through gorm. The
// composite unique index on (plan_id, record_date) is the final arbiter for
// concurrent creates; duplicate-key violations come back as ErrDuplicate.
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore creates a record store over the given DB handle.
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

func (s *GormRecordStore) Create(ctx context.Context, rec *models.ProgressRecord) error {
	rec.RecordDate = models.DayOf(rec.RecordDate)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *GormRecordStore) FindOne(ctx context.Context, id uint) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&rec).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (s *GormRecordStore) FindAny(ctx context.Context, id uint) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (s *GormRecordStore) FindByPlanAndDate(ctx context.Context, planID uint, day time.Time, activeOnly bool) (*models.ProgressRecord, error) {
	// String date equality avoids timezone/type mismatches with the DATE column.
	q := s.db.WithContext(ctx).
		Where("plan_id = ? AND record_date = ?", planID, models.DayOf(day).Format(dayFormat))
	if activeOnly {
		q = q.Where("is_deleted = ?", false)
	}
	var rec models.ProgressRecord
	if err := q.First(&rec).Error; err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (s *GormRecordStore) FindAll(ctx context.Context, page Pagination, filters RecordFilters) ([]models.ProgressRecord, int64, error) {
	page = page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.ProgressRecord{}).
		Where("progress_records.is_deleted = ?", false)
	if filters.PlanID != 0 {
		q = q.Where("progress_records.plan_id = ?", filters.PlanID)
	}
	if filters.UserID != 0 {
		q = q.Joins("JOIN quit_plans ON quit_plans.id = progress_records.plan_id").
			Where("quit_plans.user_id = ?", filters.UserID)
	}
	if filters.From != nil {
		q = q.Where("progress_records.record_date >= ?", models.DayOf(*filters.From).Format(dayFormat))
	}
	if filters.To != nil {
		q = q.Where("progress_records.record_date <= ?", models.DayOf(*filters.To).Format(dayFormat))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateErr(err)
	}

	var recs []models.ProgressRecord
	err := q.Order("progress_records.record_date DESC").
		Offset((page.Page - 1) * page.Limit).
		Limit(page.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, 0, translateErr(err)
	}
	return recs, total, nil
}

func (s *GormRecordStore) Update(ctx context.Context, rec *models.ProgressRecord) error {
	rec.RecordDate = models.DayOf(rec.RecordDate)
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *GormRecordStore) Reactivate(ctx context.Context, id uint, fields RecordFields) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translateErr(err)
	}
	rec.RecordDate = models.DayOf(fields.RecordDate)
	rec.CigarettesSmoked = fields.CigarettesSmoked
	rec.HealthScore = fields.HealthScore
	rec.Notes = fields.Notes
	rec.IsDeleted = false
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (s *GormRecordStore) SoftDelete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.ProgressRecord{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormRecordStore) RecentByPlan(ctx context.Context, planID uint, limit int) ([]models.ProgressRecord, error) {
	var recs []models.ProgressRecord
	err := s.db.WithContext(ctx).
		Where("plan_id = ? AND is_deleted = ?", planID, false).
		Order("record_date DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return recs, nil
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
