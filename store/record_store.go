package store

import (
	"context"
	"errors"
	"time"

	"github.com/quitline/quitline/models"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates the one-active-record-
	// per-(plan, day) uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record for plan and date")
)

// Pagination selects one page of a list query.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps pagination to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 10
	}
	return p
}

// RecordFilters narrows a record list query. UserID scopes through the owning
// plan; zero values mean "no filter".
type RecordFilters struct {
	PlanID uint       `json:"plan_id"`
	UserID uint       `json:"user_id"`
	From   *time.Time `json:"from"`
	To     *time.Time `json:"to"`
}

// RecordFields are the caller-settable parts of a progress record, used for
// updates and for the reactivation transition.
type RecordFields struct {
	RecordDate       time.Time `json:"record_date"`
	CigarettesSmoked int       `json:"cigarettes_smoked"`
	HealthScore      *int      `json:"health_score"`
	Notes            string    `json:"notes"`
}

// RecordStore is the persistence contract for progress records. Soft-deleted
// rows are retained; only FindAny and FindByPlanAndDate(activeOnly=false) see
// them. Implementations must enforce at most one active record per
// (plan_id, record_date) and surface violations as ErrDuplicate.
type RecordStore interface {
	Create(ctx context.Context, rec *models.ProgressRecord) error
	// FindOne returns the active record with the given id.
	FindOne(ctx context.Context, id uint) (*models.ProgressRecord, error)
	// FindAny returns the record regardless of deletion status.
	FindAny(ctx context.Context, id uint) (*models.ProgressRecord, error)
	FindByPlanAndDate(ctx context.Context, planID uint, day time.Time, activeOnly bool) (*models.ProgressRecord, error)
	FindAll(ctx context.Context, page Pagination, filters RecordFilters) ([]models.ProgressRecord, int64, error)
	Update(ctx context.Context, rec *models.ProgressRecord) error
	// Reactivate revives a soft-deleted record in place: fields are
	// overwritten, is_deleted cleared, identity preserved.
	Reactivate(ctx context.Context, id uint, fields RecordFields) (*models.ProgressRecord, error)
	SoftDelete(ctx context.Context, id uint) error
	// RecentByPlan returns up to limit active records for a plan, newest
	// record_date first, for streak computation.
	RecentByPlan(ctx context.Context, planID uint, limit int) ([]models.ProgressRecord, error)
}
