package models

import "time"

// ProgressRecord is one user's single-day log entry against a quit plan.
// The composite unique index over (plan_id, record_date) covers soft-deleted
// rows too: a deleted record keeps its slot for the day, and reviving it goes
// through reactivation instead of inserting a second row. This makes the
// database the final arbiter for concurrent creates on the same day.
type ProgressRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PlanID           uint      `gorm:"index;index:idx_plan_record_date,unique;not null" json:"plan_id"`
	RecordDate       time.Time `gorm:"index:idx_plan_record_date,unique;type:date;not null" json:"record_date"`
	CigarettesSmoked int       `gorm:"not null;default:0" json:"cigarettes_smoked"`
	HealthScore      *int      `json:"health_score"`
	Notes            string    `gorm:"size:1000" json:"notes"`
	IsDeleted        bool      `gorm:"index;not null;default:false" json:"is_deleted"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Plan             QuitPlan  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// DayOf truncates t to calendar-day granularity in t's location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
