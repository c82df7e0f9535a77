package models

import "time"

// PlanStage is one step of a plan's taper schedule (e.g. "week 2: at most 5
// per day"). Stage charts are rendered from these plus the record history.
type PlanStage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PlanID       uint      `gorm:"index;not null" json:"plan_id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Sequence     int       `gorm:"not null" json:"sequence"`
	TargetPerDay int       `gorm:"not null;default:0" json:"target_per_day"`
	DurationDays int       `gorm:"not null;default:7" json:"duration_days"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
