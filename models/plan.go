package models

import "time"

// Plan statuses. Records can only be logged against active plans' owners;
// status itself is managed by the plan domain, not here.
const (
	PlanStatusActive    = "active"
	PlanStatusCompleted = "completed"
	PlanStatusAbandoned = "abandoned"
)

// QuitPlan represents one user's cessation plan. Progress records hang off a
// plan, and all access control for records resolves through it.
type QuitPlan struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	UserID     uint        `gorm:"index;not null" json:"user_id"`
	Title      string      `gorm:"size:255;not null" json:"title"`
	Status     string      `gorm:"size:32;default:'active'" json:"status"`
	StartDate  time.Time   `gorm:"type:date;not null" json:"start_date"`
	TargetDate *time.Time  `gorm:"type:date" json:"target_date"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	User       User        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Stages     []PlanStage `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stages,omitempty"`
}
