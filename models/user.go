package models

import (
	"time"

	"gorm.io/gorm"
)

// User owns quit plans. Credential and profile management live outside this
// service; only what ownership checks and the leaderboard need is kept.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"size:64;not null" json:"username"`
	Email     string     `gorm:"size:255" json:"email"`
	AvatarURL string     `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Plans     []QuitPlan `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
