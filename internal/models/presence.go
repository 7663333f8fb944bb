package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPresence is the durable presence row, one per user, upserted on
// every heartbeat. Profile fields are a denormalized cache written at
// heartbeat time; readers refresh them from profiles when possible.
// A missing row means offline, as does a stale LastSeen.
type UserPresence struct {
	UserID    uuid.UUID `gorm:"type:char(36);primaryKey" json:"user_id"`
	Role      string    `gorm:"size:20;not null;index" json:"role"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	Whatsapp  string    `gorm:"size:32" json:"whatsapp"`
	Email     string    `gorm:"size:255" json:"email"`
	LastSeen  time.Time `gorm:"not null;index" json:"last_seen"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}
