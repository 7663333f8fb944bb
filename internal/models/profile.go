package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the agency staff profile keyed by the auth user id.
type Profile struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:20;not null;index" json:"role"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	Phone        string    `gorm:"size:32" json:"phone"`
	Whatsapp     string    `gorm:"size:32" json:"whatsapp"`
	AvatarURL    string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// DisplayName falls back to the email when no full name is set.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// ContactWhatsapp prefers the dedicated whatsapp number over the phone.
func (p *Profile) ContactWhatsapp() string {
	if p.Whatsapp != "" {
		return p.Whatsapp
	}
	return p.Phone
}
