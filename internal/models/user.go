package models

import "time"

type User struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name             string    `gorm:"not null;size:255;default:''" json:"name"`
	PasswordHash     string    `gorm:"not null;size:255" json:"-"`
	Plan             PlanID    `gorm:"not null;size:32;default:'free'" json:"plan"`
	CreditsUsed      int       `gorm:"not null;default:0" json:"credits_used"`
	StripeCustomerID string    `gorm:"index;size:100;default:''" json:"-"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Session maps an opaque cookie token to a user until ExpiresAt.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"-"`
	UserID    string    `gorm:"not null;index;size:36" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
