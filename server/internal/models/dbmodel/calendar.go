package dbmodel

import (
	"time"
)

// Calendars holds one linked calendar per (user, provider, calendar). Tokens are
// stored encrypted.
type Calendars struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	DiscordUserID string    `json:"discord_user_id" gorm:"type:VARCHAR(64);not null;uniqueIndex:ux_calendars_identity,priority:1"`
	Provider      string    `json:"provider" gorm:"type:VARCHAR(16);not null;uniqueIndex:ux_calendars_identity,priority:2"`
	CalendarID    string    `json:"calendar_id" gorm:"type:VARCHAR(255);not null;uniqueIndex:ux_calendars_identity,priority:3"`
	AccessToken   string    `json:"access_token" gorm:"type:TEXT;not null"`
	RefreshToken  *string   `json:"refresh_token" gorm:"type:TEXT"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null"`
	Visibility    string    `json:"visibility" gorm:"type:VARCHAR(8);not null;default:'private'"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (*Calendars) TableName() string {
	return "calendars"
}
