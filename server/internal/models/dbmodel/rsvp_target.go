package dbmodel

import "time"

// RsvpTargets maps the short key in an RSVP button to its event.
type RsvpTargets struct {
	Key           string    `json:"key" gorm:"type:VARCHAR(36);primaryKey"`
	EventProvider string    `json:"event_provider" gorm:"type:VARCHAR(16);not null"`
	CalendarID    string    `json:"calendar_id" gorm:"type:VARCHAR(255);not null"`
	EventID       string    `json:"event_id" gorm:"type:VARCHAR(255);not null"`
	GuildID       string    `json:"guild_id" gorm:"type:VARCHAR(64);not null;default:''"`
	CreatedAt     time.Time `json:"created_at"`
}

func (*RsvpTargets) TableName() string {
	return "rsvp_targets"
}
