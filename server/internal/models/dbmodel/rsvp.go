package dbmodel

import "time"

// Rsvps uses an empty GuildID for responses outside a guild.
type Rsvps struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	GuildID       string    `json:"guild_id" gorm:"type:VARCHAR(64);not null;default:'';uniqueIndex:ux_rsvps_identity,priority:5"`
	EventProvider string    `json:"event_provider" gorm:"type:VARCHAR(16);not null;uniqueIndex:ux_rsvps_identity,priority:1"`
	CalendarID    string    `json:"calendar_id" gorm:"type:VARCHAR(255);not null;uniqueIndex:ux_rsvps_identity,priority:2"`
	EventID       string    `json:"event_id" gorm:"type:VARCHAR(255);not null;uniqueIndex:ux_rsvps_identity,priority:3"`
	DiscordUserID string    `json:"discord_user_id" gorm:"type:VARCHAR(64);not null;uniqueIndex:ux_rsvps_identity,priority:4"`
	Status        string    `json:"status" gorm:"type:VARCHAR(3);not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (*Rsvps) TableName() string {
	return "rsvps"
}
