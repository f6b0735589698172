package dbmodel

type ReminderSettings struct {
	DiscordUserID   string  `json:"discord_user_id" gorm:"primaryKey;type:VARCHAR(64)"`
	Provider        string  `json:"provider" gorm:"type:VARCHAR(16);not null;default:'google'"`
	LeadMinutes     int     `json:"lead_minutes" gorm:"not null;default:15"`
	NotifyChannelID *string `json:"notify_channel_id" gorm:"type:VARCHAR(64)"`
	NotifyRoleID    *string `json:"notify_role_id" gorm:"type:VARCHAR(64)"`
	Enabled         bool    `json:"enabled" gorm:"not null;index"`
}

func (*ReminderSettings) TableName() string {
	return "reminder_settings"
}
