package dbmodel

// ReminderSent is an idempotency mark. WindowStart is unix milliseconds floored
// to the bucket size.
type ReminderSent struct {
	DiscordUserID string `json:"discord_user_id" gorm:"primaryKey;type:VARCHAR(64)"`
	Provider      string `json:"provider" gorm:"primaryKey;type:VARCHAR(16)"`
	CalendarID    string `json:"calendar_id" gorm:"primaryKey;type:VARCHAR(255)"`
	EventID       string `json:"event_id" gorm:"primaryKey;type:VARCHAR(255)"`
	WindowStart   int64  `json:"window_start" gorm:"primaryKey;autoIncrement:false;index"`
}

func (*ReminderSent) TableName() string {
	return "reminder_sent"
}
