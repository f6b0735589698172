package dbmodel

import "time"

type DigestSettings struct {
	DiscordUserID string     `json:"discord_user_id" gorm:"primaryKey;type:VARCHAR(64)"`
	Frequency     string     `json:"frequency" gorm:"primaryKey;type:VARCHAR(8)"`
	Hour          int        `json:"hour" gorm:"not null;index:ix_digest_time,priority:1"`
	Minute        int        `json:"minute" gorm:"not null;index:ix_digest_time,priority:2"`
	LastSentAt    *time.Time `json:"last_sent_at"`
}

func (*DigestSettings) TableName() string {
	return "digest_settings"
}
