package dbmodel

type Levels struct {
	DiscordUserID string `json:"discord_user_id" gorm:"primaryKey;type:VARCHAR(64)"`
	GuildID       string `json:"guild_id" gorm:"primaryKey;type:VARCHAR(64);index"`
	Level         int    `json:"level" gorm:"not null;default:1"`
	XP            int    `json:"xp" gorm:"not null;default:0"`
}

func (*Levels) TableName() string {
	return "levels"
}
