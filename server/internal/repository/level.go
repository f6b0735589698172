package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LevelRepository interface {
	FindByUserGuild(ctx context.Context, userID, guildID string) (*dbmodel.Levels, error)
	Save(ctx context.Context, row dbmodel.Levels) error
	Top(ctx context.Context, guildID string, limit int) ([]dbmodel.Levels, error)
	// Rank is 1-based; users without a row rank after everyone.
	Rank(ctx context.Context, userID, guildID string) (int, error)
	// Transaction runs fn with repositories bound to one transaction.
	Transaction(ctx context.Context, fn func(LevelRepository) error) error
}

type levelRepository struct {
	db *gorm.DB
}

func NewLevelRepository(db *gorm.DB) LevelRepository {
	return &levelRepository{
		db: db,
	}
}

func (l *levelRepository) FindByUserGuild(ctx context.Context, userID, guildID string) (*dbmodel.Levels, error) {
	var row dbmodel.Levels
	result := l.db.WithContext(ctx).Where("discord_user_id = ? AND guild_id = ?", userID, guildID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &row, nil
}

func (l *levelRepository) Save(ctx context.Context, row dbmodel.Levels) error {
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "xp"}),
	}).Select("*").Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to save level")
	}
	return nil
}

func (l *levelRepository) Top(ctx context.Context, guildID string, limit int) ([]dbmodel.Levels, error) {
	var rows []dbmodel.Levels
	if err := l.db.WithContext(ctx).Where("guild_id = ?", guildID).
		Order("level DESC, xp DESC, discord_user_id").
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (l *levelRepository) Rank(ctx context.Context, userID, guildID string) (int, error) {
	row, err := l.FindByUserGuild(ctx, userID, guildID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	query := l.db.WithContext(ctx).Model(&dbmodel.Levels{}).Where("guild_id = ?", guildID)
	if row != nil {
		query = query.Where("(level > ? OR (level = ? AND xp > ?))", row.Level, row.Level, row.XP)
	}
	if err := query.Count(&ahead).Error; err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

func (l *levelRepository) Transaction(ctx context.Context, fn func(LevelRepository) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&levelRepository{db: tx})
	})
}
