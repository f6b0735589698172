package service

import (
	"context"

	"github.com/pkg/errors"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
)

type LevelService interface {
	AddXP(ctx context.Context, userID, guildID string, xp int) (models.LevelProgress, error)
	Get(ctx context.Context, userID, guildID string) (models.LevelProgress, int, error)
	Leaderboard(ctx context.Context, guildID string, limit int) ([]models.LeaderboardEntry, error)
}

type levelService struct {
	levelRepo repository.LevelRepository
}

func NewLevelService(levelRepo repository.LevelRepository) LevelService {
	return &levelService{
		levelRepo: levelRepo,
	}
}

func (l *levelService) AddXP(ctx context.Context, userID, guildID string, xp int) (models.LevelProgress, error) {
	if xp <= 0 {
		return models.LevelProgress{}, errors.Errorf("xp must be positive, got %d", xp)
	}
	var progress models.LevelProgress
	err := l.levelRepo.Transaction(ctx, func(repo repository.LevelRepository) error {
		row, err := repo.FindByUserGuild(ctx, userID, guildID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &dbmodel.Levels{DiscordUserID: userID, GuildID: guildID, Level: 1}
		}
		progress = applyXP(row.Level, row.XP, xp)
		row.Level = progress.Level
		row.XP = progress.XP
		return repo.Save(ctx, *row)
	})
	if err != nil {
		return models.LevelProgress{}, err
	}
	return progress, nil
}

// applyXP carries leftover XP across as many level-ups as it covers.
func applyXP(level, current, gained int) models.LevelProgress {
	progress := models.LevelProgress{Level: level, XP: current + gained}
	for progress.XP >= models.XPForLevel(progress.Level) {
		progress.XP -= models.XPForLevel(progress.Level)
		progress.Level++
		progress.LevelsGained++
	}
	progress.LeveledUp = progress.LevelsGained > 0
	return progress
}

func (l *levelService) Get(ctx context.Context, userID, guildID string) (models.LevelProgress, int, error) {
	row, err := l.levelRepo.FindByUserGuild(ctx, userID, guildID)
	if err != nil {
		return models.LevelProgress{}, 0, err
	}
	progress := models.LevelProgress{Level: 1}
	if row != nil {
		progress.Level = row.Level
		progress.XP = row.XP
	}
	rank, err := l.levelRepo.Rank(ctx, userID, guildID)
	if err != nil {
		return models.LevelProgress{}, 0, err
	}
	return progress, rank, nil
}

func (l *levelService) Leaderboard(ctx context.Context, guildID string, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := l.levelRepo.Top(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.LeaderboardEntry{UserID: row.DiscordUserID, Level: row.Level, XP: row.XP})
	}
	return entries, nil
}
