package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RSVPRepository interface {
	Upsert(ctx context.Context, row dbmodel.Rsvps) error
	// CountByStatus aggregates across guilds when guildID is empty.
	CountByStatus(ctx context.Context, provider, calendarID, eventID, guildID string) (map[string]int, error)
	// SaveTarget keeps the first row stored under a key.
	SaveTarget(ctx context.Context, row dbmodel.RsvpTargets) error
	FindTarget(ctx context.Context, key string) (*dbmodel.RsvpTargets, error)
}

type rsvpRepository struct {
	db *gorm.DB
}

func NewRSVPRepository(db *gorm.DB) RSVPRepository {
	return &rsvpRepository{
		db: db,
	}
}

func (r *rsvpRepository) Upsert(ctx context.Context, row dbmodel.Rsvps) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "event_provider"},
			{Name: "calendar_id"},
			{Name: "event_id"},
			{Name: "discord_user_id"},
			{Name: "guild_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert rsvp")
	}
	return nil
}

func (r *rsvpRepository) CountByStatus(ctx context.Context, provider, calendarID, eventID, guildID string) (map[string]int, error) {
	var rows []struct {
		Status string
		Count  int
	}
	query := r.db.WithContext(ctx).Model(&dbmodel.Rsvps{}).
		Select("status, COUNT(*) AS count").
		Where("event_provider = ? AND calendar_id = ? AND event_id = ?", provider, calendarID, eventID)
	if guildID != "" {
		query = query.Where("guild_id = ?", guildID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *rsvpRepository) SaveTarget(ctx context.Context, row dbmodel.RsvpTargets) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to save rsvp target")
	}
	return nil
}

func (r *rsvpRepository) FindTarget(ctx context.Context, key string) (*dbmodel.RsvpTargets, error) {
	if key == "" {
		return nil, nil
	}
	var row dbmodel.RsvpTargets
	result := r.db.WithContext(ctx).Where(&dbmodel.RsvpTargets{Key: key}).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &row, nil
}
