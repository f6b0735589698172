package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReminderSentRepository interface {
	// Insert reports whether the mark was new.
	Insert(ctx context.Context, row dbmodel.ReminderSent) (bool, error)
	DeleteBefore(ctx context.Context, windowStart int64) (int64, error)
}

type reminderSentRepository struct {
	db *gorm.DB
}

func NewReminderSentRepository(db *gorm.DB) ReminderSentRepository {
	return &reminderSentRepository{
		db: db,
	}
}

func (r *reminderSentRepository) Insert(ctx context.Context, row dbmodel.ReminderSent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to insert reminder mark")
	}
	return res.RowsAffected == 1, nil
}

func (r *reminderSentRepository) DeleteBefore(ctx context.Context, windowStart int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("window_start < ?", windowStart).Delete(&dbmodel.ReminderSent{})
	return res.RowsAffected, res.Error
}
