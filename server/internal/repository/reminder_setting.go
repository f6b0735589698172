package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReminderSettingRepository interface {
	Upsert(ctx context.Context, row dbmodel.ReminderSettings) error
	FindByUserID(ctx context.Context, userID string) (*dbmodel.ReminderSettings, error)
	ListEnabled(ctx context.Context, p pagination.Pagination) ([]dbmodel.ReminderSettings, pagination.Pagination, error)
}

type reminderSettingRepository struct {
	db *gorm.DB
}

func NewReminderSettingRepository(db *gorm.DB) ReminderSettingRepository {
	return &reminderSettingRepository{
		db: db,
	}
}

func (r *reminderSettingRepository) Upsert(ctx context.Context, row dbmodel.ReminderSettings) error {
	// Enabled=false is a zero value, so columns are assigned explicitly
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider", "lead_minutes", "notify_channel_id", "notify_role_id", "enabled"}),
	}).Select("*").Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert reminder settings")
	}
	return nil
}

func (r *reminderSettingRepository) FindByUserID(ctx context.Context, userID string) (*dbmodel.ReminderSettings, error) {
	var row dbmodel.ReminderSettings
	result := r.db.WithContext(ctx).Where("discord_user_id = ?", userID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &row, nil
}

func (r *reminderSettingRepository) ListEnabled(ctx context.Context, p pagination.Pagination) ([]dbmodel.ReminderSettings, pagination.Pagination, error) {
	var rows []dbmodel.ReminderSettings
	query := r.db.WithContext(ctx).Where("enabled = ?", true)
	if err := query.Scopes(pagination.Paginate(query, &dbmodel.ReminderSettings{}, &p)).
		Order("discord_user_id").Find(&rows).Error; err != nil {
		return nil, p, err
	}
	p.Rows = rows
	return rows, p, nil
}
