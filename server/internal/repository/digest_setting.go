package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DigestSettingRepository interface {
	Upsert(ctx context.Context, row dbmodel.DigestSettings) error
	Delete(ctx context.Context, userID, frequency string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]dbmodel.DigestSettings, error)
	ListAt(ctx context.Context, hour, minute int) ([]dbmodel.DigestSettings, error)
	UpdateLastSent(ctx context.Context, userID, frequency string, sentAt time.Time) error
}

type digestSettingRepository struct {
	db *gorm.DB
}

func NewDigestSettingRepository(db *gorm.DB) DigestSettingRepository {
	return &digestSettingRepository{
		db: db,
	}
}

func (d *digestSettingRepository) Upsert(ctx context.Context, row dbmodel.DigestSettings) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_user_id"}, {Name: "frequency"}},
		DoUpdates: clause.AssignmentColumns([]string{"hour", "minute"}),
	}).Select("*").Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert digest settings")
	}
	return nil
}

func (d *digestSettingRepository) Delete(ctx context.Context, userID, frequency string) (int64, error) {
	query := d.db.WithContext(ctx).Where("discord_user_id = ?", userID)
	if frequency != "" {
		query = query.Where("frequency = ?", frequency)
	}
	res := query.Delete(&dbmodel.DigestSettings{})
	return res.RowsAffected, res.Error
}

func (d *digestSettingRepository) ListByUser(ctx context.Context, userID string) ([]dbmodel.DigestSettings, error) {
	var rows []dbmodel.DigestSettings
	if err := d.db.WithContext(ctx).Where("discord_user_id = ?", userID).Order("frequency").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *digestSettingRepository) ListAt(ctx context.Context, hour, minute int) ([]dbmodel.DigestSettings, error) {
	var rows []dbmodel.DigestSettings
	if err := d.db.WithContext(ctx).Where("hour = ? AND minute = ?", hour, minute).
		Order("discord_user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *digestSettingRepository) UpdateLastSent(ctx context.Context, userID, frequency string, sentAt time.Time) error {
	return d.db.WithContext(ctx).Model(&dbmodel.DigestSettings{}).
		Where("discord_user_id = ? AND frequency = ?", userID, frequency).
		Update("last_sent_at", sentAt).Error
}
