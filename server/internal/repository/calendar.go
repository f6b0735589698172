package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CalendarRepository interface {
	Upsert(ctx context.Context, row dbmodel.Calendars, writeActive bool) error
	SetActive(ctx context.Context, userID, provider, calendarID string) error
	FindActive(ctx context.Context, userID, provider string) (*dbmodel.Calendars, error)
	FindPublicActive(ctx context.Context, userID, provider string) (*dbmodel.Calendars, error)
	FindByIdentity(ctx context.Context, userID, provider, calendarID string) (*dbmodel.Calendars, error)
	ListByUser(ctx context.Context, userID string) ([]dbmodel.Calendars, error)
	UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt time.Time) error
	DeleteByProvider(ctx context.Context, userID, provider string) (int64, error)
	UpdateActiveVisibility(ctx context.Context, userID, provider, visibility string) (int64, error)
	CountByProvider(ctx context.Context, userID string) (map[string]int, error)
}

type calendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) CalendarRepository {
	return &calendarRepository{
		db: db,
	}
}

func (c *calendarRepository) Upsert(ctx context.Context, row dbmodel.Calendars, writeActive bool) error {
	assignments := map[string]interface{}{
		"access_token":  gorm.Expr("excluded.access_token"),
		"refresh_token": gorm.Expr("COALESCE(excluded.refresh_token, calendars.refresh_token)"),
		"expires_at":    gorm.Expr("excluded.expires_at"),
		"visibility":    gorm.Expr("excluded.visibility"),
		"updated_at":    gorm.Expr("excluded.updated_at"),
	}
	if writeActive {
		assignments["is_active"] = gorm.Expr("excluded.is_active")
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "discord_user_id"},
			{Name: "provider"},
			{Name: "calendar_id"},
		},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert calendar")
	}
	return nil
}

func (c *calendarRepository) SetActive(ctx context.Context, userID, provider, calendarID string) (err error) {
	// start transaction
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback().Error; rbErr != nil {
				err = errors.Wrapf(err, "rollback failed: %v", rbErr)
			}
			return
		}

		// commit
		if cmErr := tx.Commit().Error; cmErr != nil {
			err = errors.Wrap(cmErr, "failed to commit transaction")
		}
	}()

	// clear siblings
	if err = tx.Model(&dbmodel.Calendars{}).
		Where("discord_user_id = ? AND provider = ?", userID, provider).
		Update("is_active", false).Error; err != nil {
		return errors.Wrap(err, "failed to clear active calendar")
	}

	// activate target
	res := tx.Model(&dbmodel.Calendars{}).
		Where("discord_user_id = ? AND provider = ? AND calendar_id = ?", userID, provider, calendarID).
		Update("is_active", true)
	if res.Error != nil {
		err = errors.Wrap(res.Error, "failed to activate calendar")
		return err
	}
	if res.RowsAffected == 0 {
		err = apperr.ErrCalendarNotLinked
		return err
	}
	return nil
}

func (c *calendarRepository) FindActive(ctx context.Context, userID, provider string) (*dbmodel.Calendars, error) {
	return c.first(ctx, "discord_user_id = ? AND provider = ? AND is_active = ?", userID, provider, true)
}

func (c *calendarRepository) FindPublicActive(ctx context.Context, userID, provider string) (*dbmodel.Calendars, error) {
	return c.first(ctx, "discord_user_id = ? AND provider = ? AND is_active = ? AND visibility = ?", userID, provider, true, "public")
}

func (c *calendarRepository) FindByIdentity(ctx context.Context, userID, provider, calendarID string) (*dbmodel.Calendars, error) {
	return c.first(ctx, "discord_user_id = ? AND provider = ? AND calendar_id = ?", userID, provider, calendarID)
}

func (c *calendarRepository) first(ctx context.Context, query string, args ...interface{}) (*dbmodel.Calendars, error) {
	var row dbmodel.Calendars
	result := c.db.WithContext(ctx).Where(query, args...).Order("id").First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		// other error
		return nil, result.Error
	}
	return &row, nil
}

func (c *calendarRepository) ListByUser(ctx context.Context, userID string) ([]dbmodel.Calendars, error) {
	var rows []dbmodel.Calendars
	if err := c.db.WithContext(ctx).Where("discord_user_id = ?", userID).
		Order("provider, is_active DESC, calendar_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *calendarRepository) UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}
	if refreshToken != nil {
		updates["refresh_token"] = *refreshToken
	}
	return c.db.WithContext(ctx).Model(&dbmodel.Calendars{}).Where("id = ?", id).Updates(updates).Error
}

func (c *calendarRepository) DeleteByProvider(ctx context.Context, userID, provider string) (int64, error) {
	res := c.db.WithContext(ctx).Where("discord_user_id = ? AND provider = ?", userID, provider).Delete(&dbmodel.Calendars{})
	return res.RowsAffected, res.Error
}

func (c *calendarRepository) UpdateActiveVisibility(ctx context.Context, userID, provider, visibility string) (int64, error) {
	res := c.db.WithContext(ctx).Model(&dbmodel.Calendars{}).
		Where("discord_user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		Update("visibility", visibility)
	return res.RowsAffected, res.Error
}

func (c *calendarRepository) CountByProvider(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		Provider string
		Count    int
	}
	if err := c.db.WithContext(ctx).Model(&dbmodel.Calendars{}).
		Select("provider, COUNT(*) AS count").
		Where("discord_user_id = ?", userID).
		Group("provider").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Provider] = r.Count
	}
	return counts, nil
}
