package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/pagination"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
)

type SettingsService interface {
	SaveReminders(ctx context.Context, settings models.ReminderSettings) error
	// GetReminders returns defaults when the user never saved settings.
	GetReminders(ctx context.Context, userID string) (models.ReminderSettings, error)
	ListEnabledReminders(ctx context.Context, page, limit int) ([]models.ReminderSettings, pagination.Pagination, error)
	SaveDigest(ctx context.Context, settings models.DigestSettings) error
	RemoveDigest(ctx context.Context, userID string, frequency models.DigestFrequency) (int64, error)
	ListDigests(ctx context.Context, userID string) ([]models.DigestSettings, error)
	ListDigestsAt(ctx context.Context, hour, minute int) ([]models.DigestSettings, error)
	MarkDigestSent(ctx context.Context, userID string, frequency models.DigestFrequency, sentAt time.Time) error
}

type settingsService struct {
	reminderRepo repository.ReminderSettingRepository
	digestRepo   repository.DigestSettingRepository
}

func NewSettingsService(reminderRepo repository.ReminderSettingRepository, digestRepo repository.DigestSettingRepository) SettingsService {
	return &settingsService{
		reminderRepo: reminderRepo,
		digestRepo:   digestRepo,
	}
}

func (s *settingsService) SaveReminders(ctx context.Context, settings models.ReminderSettings) error {
	if settings.UserID == "" {
		return errors.New("invalid user id")
	}
	if settings.LeadMinutes < 1 {
		return errors.Errorf("lead minutes must be at least 1, got %d", settings.LeadMinutes)
	}
	if settings.Provider == "" {
		settings.Provider = models.ProviderGoogle
	}
	return s.reminderRepo.Upsert(ctx, dbmodel.ReminderSettings{
		DiscordUserID:   settings.UserID,
		Provider:        string(settings.Provider),
		LeadMinutes:     settings.LeadMinutes,
		NotifyChannelID: optional(settings.NotifyChannelID),
		NotifyRoleID:    optional(settings.NotifyRoleID),
		Enabled:         settings.Enabled,
	})
}

func (s *settingsService) GetReminders(ctx context.Context, userID string) (models.ReminderSettings, error) {
	row, err := s.reminderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return models.ReminderSettings{}, err
	}
	if row == nil {
		return models.ReminderSettings{
			UserID:      userID,
			Provider:    models.ProviderGoogle,
			LeadMinutes: constant.DEFAULT_LEAD_MINUTES,
		}, nil
	}
	return toReminderSettings(*row), nil
}

func (s *settingsService) ListEnabledReminders(ctx context.Context, page, limit int) ([]models.ReminderSettings, pagination.Pagination, error) {
	rows, p, err := s.reminderRepo.ListEnabled(ctx, pagination.Pagination{Page: page, Limit: limit})
	if err != nil {
		return nil, p, err
	}
	out := make([]models.ReminderSettings, 0, len(rows))
	for _, row := range rows {
		out = append(out, toReminderSettings(row))
	}
	p.Rows = out
	return out, p, nil
}

func (s *settingsService) SaveDigest(ctx context.Context, settings models.DigestSettings) error {
	if settings.UserID == "" {
		return errors.New("invalid user id")
	}
	if _, err := models.ParseDigestFrequency(string(settings.Frequency)); err != nil {
		return err
	}
	if settings.Hour < 0 || settings.Hour > 23 || settings.Minute < 0 || settings.Minute > 59 {
		return errors.Errorf("invalid digest time %02d:%02d", settings.Hour, settings.Minute)
	}
	return s.digestRepo.Upsert(ctx, dbmodel.DigestSettings{
		DiscordUserID: settings.UserID,
		Frequency:     string(settings.Frequency),
		Hour:          settings.Hour,
		Minute:        settings.Minute,
	})
}

func (s *settingsService) RemoveDigest(ctx context.Context, userID string, frequency models.DigestFrequency) (int64, error) {
	return s.digestRepo.Delete(ctx, userID, string(frequency))
}

func (s *settingsService) ListDigests(ctx context.Context, userID string) ([]models.DigestSettings, error) {
	rows, err := s.digestRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDigestSettings(rows), nil
}

func (s *settingsService) ListDigestsAt(ctx context.Context, hour, minute int) ([]models.DigestSettings, error) {
	rows, err := s.digestRepo.ListAt(ctx, hour, minute)
	if err != nil {
		return nil, err
	}
	return toDigestSettings(rows), nil
}

func (s *settingsService) MarkDigestSent(ctx context.Context, userID string, frequency models.DigestFrequency, sentAt time.Time) error {
	return s.digestRepo.UpdateLastSent(ctx, userID, string(frequency), sentAt.UTC())
}

func toReminderSettings(row dbmodel.ReminderSettings) models.ReminderSettings {
	settings := models.ReminderSettings{
		UserID:      row.DiscordUserID,
		Provider:    models.Provider(row.Provider),
		LeadMinutes: row.LeadMinutes,
		Enabled:     row.Enabled,
	}
	if row.NotifyChannelID != nil {
		settings.NotifyChannelID = *row.NotifyChannelID
	}
	if row.NotifyRoleID != nil {
		settings.NotifyRoleID = *row.NotifyRoleID
	}
	return settings
}

func toDigestSettings(rows []dbmodel.DigestSettings) []models.DigestSettings {
	out := make([]models.DigestSettings, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DigestSettings{
			UserID:     row.DiscordUserID,
			Frequency:  models.DigestFrequency(row.Frequency),
			Hour:       row.Hour,
			Minute:     row.Minute,
			LastSentAt: row.LastSentAt,
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
