package service

import (
	"context"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
)

type ReminderMarkService interface {
	// Mark returns ErrDuplicateSuppressed when the mark already exists.
	Mark(ctx context.Context, mark models.ReminderMark) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type reminderMarkService struct {
	sentRepo repository.ReminderSentRepository
}

func NewReminderMarkService(sentRepo repository.ReminderSentRepository) ReminderMarkService {
	return &reminderMarkService{
		sentRepo: sentRepo,
	}
}

func (r *reminderMarkService) Mark(ctx context.Context, mark models.ReminderMark) error {
	inserted, err := r.sentRepo.Insert(ctx, dbmodel.ReminderSent{
		DiscordUserID: mark.UserID,
		Provider:      string(mark.Provider),
		CalendarID:    mark.CalendarID,
		EventID:       mark.EventID,
		WindowStart:   mark.WindowStart.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return apperr.ErrDuplicateSuppressed
	}
	return nil
}

func (r *reminderMarkService) Prune(ctx context.Context, before time.Time) (int64, error) {
	return r.sentRepo.DeleteBefore(ctx, before.UnixMilli())
}
