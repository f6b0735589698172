package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

const pageSize = 100

type ReminderScheduler struct {
	deps Deps
}

func NewReminderScheduler(deps Deps) *ReminderScheduler {
	deps.defaults()
	return &ReminderScheduler{deps: deps}
}

// Tick checks every enabled user once. Per-user failures are logged and never
// stop the tick.
func (r *ReminderScheduler) Tick(ctx context.Context) {
	page := 1
	for {
		settings, p, err := r.deps.Settings.ListEnabledReminders(ctx, page, pageSize)
		if err != nil {
			r.deps.Logger.Error("failed to list reminder settings", "page", page, "err", err)
			return
		}
		if len(settings) == 0 {
			break
		}

		fanOut(settings, r.deps.MaxGoroutines, func(s models.ReminderSettings) {
			if err := r.remindUser(ctx, s); err != nil {
				r.deps.logUserError("failed to remind user", s.UserID, err)
			}
		})

		if page >= p.TotalPages {
			break
		}
		page++
	}
}

func (r *ReminderScheduler) remindUser(ctx context.Context, settings models.ReminderSettings) error {
	if !settings.Enabled {
		return nil
	}
	providerName := settings.Provider
	if providerName == "" {
		providerName = models.ProviderGoogle
	}

	cred, err := r.deps.freshCredential(ctx, settings.UserID, providerName)
	if err != nil {
		return err
	}
	p, err := r.deps.Registry.Get(cred.Provider)
	if err != nil {
		return err
	}
	events, err := p.ListUpcoming(ctx, cred.Tokens(), cred.CalendarID, constant.REMINDER_FETCH_LIMIT)
	if err != nil {
		return err
	}

	now := r.deps.Now()
	deadline := now.Add(settings.Lead())
	window := windowStart(now)
	for _, event := range events {
		if event.Start.Before(now) || event.Start.After(deadline) {
			continue
		}

		err := r.deps.Marks.Mark(ctx, models.ReminderMark{
			UserID:      settings.UserID,
			Provider:    cred.Provider,
			CalendarID:  cred.CalendarID,
			EventID:     event.DedupeID(),
			WindowStart: window,
		})
		if errors.Is(err, apperr.ErrDuplicateSuppressed) {
			continue
		}
		if err != nil {
			r.deps.logUserError("failed to mark reminder", settings.UserID, err)
			continue
		}

		r.deliver(ctx, settings, reminderText(event, r.deps.Location))
	}
	return nil
}

func (r *ReminderScheduler) deliver(ctx context.Context, settings models.ReminderSettings, text string) {
	if err := r.deps.Sender.SendDM(ctx, settings.UserID, chat.Text(text)); err != nil {
		r.deps.Logger.Warn("failed to send reminder dm", "user_id", settings.UserID, "err", err)
	}
	if settings.NotifyChannelID == "" {
		return
	}
	if settings.NotifyRoleID != "" {
		text = fmt.Sprintf("<@&%s> %s", settings.NotifyRoleID, text)
	}
	if err := r.deps.Sender.SendChannel(ctx, settings.NotifyChannelID, chat.Text(text)); err != nil {
		r.deps.Logger.Warn("failed to post reminder", "user_id", settings.UserID, "channel_id", settings.NotifyChannelID, "err", err)
	}
}

func reminderText(event models.Event, loc *time.Location) string {
	text := fmt.Sprintf("Reminder: \"%s\" at %s", event.DisplayTitle(), event.Start.In(loc).Format(constant.REMINDER_FORMAT))
	if event.HTMLLink != "" {
		text += "\n" + event.HTMLLink
	}
	return text
}
