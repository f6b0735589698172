package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

type DigestScheduler struct {
	deps Deps
}

func NewDigestScheduler(deps Deps) *DigestScheduler {
	deps.defaults()
	return &DigestScheduler{deps: deps}
}

// Tick sends the digests scheduled for the current minute.
func (d *DigestScheduler) Tick(ctx context.Context) {
	now := d.deps.Now().In(d.deps.Location)
	due, err := d.deps.Settings.ListDigestsAt(ctx, now.Hour(), now.Minute())
	if err != nil {
		d.deps.Logger.Error("failed to list digest settings", "err", err)
		return
	}
	fanOut(due, d.deps.MaxGoroutines, func(s models.DigestSettings) {
		if err := d.sendDigest(ctx, s, now); err != nil {
			d.deps.logUserError("failed to send digest", s.UserID, err)
		}
	})
}

// period returns the start of the day or ISO week containing t, and its key.
func period(freq models.DigestFrequency, t time.Time) (time.Time, string) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if freq == models.DigestWeekly {
		// ISO weeks start on Monday
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		year, week := t.ISOWeek()
		return start, fmt.Sprintf("%d-W%02d", year, week)
	}
	return day, day.Format(constant.GRAPH_DATE_FORMAT)
}

func horizon(freq models.DigestFrequency) time.Duration {
	if freq == models.DigestWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

func (d *DigestScheduler) sendDigest(ctx context.Context, settings models.DigestSettings, now time.Time) error {
	start, key := period(settings.Frequency, now)
	if settings.LastSentAt != nil && !settings.LastSentAt.Before(start) {
		return nil
	}

	reminders, err := d.deps.Settings.GetReminders(ctx, settings.UserID)
	if err != nil {
		return err
	}
	cred, err := d.deps.freshCredential(ctx, settings.UserID, reminders.Provider)
	if err != nil {
		return err
	}
	p, err := d.deps.Registry.Get(cred.Provider)
	if err != nil {
		return err
	}
	events, err := p.ListUpcoming(ctx, cred.Tokens(), cred.CalendarID, constant.DIGEST_FETCH_LIMIT)
	if err != nil {
		return err
	}
	until := now.Add(horizon(settings.Frequency))
	inRange := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Start.After(until) {
			continue
		}
		inRange = append(inRange, e)
	}

	err = d.deps.Marks.Mark(ctx, models.ReminderMark{
		UserID:      settings.UserID,
		Provider:    cred.Provider,
		CalendarID:  constant.DIGEST_CALENDAR_ID,
		EventID:     fmt.Sprintf("%s:%s", settings.Frequency, key),
		WindowStart: start,
	})
	if errors.Is(err, apperr.ErrDuplicateSuppressed) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := d.deps.Sender.SendDM(ctx, settings.UserID, chat.Text(digestText(settings.Frequency, inRange, d.deps.Location))); err != nil {
		d.deps.Logger.Warn("failed to send digest dm", "user_id", settings.UserID, "err", err)
	}
	return d.deps.Settings.MarkDigestSent(ctx, settings.UserID, settings.Frequency, now)
}

func digestText(freq models.DigestFrequency, events []models.Event, loc *time.Location) string {
	var b strings.Builder
	if freq == models.DigestWeekly {
		b.WriteString("**Your week ahead**\n")
	} else {
		b.WriteString("**Your day ahead**\n")
	}
	if len(events) == 0 {
		b.WriteString("No upcoming events.")
		return b.String()
	}
	for _, e := range events {
		when := e.Start.In(loc).Format(constant.SHORT_DATE_FORMAT)
		if !e.AllDay {
			when += " " + e.Start.In(loc).Format(constant.DIGEST_TIME_FORMAT)
		}
		line := fmt.Sprintf("• %s %s", when, e.DisplayTitle())
		if e.HTMLLink != "" {
			line += fmt.Sprintf(" (<%s>)", e.HTMLLink)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
