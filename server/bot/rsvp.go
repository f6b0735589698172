package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/service"
)

var errInvalidRSVPPayload = errors.New("invalid rsvp payload")

type rsvpAction struct {
	// Key is set for buttons that point at a stored target.
	Key        string
	Provider   models.Provider
	CalendarID string
	EventID    string
	GuildID    string
	Status     models.RSVPStatus
}

// rsvpCustomID builds rsvp|key|status. Event and calendar ids stay in the
// database since Discord caps custom ids at 100 characters.
func rsvpCustomID(key string, status models.RSVPStatus) string {
	return strings.Join([]string{constant.RSVP_PREFIX, key, string(status)}, "|")
}

// parseRSVPCustomID accepts rsvp|key|status and the older inline forms
// rsvp|provider|calendar|event|guild|status and the same without a guild,
// where the guild falls back to guildID.
func parseRSVPCustomID(customID, guildID string) (rsvpAction, error) {
	parts := strings.Split(customID, "|")
	if parts[0] != constant.RSVP_PREFIX {
		return rsvpAction{}, errInvalidRSVPPayload
	}

	var action rsvpAction
	var calendarID, eventID, status string
	switch len(parts) {
	case 3:
		if parts[1] == "" {
			return rsvpAction{}, errInvalidRSVPPayload
		}
		action.Key = parts[1]
		action.Status = parseRSVPStatus(parts[2])
		return action, nil
	case 6:
		calendarID, eventID, action.GuildID, status = parts[2], parts[3], parts[4], parts[5]
	case 5:
		calendarID, eventID, status = parts[2], parts[3], parts[4]
	default:
		return rsvpAction{}, errInvalidRSVPPayload
	}
	if action.GuildID == "" {
		action.GuildID = guildID
	}

	p, err := models.ParseProvider(parts[1])
	if err != nil {
		return rsvpAction{}, errInvalidRSVPPayload
	}
	action.Provider = p
	if action.CalendarID, err = url.PathUnescape(calendarID); err != nil {
		return rsvpAction{}, errInvalidRSVPPayload
	}
	if action.EventID, err = url.PathUnescape(eventID); err != nil {
		return rsvpAction{}, errInvalidRSVPPayload
	}
	if action.CalendarID == "" || action.EventID == "" {
		return rsvpAction{}, errInvalidRSVPPayload
	}
	action.Status = parseRSVPStatus(status)
	return action, nil
}

// anything but yes counts as no
func parseRSVPStatus(status string) models.RSVPStatus {
	if status == string(models.RSVPYes) {
		return models.RSVPYes
	}
	return models.RSVPNo
}

func isRSVPCustomID(customID string) bool {
	return strings.HasPrefix(customID, constant.RSVP_PREFIX+"|")
}

// HandleRSVP records a button press and replies with the current counts.
func (b *Bot) HandleRSVP(ctx context.Context, userID, guildID, customID string) Reply {
	action, err := parseRSVPCustomID(customID, guildID)
	if err != nil {
		return text("Invalid RSVP payload.")
	}

	rsvps := b.services.rsvpService
	if action.Key != "" {
		target, err := rsvps.Resolve(ctx, action.Key)
		if errors.Is(err, service.ErrRSVPTargetNotFound) {
			return text("Invalid RSVP payload.")
		}
		if err != nil {
			b.logger.Error("failed to resolve rsvp target", "key", action.Key, "err", err)
			return text("Failed to record RSVP.")
		}
		action.Provider, action.CalendarID, action.EventID, action.GuildID = target.Provider, target.CalendarID, target.EventID, target.GuildID
	}
	if err := rsvps.Set(ctx, models.RSVP{
		GuildID:    action.GuildID,
		Provider:   action.Provider,
		CalendarID: action.CalendarID,
		EventID:    action.EventID,
		UserID:     userID,
		Status:     action.Status,
	}); err != nil {
		b.logger.Error("failed to record rsvp", "user_id", userID, "event_id", action.EventID, "kind", apperr.Kind(err), "err", err)
		return text("Failed to record RSVP.")
	}

	summary, err := rsvps.Summary(ctx, action.Provider, action.CalendarID, action.EventID, action.GuildID)
	if err != nil {
		b.logger.Error("failed to load rsvp summary", "event_id", action.EventID, "err", err)
		return text(fmt.Sprintf("RSVP recorded: **%s**.", action.Status))
	}
	return text(fmt.Sprintf("RSVP recorded: **%s**. Current: 👍 %d • 👎 %d", action.Status, summary.Yes, summary.No))
}
