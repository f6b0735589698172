package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

type invite struct {
	title    string
	when     string
	location string
	link     string
	host     string
	note     string
	rsvp     *models.RSVPSummary
}

func (i invite) content() string {
	lines := []string{fmt.Sprintf("📅 **Event invite** from **%s**", i.host)}
	if i.note != "" {
		lines = append(lines, i.note)
	}
	lines = append(lines, "", "**"+i.title+"**")
	if i.when != "" {
		lines = append(lines, "**When:** "+i.when)
	}
	if i.location != "" {
		lines = append(lines, "**Location:** "+i.location)
	}
	lines = append(lines, fmt.Sprintf("**Link:** <%s>", i.link))
	if i.rsvp != nil {
		lines = append(lines, fmt.Sprintf("**RSVPs:** 👍 %d • 👎 %d", i.rsvp.Yes, i.rsvp.No))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) executeCommandInvite(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	mode := in.String("mode")
	calendarID := strings.TrimSpace(in.String("calendar_id"))
	eventID := strings.TrimSpace(in.String("event_id"))
	withRSVP := in.Bool("rsvp", false) && calendarID != "" && eventID != ""

	inv := invite{
		title: in.String("title"),
		link:  strings.TrimSpace(in.String("event_url")),
		host:  in.Username,
		note:  in.String("note"),
	}
	if inv.host == "" {
		inv.host = fmt.Sprintf("<@%s>", in.UserID)
	}

	if inv.link == "" && calendarID != "" && eventID != "" {
		cred, client, err := b.activeCredential(ctx, in.UserID, p, false)
		if err != nil {
			return Reply{}, err
		}
		event, err := client.GetEvent(ctx, cred.Tokens(), calendarID, eventID)
		if err != nil {
			return Reply{}, err
		}
		inv.link = event.HTMLLink
		if inv.title == "" {
			inv.title = event.DisplayTitle()
		}
		inv.location = event.Location
		inv.when = b.formatRange(event)
	}
	if inv.link == "" {
		return text("Please provide either `event_url` or `calendar_id` + `event_id`."), nil
	}
	if inv.title == "" {
		inv.title = "Event Invitation"
	}

	buttons := []chat.Button{{Label: "Open event", URL: inv.link, Style: chat.ButtonLink}}
	if withRSVP {
		summary, err := b.services.rsvpService.Summary(ctx, p, calendarID, eventID, in.GuildID)
		if err != nil {
			return Reply{}, err
		}
		target, err := b.services.rsvpService.Target(ctx, p, calendarID, eventID, in.GuildID)
		if err != nil {
			return Reply{}, err
		}
		inv.rsvp = &summary
		buttons = append(buttons,
			chat.Button{Label: "👍 RSVP Yes", CustomID: rsvpCustomID(target.Key, models.RSVPYes), Style: chat.ButtonSuccess},
			chat.Button{Label: "👎 RSVP No", CustomID: rsvpCustomID(target.Key, models.RSVPNo), Style: chat.ButtonDanger},
		)
	}
	msg := chat.Message{Content: inv.content(), Buttons: buttons}

	switch mode {
	case "global":
		if in.ChannelID == "" {
			return text("Cannot post in this channel."), nil
		}
		if err := b.sender.SendChannel(ctx, in.ChannelID, msg); err != nil {
			return Reply{}, err
		}
		if withRSVP {
			return text("Invite posted (RSVP enabled)."), nil
		}
		return text("Invite posted."), nil

	case "private":
		recipient := in.String("user")
		if recipient == "" {
			return text("Select a `user` to DM for private mode."), nil
		}
		if err := b.sender.SendDM(ctx, recipient, msg); err != nil {
			b.logger.Warn("failed to send private invite", "recipient", recipient, "err", err)
			return text(fmt.Sprintf("I couldn't DM <@%s>. They may have DMs closed.", recipient)), nil
		}
		return text(fmt.Sprintf("Invite sent to <@%s>.", recipient)), nil

	case "silent":
		var recipients []string
		for i := 1; i <= constant.MAX_SILENT_INVITEES; i++ {
			if id := in.String(fmt.Sprintf("user%d", i)); id != "" {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) == 0 {
			return text("Add at least one recipient (user1..user10) for silent mode."), nil
		}
		delivered, failed := 0, 0
		for _, recipient := range recipients {
			if err := b.sender.SendDM(ctx, recipient, msg); err != nil {
				b.logger.Warn("failed to send silent invite", "recipient", recipient, "err", err)
				failed++
				continue
			}
			delivered++
		}
		result := fmt.Sprintf("Silent invites sent. ✅ %d delivered", delivered)
		if failed > 0 {
			result += fmt.Sprintf(", ❌ %d failed", failed)
		}
		return text(result + "."), nil
	}
	return text("Unknown mode."), nil
}
