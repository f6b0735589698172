package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/oauthstate"
)

var (
	providerChoices = []Choice{
		{Name: "Google", Value: string(models.ProviderGoogle)},
		{Name: "Microsoft", Value: string(models.ProviderMicrosoft)},
	}
	visibilityChoices = []Choice{
		{Name: "private", Value: string(models.VisibilityPrivate)},
		{Name: "public", Value: string(models.VisibilityPublic)},
	}
)

func providerOption(required bool) Option {
	desc := "Calendar provider (default: google)"
	if required {
		desc = "Calendar provider"
	}
	return Option{Name: "provider", Description: desc, Type: OptionString, Required: required, Choices: providerChoices}
}

func (b *Bot) registerCommands() {
	commands := []Command{
		{
			Name:        constant.LINK_CMD,
			Description: "Link your calendar account (Google or Microsoft)",
			Options: []Option{
				providerOption(true),
				{Name: "visibility", Description: "Default visibility for this linked calendar", Type: OptionString, Required: true, Choices: visibilityChoices},
			},
			Execute: b.executeCommandLink,
		},
		{
			Name:        constant.UNLINK_CMD,
			Description: "Unlink (remove) your calendars for a provider",
			Options:     []Option{providerOption(true)},
			Execute:     b.executeCommandUnlink,
		},
		{
			Name:        constant.SET_CMD,
			Description: "Set which calendar is active for your linked account",
			Options: []Option{
				{Name: "calendar_id", Description: "Calendar ID (from /list-calendars)", Type: OptionString, Required: true},
				{Name: "visibility", Description: "Whether others can view your events via /events", Type: OptionString, Choices: visibilityChoices},
				providerOption(false),
			},
			Execute: b.executeCommandSet,
		},
		{
			Name:        constant.LIST_CMD,
			Description: "List calendars from your linked account",
			Options: []Option{
				providerOption(false),
				{Name: "max", Description: "How many to show (default 10, max 25)", Type: OptionInteger, Min: intPtr(1), Max: intPtr(constant.MAX_CALENDAR_COUNT)},
			},
			Execute: b.executeCommandList,
		},
		{
			Name:        constant.VISIBILITY_CMD,
			Description: "Set your active calendar visibility (public/private)",
			Options: []Option{
				{Name: "visibility", Description: "Visibility to apply on the active calendar", Type: OptionString, Required: true, Choices: visibilityChoices},
				providerOption(false),
			},
			Execute: b.executeCommandVisibility,
		},
		{
			Name:        constant.WHOAMI_CMD,
			Description: "Show your linked providers and active calendars",
			Execute:     b.executeCommandWhoami,
		},
		{
			Name:        constant.EVENTS_CMD,
			Description: "Show upcoming events (yours or another user's public calendar)",
			Options: []Option{
				{Name: "user", Description: "Another user (must be public)", Type: OptionUser},
				{Name: "count", Description: "How many (default 5)", Type: OptionInteger, Min: intPtr(1), Max: intPtr(constant.MAX_EVENTS_COUNT)},
				providerOption(false),
			},
			Public:  true,
			Execute: b.executeCommandEvents,
		},
		{
			Name:        constant.CREATE_CMD,
			Description: "Create an event on your active calendar",
			Options: []Option{
				{Name: "title", Description: "Event title", Type: OptionString, Required: true},
				{Name: "start_iso", Description: "Start, e.g. 2025-08-30T13:00", Type: OptionString, Required: true},
				{Name: "end_iso", Description: "End, e.g. 2025-08-30T14:00", Type: OptionString, Required: true},
				{Name: "location", Description: "Optional location", Type: OptionString},
				{Name: "description", Description: "Optional description", Type: OptionString},
				{Name: "recurrence", Description: "Repeat the event", Type: OptionString, Choices: []Choice{
					{Name: "none", Value: "none"},
					{Name: "daily", Value: string(models.RecurrenceDaily)},
					{Name: "weekly", Value: string(models.RecurrenceWeekly)},
				}},
				providerOption(false),
			},
			Execute: b.executeCommandCreate,
		},
		{
			Name:        constant.DELETE_CMD,
			Description: "Delete an event from your active calendar",
			Options: []Option{
				{Name: "event_id", Description: "Event ID", Type: OptionString, Required: true},
				providerOption(false),
			},
			Execute: b.executeCommandDelete,
		},
		{
			Name:        constant.INVITE_CMD,
			Description: "Invite people to an event via channel post or DMs",
			Options:     inviteOptions(),
			Execute:     b.executeCommandInvite,
		},
		{
			Name:        constant.REMINDERS_CMD,
			Description: "Configure event reminders (lead time, DM/channel, role)",
			Options: []Option{
				{Name: "lead_minutes", Description: "Minutes before event to remind (default 15)", Type: OptionInteger, Min: intPtr(1)},
				{Name: "channel", Description: "Channel to post reminders (optional)", Type: OptionChannel},
				{Name: "role", Description: "Role to mention (optional)", Type: OptionRole},
				{Name: "enabled", Description: "Enable reminders (default true)", Type: OptionBoolean},
				providerOption(false),
			},
			Execute: b.executeCommandReminders,
		},
		{
			Name:        constant.DIGEST_CMD,
			Description: "Configure daily/weekly digests (DM)",
			Options: []Option{
				{Name: "frequency", Description: "daily, weekly or off", Type: OptionString, Required: true, Choices: []Choice{
					{Name: "daily", Value: string(models.DigestDaily)},
					{Name: "weekly", Value: string(models.DigestWeekly)},
					{Name: "off", Value: "off"},
				}},
				{Name: "hour", Description: "Hour (0-23)", Type: OptionInteger, Min: intPtr(0), Max: intPtr(23)},
				{Name: "minute", Description: "Minute (0-59)", Type: OptionInteger, Min: intPtr(0), Max: intPtr(59)},
			},
			Execute: b.executeCommandDigest,
		},
		{
			Name:        constant.RANK_CMD,
			Description: "Show your (or another member's) level and XP",
			Options:     []Option{{Name: "user", Description: "Member to check (defaults to you)", Type: OptionUser}},
			Public:      true,
			Execute:     b.executeCommandRank,
		},
		{
			Name:        constant.LEADERBOARD_CMD,
			Description: "Show the top users by level/xp in this server",
			Options: []Option{
				{Name: "limit", Description: "How many users to show (default 10, max 25)", Type: OptionInteger, Min: intPtr(1), Max: intPtr(constant.MAX_LEADERBOARD)},
			},
			Public:  true,
			Execute: b.executeCommandLeaderboard,
		},
	}

	b.commands = make(map[string]Command, len(commands))
	b.commandOrder = make([]string, 0, len(commands))
	for _, c := range commands {
		b.commands[c.Name] = c
		b.commandOrder = append(b.commandOrder, c.Name)
	}
}

func inviteOptions() []Option {
	options := []Option{
		{Name: "mode", Description: "How to send the invite", Type: OptionString, Required: true, Choices: []Choice{
			{Name: "global (post in channel)", Value: "global"},
			{Name: "private (DM one user)", Value: "private"},
			{Name: "silent (DM selected users)", Value: "silent"},
		}},
		{Name: "event_url", Description: "Direct link to the event", Type: OptionString},
		{Name: "calendar_id", Description: "Calendar ID of the event", Type: OptionString},
		{Name: "event_id", Description: "Event ID", Type: OptionString},
		providerOption(false),
		{Name: "rsvp", Description: "Include RSVP buttons (requires calendar_id + event_id)", Type: OptionBoolean},
		{Name: "title", Description: "Custom title to display", Type: OptionString},
		{Name: "note", Description: "Short note to include with the invite", Type: OptionString},
		{Name: "user", Description: "User to DM (private mode)", Type: OptionUser},
	}
	for i := 1; i <= constant.MAX_SILENT_INVITEES; i++ {
		options = append(options, Option{Name: fmt.Sprintf("user%d", i), Description: "Recipient (silent mode)", Type: OptionUser})
	}
	return options
}

// ExecuteCommand runs the named command and maps any error to chat text.
func (b *Bot) ExecuteCommand(ctx context.Context, name string, in Input) Reply {
	command, ok := b.commands[name]
	if !ok {
		return text(fmt.Sprintf("Unknown command: `%v`", name))
	}
	reply, err := command.Execute(ctx, in)
	if err != nil {
		p := in.String("provider")
		if p == "" {
			p = string(models.ProviderGoogle)
		}
		if !errors.Is(err, apperr.ErrNoActiveCredential) {
			b.logger.Error("command failed", "command", name, "user_id", in.UserID, "kind", apperr.Kind(err), "err", err)
		}
		reply = text(apperr.UserMessage(err, p))
	}
	reply.Public = reply.Public || command.Public
	return reply
}

func parseProviderInput(in Input) (models.Provider, *Reply) {
	p, err := models.ParseProvider(in.String("provider"))
	if err != nil {
		reply := text("Unsupported provider.")
		return "", &reply
	}
	return p, nil
}

func (b *Bot) executeCommandLink(_ context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	if _, err := b.registry.Get(p); err != nil {
		return text(fmt.Sprintf("%s linking is not configured on this bot.", p.DisplayName())), nil
	}
	visibility, err := models.ParseVisibility(in.String("visibility"))
	if err != nil {
		return text("Unsupported visibility."), nil
	}

	// the start endpoint only trusts identities it signed here
	ticket, err := b.codec.EncodeTicket(oauthstate.Payload{
		DiscordUserID: in.UserID,
		Visibility:    visibility,
		Provider:      p,
		GuildID:       in.GuildID,
		ChannelID:     in.ChannelID,
	})
	if err != nil {
		return Reply{}, err
	}
	query := url.Values{}
	query.Set("ticket", ticket)
	link := fmt.Sprintf("%s/%s/start?%s", strings.TrimRight(b.authBaseURL, "/"), p, query.Encode())

	return Reply{
		Content: fmt.Sprintf("Click the button below to link your **%s** calendar with **%s** visibility.", p, visibility),
		Buttons: []chat.Button{{Label: fmt.Sprintf("Link %s calendar", p.DisplayName()), URL: link, Style: chat.ButtonLink}},
	}, nil
}

func (b *Bot) executeCommandUnlink(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	n, err := b.services.credentialService.Unlink(ctx, in.UserID, p)
	if err != nil {
		return Reply{}, err
	}
	if n == 0 {
		return text(fmt.Sprintf("No %s link found to remove.", p)), nil
	}
	return text(fmt.Sprintf("Unlinked %s - removed %d record(s).", p, n)), nil
}

func (b *Bot) executeCommandSet(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	calendarID := strings.TrimSpace(in.String("calendar_id"))
	if calendarID == "" {
		return text("calendar_id is required."), nil
	}
	credentials := b.services.credentialService

	// copy tokens from the active row, or any row of the provider
	source, err := credentials.GetActive(ctx, in.UserID, p)
	if errors.Is(err, apperr.ErrNoActiveCredential) {
		linked, listErr := credentials.List(ctx, in.UserID, p)
		if listErr != nil {
			return Reply{}, listErr
		}
		if len(linked) == 0 {
			return text(fmt.Sprintf("No linked %s account found. Use `/link-calendar` first.", p)), nil
		}
		source, err = linked[0], nil
	}
	if err != nil {
		return Reply{}, err
	}

	visibility := source.Visibility
	if in.String("visibility") != "" {
		if visibility, err = models.ParseVisibility(in.String("visibility")); err != nil {
			return text("Unsupported visibility."), nil
		}
	}

	if err := credentials.Upsert(ctx, models.UpsertCredential{
		UserID:       in.UserID,
		Provider:     p,
		CalendarID:   calendarID,
		AccessToken:  source.AccessToken,
		RefreshToken: source.RefreshToken,
		ExpiresAt:    source.ExpiresAt,
		Visibility:   visibility,
	}); err != nil {
		return Reply{}, err
	}
	if err := credentials.SetActive(ctx, in.UserID, p, calendarID); err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("Active %s calendar set to `%s` (%s).", p, calendarID, visibility)), nil
}

func (b *Bot) executeCommandList(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	limit := clamp(in.Int("max", constant.DEFAULT_CALENDAR_COUNT), 1, constant.MAX_CALENDAR_COUNT)

	cred, client, err := b.activeCredential(ctx, in.UserID, p, false)
	if err != nil {
		return Reply{}, err
	}
	calendars, err := client.ListCalendars(ctx, cred.Tokens(), limit)
	if err != nil {
		return Reply{}, err
	}
	if len(calendars) == 0 {
		return text(fmt.Sprintf("No calendars found on your %s account.", p.DisplayName())), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Your %s calendars** (showing %d)\n", p.DisplayName(), len(calendars))
	for _, cal := range calendars {
		name := cal.Name
		if name == "" {
			name = "(no title)"
		}
		if cal.Primary {
			name = "⭐ " + name
		}
		fmt.Fprintf(&sb, "• %s `%s` (%s)", name, cal.ID, cal.Role)
		if cal.ID == cred.CalendarID || (cal.Primary && cred.CalendarID == constant.PRIMARY_CALENDAR_ID) {
			sb.WriteString(" **active**")
		}
		sb.WriteString("\n")
	}
	return text(strings.TrimRight(sb.String(), "\n")), nil
}

func (b *Bot) executeCommandVisibility(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	visibility, err := models.ParseVisibility(in.String("visibility"))
	if err != nil {
		return text("Unsupported visibility."), nil
	}
	active, err := b.services.credentialService.GetActive(ctx, in.UserID, p)
	if err != nil {
		return Reply{}, err
	}
	if active.Visibility == visibility {
		return text(fmt.Sprintf("Nothing changed, your active %s calendar is already **%s**.", p, visibility)), nil
	}
	if _, err := b.services.credentialService.SetVisibility(ctx, in.UserID, p, visibility); err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("Updated %s visibility to **%s** for `%s`.", p, visibility, active.CalendarID)), nil
}

func (b *Bot) executeCommandWhoami(ctx context.Context, in Input) (Reply, error) {
	summary, err := b.services.credentialService.ListSummary(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	lines := []string{"**Linked providers:**"}
	for _, p := range models.Providers {
		n := summary.Counts[p]
		active, ok := summary.Active[p]
		switch {
		case n == 0:
			lines = append(lines, fmt.Sprintf("• %s: not linked", p))
		case ok:
			lines = append(lines, fmt.Sprintf("• %s: %d calendar(s), active=`%s` (%s)", p, n, active.CalendarID, active.Visibility))
		default:
			lines = append(lines, fmt.Sprintf("• %s: %d calendar(s), **no active**", p, n))
		}
	}
	return text(strings.Join(lines, "\n")), nil
}

func (b *Bot) executeCommandEvents(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	count := clamp(in.Int("count", constant.DEFAULT_EVENTS_COUNT), 1, constant.MAX_EVENTS_COUNT)
	target := in.String("user")
	other := target != "" && target != in.UserID
	if !other {
		target = in.UserID
	}

	cred, client, err := b.activeCredential(ctx, target, p, other)
	if other && errors.Is(err, apperr.ErrNoActiveCredential) {
		return text(fmt.Sprintf("That user has no public %s calendar linked.", p.DisplayName())), nil
	}
	if err != nil {
		return Reply{}, err
	}
	events, err := client.ListUpcoming(ctx, cred.Tokens(), cred.CalendarID, count)
	if err != nil {
		return Reply{}, err
	}
	if len(events) == 0 {
		return text("No upcoming events."), nil
	}

	blocks := []string{fmt.Sprintf("**Upcoming events for <@%s>**", target)}
	for _, event := range events {
		blocks = append(blocks, b.eventLine(event))
	}
	return text(strings.Join(blocks, "\n\n")), nil
}

func (b *Bot) eventLine(event models.Event) string {
	line := fmt.Sprintf("**%s**\n%s", event.DisplayTitle(), b.formatRange(event))
	if event.Location != "" {
		line += " @ " + event.Location
	}
	if event.HTMLLink != "" {
		line += fmt.Sprintf("\n<%s>", event.HTMLLink)
	}
	return line
}

func (b *Bot) formatRange(event models.Event) string {
	if event.AllDay {
		return event.Start.Format(constant.SHORT_DATE_FORMAT) + " (all day)"
	}
	return event.Start.In(b.location).Format(constant.REMINDER_FORMAT) + " → " + event.End.In(b.location).Format(constant.REMINDER_FORMAT)
}

func (b *Bot) parseInputTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	for _, layout := range []string{constant.ISO_INPUT_FORMAT, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, b.location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (b *Bot) executeCommandCreate(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	start, okStart := b.parseInputTime(in.String("start_iso"))
	end, okEnd := b.parseInputTime(in.String("end_iso"))
	if !okStart || !okEnd {
		return text("Invalid ISO datetimes. Example: 2025-08-30T13:00"), nil
	}
	if end.Before(start) {
		return text("End must be after start."), nil
	}
	var recurrence models.Recurrence
	switch r := in.String("recurrence"); r {
	case "", "none":
	case string(models.RecurrenceDaily), string(models.RecurrenceWeekly):
		recurrence = models.Recurrence(r)
	default:
		return text("Recurrence must be none, daily or weekly."), nil
	}

	cred, client, err := b.activeCredential(ctx, in.UserID, p, false)
	if err != nil {
		return Reply{}, err
	}
	created, err := client.CreateEvent(ctx, cred.Tokens(), cred.CalendarID, models.EventInput{
		Title:       in.String("title"),
		Location:    in.String("location"),
		Description: in.String("description"),
		Start:       start,
		End:         end,
		Recurrence:  recurrence,
		TimeZone:    b.location.String(),
	})
	if err != nil {
		return Reply{}, err
	}
	ref := created.HTMLLink
	if ref == "" {
		ref = created.ID
	}
	return text("Created event: " + ref), nil
}

func (b *Bot) executeCommandDelete(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	eventID := strings.TrimSpace(in.String("event_id"))
	if eventID == "" {
		return text("event_id is required."), nil
	}
	cred, client, err := b.activeCredential(ctx, in.UserID, p, false)
	if err != nil {
		return Reply{}, err
	}
	if err := client.DeleteEvent(ctx, cred.Tokens(), cred.CalendarID, eventID); err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("Deleted event %s.", eventID)), nil
}

func (b *Bot) executeCommandReminders(ctx context.Context, in Input) (Reply, error) {
	p, bad := parseProviderInput(in)
	if bad != nil {
		return *bad, nil
	}
	lead := in.Int("lead_minutes", constant.DEFAULT_LEAD_MINUTES)
	if lead < 1 {
		return text("lead_minutes must be at least 1."), nil
	}
	settings := models.ReminderSettings{
		UserID:          in.UserID,
		Provider:        p,
		LeadMinutes:     lead,
		NotifyChannelID: in.String("channel"),
		NotifyRoleID:    in.String("role"),
		Enabled:         in.Bool("enabled", true),
	}
	if err := b.services.settingsService.SaveReminders(ctx, settings); err != nil {
		return Reply{}, err
	}
	state := "enabled"
	if !settings.Enabled {
		state = "disabled"
	}
	return text(fmt.Sprintf("Reminder settings saved: %s, %d minute(s) before %s events.", state, lead, p)), nil
}

func (b *Bot) executeCommandDigest(ctx context.Context, in Input) (Reply, error) {
	if strings.EqualFold(in.String("frequency"), "off") {
		n, err := b.services.settingsService.RemoveDigest(ctx, in.UserID, "")
		if err != nil {
			return Reply{}, err
		}
		if n == 0 {
			return text("You have no digest configured."), nil
		}
		return text("Digest turned off."), nil
	}

	frequency, err := models.ParseDigestFrequency(in.String("frequency"))
	if err != nil {
		return text("Frequency must be daily or weekly."), nil
	}
	if !in.Has("hour") || !in.Has("minute") {
		return text("Both hour and minute are required."), nil
	}
	hour, minute := in.Int("hour", 0), in.Int("minute", 0)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return text("Hour must be 0-23 and minute 0-59."), nil
	}
	if err := b.services.settingsService.SaveDigest(ctx, models.DigestSettings{
		UserID:    in.UserID,
		Frequency: frequency,
		Hour:      hour,
		Minute:    minute,
	}); err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("Digest saved: %s at %02d:%02d.", frequency, hour, minute)), nil
}

func (b *Bot) executeCommandRank(ctx context.Context, in Input) (Reply, error) {
	if in.GuildID == "" {
		return text("Levels are tracked per server. Run this in a server channel."), nil
	}
	target := in.String("user")
	if target == "" {
		target = in.UserID
	}
	progress, rank, err := b.services.levelService.Get(ctx, target, in.GuildID)
	if err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("📈 <@%s> is level **%d** with **%d/%d** XP (rank #%d).",
		target, progress.Level, progress.XP, models.XPForLevel(progress.Level), rank)), nil
}

func (b *Bot) executeCommandLeaderboard(ctx context.Context, in Input) (Reply, error) {
	if in.GuildID == "" {
		return text("Levels are tracked per server. Run this in a server channel."), nil
	}
	limit := clamp(in.Int("limit", constant.DEFAULT_LEADERBOARD), 1, constant.MAX_LEADERBOARD)
	entries, err := b.services.levelService.Leaderboard(ctx, in.GuildID, limit)
	if err != nil {
		return Reply{}, err
	}
	if len(entries) == 0 {
		return text("No leaderboard data yet. Start chatting to earn XP!"), nil
	}
	lines := []string{fmt.Sprintf("🏆 **Leaderboard: top %d**", len(entries))}
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> Level **%d**, XP **%d**", i+1, entry.UserID, entry.Level, entry.XP))
	}
	return text(strings.Join(lines, "\n")), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
