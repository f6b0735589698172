package constant

import "time"

const (
	// Scopes
	GOOGLE_CALENDAR_SCOPE    = "https://www.googleapis.com/auth/calendar"
	GOOGLE_OPENID_SCOPE      = "openid"
	GOOGLE_EMAIL_SCOPE       = "email"
	MICROSOFT_DEFAULT_TENANT = "common"

	// Graph
	GRAPH_API_URL = "https://graph.microsoft.com/v1.0"

	// Date format
	DATE_FORMAT        = "Monday, January 2, 2006"
	SHORT_DATE_FORMAT  = "Mon, Jan 2"
	REMINDER_FORMAT    = "Jan 2, 15:04"
	ISO_INPUT_FORMAT   = "2006-01-02T15:04"
	GRAPH_TIME_FORMAT  = "2006-01-02T15:04:05.9999999"
	GRAPH_DATE_FORMAT  = "2006-01-02"
	DIGEST_TIME_FORMAT = "15:04"

	// Calendar ID
	PRIMARY_CALENDAR_ID = "primary"
	DIGEST_CALENDAR_ID  = "digest"

	// Command
	LINK_CMD        = "link-calendar"
	UNLINK_CMD      = "unlink-calendar"
	SET_CMD         = "set-calendar"
	LIST_CMD        = "list-calendars"
	VISIBILITY_CMD  = "calendar-visibility"
	WHOAMI_CMD      = "whoami"
	EVENTS_CMD      = "events"
	CREATE_CMD      = "create-event"
	DELETE_CMD      = "delete-event"
	INVITE_CMD      = "invite-event"
	REMINDERS_CMD   = "reminders"
	DIGEST_CMD      = "digest"
	RANK_CMD        = "rank"
	LEADERBOARD_CMD = "leaderboard"

	// RSVP button
	RSVP_PREFIX = "rsvp"

	// Error message
	ERR_LINK_FIRST    = "No active %s calendar found. Use `/link-calendar` or `/set-calendar` first."
	ERR_RELINK        = "Your %s link has expired or was revoked. Please run `/link-calendar` again."
	ERR_WIDER_SCOPE   = "The bot is missing calendar permissions. Re-link with `/link-calendar` and grant calendar access."
	ERR_GENERIC       = "Something went wrong talking to your calendar. Please try again later."
	ERR_OAUTH         = "OAuth error. Check bot logs."
	ERR_INVALID_STATE = "This link is invalid or expired. Please run `/link-calendar` again."
	ERR_MISSING_CODE  = "Missing code or state."
)

const (
	// Token refresh safety margin
	REFRESH_MARGIN = 60 * time.Second
	// Used when the provider omits expires_in
	DEFAULT_TOKEN_TTL = 55 * time.Minute
	// Reminder window bucket
	REMINDER_BUCKET = time.Minute

	DEFAULT_LEAD_MINUTES   = 15
	REMINDER_FETCH_LIMIT   = 10
	DIGEST_FETCH_LIMIT     = 25
	DEFAULT_EVENTS_COUNT   = 5
	MAX_EVENTS_COUNT       = 20
	DEFAULT_CALENDAR_COUNT = 10
	MAX_CALENDAR_COUNT     = 25
	DEFAULT_LEADERBOARD    = 10
	MAX_LEADERBOARD        = 25
	MAX_SILENT_INVITEES    = 10
	MAX_GOROUTINES         = 20

	XP_COOLDOWN = 60 * time.Second
	XP_MIN      = 5
	XP_MAX      = 15
)
