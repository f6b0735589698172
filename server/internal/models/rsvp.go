package model

import "time"

type RSVPStatus string

const (
	RSVPYes RSVPStatus = "yes"
	RSVPNo  RSVPStatus = "no"
)

type RSVP struct {
	GuildID    string
	Provider   Provider
	CalendarID string
	EventID    string
	UserID     string
	Status     RSVPStatus
	UpdatedAt  time.Time
}

type RSVPSummary struct {
	Yes int
	No  int
}

// RSVPTarget is the event an RSVP button stands for. Key is the short id
// carried in the button.
type RSVPTarget struct {
	Key        string
	Provider   Provider
	CalendarID string
	EventID    string
	GuildID    string
}
