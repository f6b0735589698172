package model

import (
	"fmt"
	"time"
)

type Event struct {
	ID          string
	ICalUID     string
	Title       string
	Location    string
	Description string
	HTMLLink    string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// DedupeID identifies the event for reminder marks when the provider id is missing.
func (e Event) DedupeID() string {
	if e.ID != "" {
		return e.ID
	}
	if e.ICalUID != "" {
		return e.ICalUID
	}
	return fmt.Sprintf("%s-%s", e.Title, e.Start.UTC().Format(time.RFC3339))
}

func (e Event) DisplayTitle() string {
	if e.Title == "" {
		return "(no title)"
	}
	return e.Title
}

type Recurrence string

const (
	RecurrenceNone   Recurrence = ""
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

type EventInput struct {
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
	Recurrence  Recurrence
	// IANA zone name sent alongside recurring events.
	TimeZone string
}

type CalendarInfo struct {
	ID      string
	Name    string
	Primary bool
	Role    string
}
