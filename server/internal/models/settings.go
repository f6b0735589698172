package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type ReminderSettings struct {
	UserID          string
	Provider        Provider
	LeadMinutes     int
	NotifyChannelID string
	NotifyRoleID    string
	Enabled         bool
}

func (r ReminderSettings) Lead() time.Duration {
	return time.Duration(r.LeadMinutes) * time.Minute
}

type DigestFrequency string

const (
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

func ParseDigestFrequency(s string) (DigestFrequency, error) {
	switch f := DigestFrequency(strings.ToLower(strings.TrimSpace(s))); f {
	case DigestDaily, DigestWeekly:
		return f, nil
	}
	return "", errors.Errorf("unknown digest frequency %q", s)
}

type DigestSettings struct {
	UserID     string
	Frequency  DigestFrequency
	Hour       int
	Minute     int
	LastSentAt *time.Time
}

// ReminderMark is the idempotency key of one delivered notification.
type ReminderMark struct {
	UserID      string
	Provider    Provider
	CalendarID  string
	EventID     string
	WindowStart time.Time
}
