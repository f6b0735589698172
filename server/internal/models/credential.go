package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

var Providers = []Provider{ProviderGoogle, ProviderMicrosoft}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderMicrosoft:
		return p, nil
	case "":
		return ProviderGoogle, nil
	}
	return "", errors.Errorf("unknown provider %q", s)
}

// DisplayName is the provider name used in user-facing text.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderMicrosoft:
		return "Microsoft"
	default:
		return "Google"
	}
}

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case VisibilityPrivate, VisibilityPublic:
		return v, nil
	case "":
		return VisibilityPrivate, nil
	}
	return "", errors.Errorf("unknown visibility %q", s)
}

// Tokens is the token set returned by a provider.
// An empty RefreshToken means the provider did not issue one.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Credential is one linked calendar grant, with tokens in plain text.
type Credential struct {
	ID           int64
	UserID       string
	Provider     Provider
	CalendarID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Visibility   Visibility
	IsActive     bool
}

func (c Credential) Tokens() Tokens {
	return Tokens{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}

// UpsertCredential carries the fields written by an upsert. A nil IsActive keeps
// the stored flag on conflict and inserts false for a new row.
type UpsertCredential struct {
	UserID       string
	Provider     Provider
	CalendarID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Visibility   Visibility
	IsActive     *bool
}

type LinkSummary struct {
	Counts map[Provider]int
	Active map[Provider]Credential
}
