package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
)

type RSVPService interface {
	Set(ctx context.Context, rsvp models.RSVP) error
	// Summary counts across every guild when guildID is empty.
	Summary(ctx context.Context, provider models.Provider, calendarID, eventID, guildID string) (models.RSVPSummary, error)
	// Target stores the event behind an RSVP button and returns its key. The
	// key is derived from the event, so repeated invites share buttons.
	Target(ctx context.Context, provider models.Provider, calendarID, eventID, guildID string) (models.RSVPTarget, error)
	// Resolve returns ErrRSVPTargetNotFound for unknown keys.
	Resolve(ctx context.Context, key string) (models.RSVPTarget, error)
}

var ErrRSVPTargetNotFound = errors.New("rsvp target not found")

// rsvpKeySpace namespaces the name-based uuids used as button keys.
var rsvpKeySpace = uuid.MustParse("6f0c5d2e-8a43-4c1b-9d7e-2b1f3a9c4e55")

type rsvpService struct {
	rsvpRepo repository.RSVPRepository
	now      func() time.Time
}

func NewRSVPService(rsvpRepo repository.RSVPRepository) RSVPService {
	return &rsvpService{
		rsvpRepo: rsvpRepo,
		now:      time.Now,
	}
}

func (r *rsvpService) Set(ctx context.Context, rsvp models.RSVP) error {
	if rsvp.Status != models.RSVPYes && rsvp.Status != models.RSVPNo {
		return errors.Errorf("invalid rsvp status %q", rsvp.Status)
	}
	if rsvp.UpdatedAt.IsZero() {
		rsvp.UpdatedAt = r.now()
	}
	return r.rsvpRepo.Upsert(ctx, dbmodel.Rsvps{
		GuildID:       rsvp.GuildID,
		EventProvider: string(rsvp.Provider),
		CalendarID:    rsvp.CalendarID,
		EventID:       rsvp.EventID,
		DiscordUserID: rsvp.UserID,
		Status:        string(rsvp.Status),
		UpdatedAt:     rsvp.UpdatedAt.UTC(),
	})
}

func (r *rsvpService) Summary(ctx context.Context, provider models.Provider, calendarID, eventID, guildID string) (models.RSVPSummary, error) {
	counts, err := r.rsvpRepo.CountByStatus(ctx, string(provider), calendarID, eventID, guildID)
	if err != nil {
		return models.RSVPSummary{}, err
	}
	return models.RSVPSummary{
		Yes: counts[string(models.RSVPYes)],
		No:  counts[string(models.RSVPNo)],
	}, nil
}

func (r *rsvpService) Target(ctx context.Context, provider models.Provider, calendarID, eventID, guildID string) (models.RSVPTarget, error) {
	name := strings.Join([]string{string(provider), calendarID, eventID, guildID}, "\x00")
	target := models.RSVPTarget{
		Key:        uuid.NewSHA1(rsvpKeySpace, []byte(name)).String(),
		Provider:   provider,
		CalendarID: calendarID,
		EventID:    eventID,
		GuildID:    guildID,
	}
	if err := r.rsvpRepo.SaveTarget(ctx, dbmodel.RsvpTargets{
		Key:           target.Key,
		EventProvider: string(provider),
		CalendarID:    calendarID,
		EventID:       eventID,
		GuildID:       guildID,
		CreatedAt:     r.now().UTC(),
	}); err != nil {
		return models.RSVPTarget{}, err
	}
	return target, nil
}

func (r *rsvpService) Resolve(ctx context.Context, key string) (models.RSVPTarget, error) {
	row, err := r.rsvpRepo.FindTarget(ctx, key)
	if err != nil {
		return models.RSVPTarget{}, err
	}
	if row == nil {
		return models.RSVPTarget{}, ErrRSVPTargetNotFound
	}
	return models.RSVPTarget{
		Key:        row.Key,
		Provider:   models.Provider(row.EventProvider),
		CalendarID: row.CalendarID,
		EventID:    row.EventID,
		GuildID:    row.GuildID,
	}, nil
}
