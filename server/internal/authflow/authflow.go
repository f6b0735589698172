// Package authflow runs the OAuth linking flow: consent URL, callback,
// code exchange, credential upsert and first-link activation.
package authflow

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/oauthstate"
	"github.com/sshindanai/discord-calendar-bot/server/internal/provider"
	"github.com/sshindanai/discord-calendar-bot/server/internal/service"
)

type StartRequest struct {
	UserID     string
	Provider   models.Provider
	Visibility models.Visibility
	GuildID    string
	ChannelID  string
}

type Result struct {
	UserID    string
	Provider  models.Provider
	GuildID   string
	ChannelID string
	// Activated is set when this link became the active calendar.
	Activated bool
}

type Orchestrator struct {
	registry    *provider.Registry
	codec       *oauthstate.Codec
	credentials service.CredentialService
	logger      *log.Logger
}

func NewOrchestrator(registry *provider.Registry, codec *oauthstate.Codec, credentials service.CredentialService, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		codec:       codec,
		credentials: credentials,
		logger:      logger,
	}
}

// Start returns the consent URL for req.
func (o *Orchestrator) Start(req StartRequest) (string, error) {
	p, err := o.registry.Get(req.Provider)
	if err != nil {
		return "", err
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPrivate
	}
	state, err := o.codec.Encode(oauthstate.Payload{
		DiscordUserID: req.UserID,
		Visibility:    req.Visibility,
		Provider:      req.Provider,
		GuildID:       req.GuildID,
		ChannelID:     req.ChannelID,
	})
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

func (o *Orchestrator) Callback(ctx context.Context, name models.Provider, code, state string) (Result, error) {
	p, err := o.registry.Get(name)
	if err != nil {
		return Result{}, err
	}

	payload, err := o.codec.Decode(ctx, state, name)
	if err != nil {
		return Result{}, err
	}
	if code == "" {
		return Result{}, apperr.ErrMissingAuthorizationCode
	}

	tokens, err := p.ExchangeCode(ctx, code)
	if err != nil {
		o.logger.Error("failed to exchange authorization code", "provider", name, "user_id", payload.DiscordUserID, "err", err)
		return Result{}, err
	}

	if err := o.credentials.Upsert(ctx, models.UpsertCredential{
		UserID:       payload.DiscordUserID,
		Provider:     name,
		CalendarID:   constant.PRIMARY_CALENDAR_ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Visibility:   payload.Visibility,
	}); err != nil {
		return Result{}, errors.Wrap(err, "failed to store credential")
	}

	result := Result{
		UserID:    payload.DiscordUserID,
		Provider:  name,
		GuildID:   payload.GuildID,
		ChannelID: payload.ChannelID,
	}

	// first link for this provider becomes active
	if _, err := o.credentials.GetActive(ctx, payload.DiscordUserID, name); err != nil {
		if !errors.Is(err, apperr.ErrNoActiveCredential) {
			return result, err
		}
		if err := o.credentials.SetActive(ctx, payload.DiscordUserID, name, constant.PRIMARY_CALENDAR_ID); err != nil {
			return result, errors.Wrap(err, "failed to activate calendar")
		}
		result.Activated = true
	}

	o.logger.Info("calendar linked", "provider", name, "user_id", payload.DiscordUserID, "activated", result.Activated)
	return result, nil
}
