package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/helper"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
)

// CredentialService is the credential store. Tokens are encrypted on write and
// decrypted on read; callers only see plain credentials.
type CredentialService interface {
	Upsert(ctx context.Context, cred models.UpsertCredential) error
	SetActive(ctx context.Context, userID string, provider models.Provider, calendarID string) error
	GetActive(ctx context.Context, userID string, provider models.Provider) (models.Credential, error)
	GetPublicActive(ctx context.Context, userID string, provider models.Provider) (models.Credential, error)
	Get(ctx context.Context, userID string, provider models.Provider, calendarID string) (*models.Credential, error)
	List(ctx context.Context, userID string, provider models.Provider) ([]models.Credential, error)
	Unlink(ctx context.Context, userID string, provider models.Provider) (int64, error)
	SetVisibility(ctx context.Context, userID string, provider models.Provider, visibility models.Visibility) (int64, error)
	ListSummary(ctx context.Context, userID string) (models.LinkSummary, error)
	UpdateTokens(ctx context.Context, cred models.Credential) error
}

type credentialService struct {
	calendarRepo repository.CalendarRepository
	cipher       *helper.Cipher
	logger       *log.Logger
	now          func() time.Time
}

func NewCredentialService(calendarRepo repository.CalendarRepository, cipher *helper.Cipher, logger *log.Logger) CredentialService {
	return &credentialService{
		calendarRepo: calendarRepo,
		cipher:       cipher,
		logger:       logger,
		now:          time.Now,
	}
}

func (c *credentialService) Upsert(ctx context.Context, cred models.UpsertCredential) error {
	if cred.UserID == "" || cred.CalendarID == "" || cred.AccessToken == "" {
		return errors.New("invalid user id, calendar id or access token")
	}
	if cred.Visibility == "" {
		cred.Visibility = models.VisibilityPrivate
	}

	accessToken, err := c.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		c.logger.Error("error when encrypt access token", "err", err)
		return err
	}
	var refreshToken *string
	if cred.RefreshToken != "" {
		enc, err := c.cipher.Encrypt(cred.RefreshToken)
		if err != nil {
			c.logger.Error("error when encrypt refresh token", "err", err)
			return err
		}
		refreshToken = &enc
	}

	now := c.now()
	row := dbmodel.Calendars{
		DiscordUserID: cred.UserID,
		Provider:      string(cred.Provider),
		CalendarID:    cred.CalendarID,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresAt:     cred.ExpiresAt.UTC(),
		Visibility:    string(cred.Visibility),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cred.IsActive != nil {
		row.IsActive = *cred.IsActive
	}
	return c.calendarRepo.Upsert(ctx, row, cred.IsActive != nil)
}

func (c *credentialService) SetActive(ctx context.Context, userID string, provider models.Provider, calendarID string) error {
	return c.calendarRepo.SetActive(ctx, userID, string(provider), calendarID)
}

func (c *credentialService) GetActive(ctx context.Context, userID string, provider models.Provider) (models.Credential, error) {
	row, err := c.calendarRepo.FindActive(ctx, userID, string(provider))
	if err != nil {
		return models.Credential{}, err
	}
	if row == nil {
		return models.Credential{}, apperr.ErrNoActiveCredential
	}
	return c.toCredential(row)
}

func (c *credentialService) GetPublicActive(ctx context.Context, userID string, provider models.Provider) (models.Credential, error) {
	row, err := c.calendarRepo.FindPublicActive(ctx, userID, string(provider))
	if err != nil {
		return models.Credential{}, err
	}
	if row == nil {
		return models.Credential{}, apperr.ErrNoActiveCredential
	}
	return c.toCredential(row)
}

func (c *credentialService) Get(ctx context.Context, userID string, provider models.Provider, calendarID string) (*models.Credential, error) {
	row, err := c.calendarRepo.FindByIdentity(ctx, userID, string(provider), calendarID)
	if err != nil || row == nil {
		return nil, err
	}
	cred, err := c.toCredential(row)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *credentialService) List(ctx context.Context, userID string, provider models.Provider) ([]models.Credential, error) {
	rows, err := c.calendarRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds := make([]models.Credential, 0, len(rows))
	for i := range rows {
		if provider != "" && rows[i].Provider != string(provider) {
			continue
		}
		cred, err := c.toCredential(&rows[i])
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func (c *credentialService) Unlink(ctx context.Context, userID string, provider models.Provider) (int64, error) {
	return c.calendarRepo.DeleteByProvider(ctx, userID, string(provider))
}

func (c *credentialService) SetVisibility(ctx context.Context, userID string, provider models.Provider, visibility models.Visibility) (int64, error) {
	return c.calendarRepo.UpdateActiveVisibility(ctx, userID, string(provider), string(visibility))
}

func (c *credentialService) ListSummary(ctx context.Context, userID string) (models.LinkSummary, error) {
	summary := models.LinkSummary{
		Counts: map[models.Provider]int{},
		Active: map[models.Provider]models.Credential{},
	}
	counts, err := c.calendarRepo.CountByProvider(ctx, userID)
	if err != nil {
		return summary, err
	}
	for provider, n := range counts {
		summary.Counts[models.Provider(provider)] = n
	}
	for _, provider := range models.Providers {
		if summary.Counts[provider] == 0 {
			continue
		}
		row, err := c.calendarRepo.FindActive(ctx, userID, string(provider))
		if err != nil {
			return summary, err
		}
		if row == nil {
			continue
		}
		// summary never exposes tokens
		summary.Active[provider] = models.Credential{
			ID:         row.ID,
			UserID:     row.DiscordUserID,
			Provider:   provider,
			CalendarID: row.CalendarID,
			ExpiresAt:  row.ExpiresAt,
			Visibility: models.Visibility(row.Visibility),
			IsActive:   true,
		}
	}
	return summary, nil
}

func (c *credentialService) UpdateTokens(ctx context.Context, cred models.Credential) error {
	accessToken, err := c.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	var refreshToken *string
	if cred.RefreshToken != "" {
		enc, err := c.cipher.Encrypt(cred.RefreshToken)
		if err != nil {
			return err
		}
		refreshToken = &enc
	}
	if err := c.calendarRepo.UpdateTokens(ctx, cred.ID, accessToken, refreshToken, cred.ExpiresAt.UTC()); err != nil {
		c.logger.Error("error when persist refreshed tokens", "user_id", cred.UserID, "provider", cred.Provider, "err", err)
		return err
	}
	return nil
}

func (c *credentialService) toCredential(row *dbmodel.Calendars) (models.Credential, error) {
	accessToken, err := c.cipher.Decrypt(row.AccessToken)
	if err != nil {
		c.logger.Error("error when decrypt access token", "user_id", row.DiscordUserID, "err", err)
		return models.Credential{}, errors.Wrap(err, "failed to decrypt access token")
	}
	refreshToken := ""
	if row.RefreshToken != nil {
		refreshToken, err = c.cipher.Decrypt(*row.RefreshToken)
		if err != nil {
			c.logger.Error("error when decrypt refresh token", "user_id", row.DiscordUserID, "err", err)
			return models.Credential{}, errors.Wrap(err, "failed to decrypt refresh token")
		}
	}
	return models.Credential{
		ID:           row.ID,
		UserID:       row.DiscordUserID,
		Provider:     models.Provider(row.Provider),
		CalendarID:   row.CalendarID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    row.ExpiresAt,
		Visibility:   models.Visibility(row.Visibility),
		IsActive:     row.IsActive,
	}, nil
}
