// Package provider talks to the calendar providers: OAuth code exchange and
// refresh, plus the event operations the bot needs. Event calls authenticate
// with a static token and never refresh on their own; callers refresh through
// Registry.RefreshIfNeeded and persist the result first.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"golang.org/x/oauth2"
)

type Provider interface {
	Name() models.Provider
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (models.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error)

	ListUpcoming(ctx context.Context, tokens models.Tokens, calendarID string, max int) ([]models.Event, error)
	GetEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) (models.Event, error)
	CreateEvent(ctx context.Context, tokens models.Tokens, calendarID string, in models.EventInput) (models.Event, error)
	DeleteEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) error
	ListCalendars(ctx context.Context, tokens models.Tokens, max int) ([]models.CalendarInfo, error)
}

// OAuthConfig is the client registration of one provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// oauthClient holds the token endpoint logic shared by both providers.
type oauthClient struct {
	name       models.Provider
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

func (o *oauthClient) context(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func (o *oauthClient) ExchangeCode(ctx context.Context, code string) (models.Tokens, error) {
	token, err := o.config.Exchange(o.context(ctx), code)
	if err != nil {
		return models.Tokens{}, &apperr.AuthExchangeError{Provider: string(o.name), Err: err}
	}
	return o.toTokens(token), nil
}

func (o *oauthClient) RefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error) {
	if refreshToken == "" {
		return models.Tokens{}, &apperr.AuthRefreshError{Provider: string(o.name), Err: errors.New("no refresh token")}
	}
	// an already expired token forces exactly one refresh request
	source := o.config.TokenSource(o.context(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	token, err := source.Token()
	if err != nil {
		return models.Tokens{}, &apperr.AuthRefreshError{Provider: string(o.name), Err: err}
	}
	return o.toTokens(token), nil
}

func (o *oauthClient) toTokens(token *oauth2.Token) models.Tokens {
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = o.now().Add(constant.DEFAULT_TOKEN_TTL)
	}
	return models.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

// authorizedClient returns an HTTP client that sends the stored access token as-is.
func (o *oauthClient) authorizedClient(ctx context.Context, tokens models.Tokens) *http.Client {
	return oauth2.NewClient(o.context(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
	}))
}

// upcoming drops events that already started and keeps at most max.
func upcoming(events []models.Event, now time.Time, max int) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Start.Before(now) {
			continue
		}
		out = append(out, e)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
