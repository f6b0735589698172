package provider

import (
	"context"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

// Registry selects a provider by its tag and owns the refresh policy.
type Registry struct {
	providers map[models.Provider]Provider
	now       func() time.Time
}

func NewRegistry(now func() time.Time, providers ...Provider) *Registry {
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		providers: make(map[models.Provider]Provider, len(providers)),
		now:       now,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name models.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperr.ErrUnknownProvider
	}
	return p, nil
}

// RefreshIfNeeded returns cred with fresh tokens when it expires within the
// margin. The bool reports whether a refresh happened; the caller must persist
// the result before using it.
func (r *Registry) RefreshIfNeeded(ctx context.Context, cred models.Credential) (models.Credential, bool, error) {
	if cred.RefreshToken == "" {
		return cred, false, nil
	}
	if r.now().Before(cred.ExpiresAt.Add(-constant.REFRESH_MARGIN)) {
		return cred, false, nil
	}

	p, err := r.Get(cred.Provider)
	if err != nil {
		return cred, false, err
	}
	tokens, err := p.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return cred, false, err
	}

	refreshed := cred
	refreshed.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	refreshed.ExpiresAt = tokens.ExpiresAt
	if refreshed.ExpiresAt.IsZero() {
		refreshed.ExpiresAt = r.now().Add(constant.DEFAULT_TOKEN_TTL)
	}
	return refreshed, true, nil
}
