// Package oauthstate signs the OAuth state parameter so the callback can trust
// the Discord identity it carries. Each state is single-use.
package oauthstate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

const (
	MaxAge = 10 * time.Minute
	// TicketMaxAge bounds how long a link button from /link-calendar works.
	TicketMaxAge = 15 * time.Minute
	// allowed clock skew for timestamps in the future
	maxSkew = time.Minute
)

const (
	stateScope  = "state"
	ticketScope = "ticket"
)

var ErrInvalidTicket = errors.New("invalid link ticket")

type Payload struct {
	DiscordUserID string            `json:"discord_user_id"`
	Visibility    models.Visibility `json:"visibility"`
	Provider      models.Provider   `json:"provider"`
	GuildID       string            `json:"guild_id,omitempty"`
	ChannelID     string            `json:"channel_id,omitempty"`
	Nonce         string            `json:"nonce"`
	// unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

// NonceStore remembers claimed nonces for at least ttl.
type NonceStore interface {
	// Claim reports false when the nonce was already claimed.
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

type Codec struct {
	key    []byte
	nonces NonceStore
	now    func() time.Time
}

func NewCodec(key []byte, nonces NonceStore, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{key: key, nonces: nonces, now: now}
}

// Encode stamps the payload with a fresh nonce and timestamp and signs it.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.DiscordUserID == "" {
		return "", errors.New("missing discord user id")
	}
	p.Nonce = uuid.NewString()
	p.Timestamp = c.now().UnixMilli()

	return c.seal(stateScope, p)
}

// EncodeTicket signs the parameters of a link start URL. A ticket is not a
// state: it carries no nonce and only lets its holder begin the consent flow
// for the user it names.
func (c *Codec) EncodeTicket(p Payload) (string, error) {
	if p.DiscordUserID == "" {
		return "", errors.New("missing discord user id")
	}
	p.Nonce = ""
	p.Timestamp = c.now().UnixMilli()
	return c.seal(ticketScope, p)
}

// DecodeTicket verifies a ticket for provider. Every failure wraps
// ErrInvalidTicket.
func (c *Codec) DecodeTicket(ticket string, provider models.Provider) (Payload, error) {
	p, err := c.open(ticketScope, ticket)
	if err != nil {
		return Payload{}, errors.Wrap(ErrInvalidTicket, err.Error())
	}
	if p.DiscordUserID == "" {
		return Payload{}, errors.Wrap(ErrInvalidTicket, "incomplete payload")
	}
	age := c.now().Sub(time.UnixMilli(p.Timestamp))
	if age > TicketMaxAge || age < -maxSkew {
		return Payload{}, errors.Wrap(ErrInvalidTicket, "expired ticket")
	}
	if p.Provider != provider {
		return Payload{}, errors.Wrap(ErrInvalidTicket, "provider mismatch")
	}
	if p.Visibility == "" {
		p.Visibility = models.VisibilityPrivate
	}
	return p, nil
}

// Decode verifies and consumes a state for provider. Every failure wraps
// ErrInvalidCallbackState.
func (c *Codec) Decode(ctx context.Context, state string, provider models.Provider) (Payload, error) {
	p, err := c.open(stateScope, state)
	if err != nil {
		return Payload{}, invalid(err.Error())
	}
	if p.DiscordUserID == "" || p.Nonce == "" {
		return Payload{}, invalid("incomplete payload")
	}

	age := c.now().Sub(time.UnixMilli(p.Timestamp))
	if age > MaxAge || age < -maxSkew {
		return Payload{}, invalid("expired state")
	}
	if p.Provider != provider {
		return Payload{}, invalid("provider mismatch")
	}

	claimed, err := c.nonces.Claim(ctx, p.Nonce, MaxAge+maxSkew)
	if err != nil {
		return Payload{}, errors.Wrap(err, "failed to claim state nonce")
	}
	if !claimed {
		return Payload{}, invalid("state already used")
	}
	if p.Visibility == "" {
		p.Visibility = models.VisibilityPrivate
	}
	return p, nil
}

func (c *Codec) seal(scope string, p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal state")
	}
	body := base64.RawURLEncoding.EncodeToString(data)
	return body + "." + c.sign(scope, body), nil
}

func (c *Codec) open(scope, token string) (Payload, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return Payload{}, errors.New("malformed")
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(scope, body))) {
		return Payload{}, errors.New("bad signature")
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, errors.New("bad encoding")
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, errors.New("bad payload")
	}
	return p, nil
}

// sign mixes scope into the MAC so a ticket never verifies as a state.
func (c *Codec) sign(scope, body string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(scope))
	mac.Write([]byte{0})
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func invalid(reason string) error {
	return errors.Wrap(apperr.ErrInvalidCallbackState, reason)
}
