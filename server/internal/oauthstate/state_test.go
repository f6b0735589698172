package oauthstate

import (
	"context"
	"encoding/base64"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCodec() (*Codec, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewCodec([]byte("0123456789abcdef0123456789abcdef"), NewMemoryNonceStore(c.now), c.now), c
}

func TestRoundTrip(t *testing.T) {
	codec, _ := newCodec()
	state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderMicrosoft, GuildID: "g1"})
	require.NoError(t, err)

	p, err := codec.Decode(context.Background(), state, models.ProviderMicrosoft)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.DiscordUserID)
	assert.Equal(t, "g1", p.GuildID)
	assert.Equal(t, models.VisibilityPrivate, p.Visibility)
	assert.NotEmpty(t, p.Nonce)
}

func TestDecodeRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("reused", func(t *testing.T) {
		codec, _ := newCodec()
		state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle})
		require.NoError(t, err)
		_, err = codec.Decode(ctx, state, models.ProviderGoogle)
		require.NoError(t, err)
		_, err = codec.Decode(ctx, state, models.ProviderGoogle)
		assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	})

	t.Run("expired", func(t *testing.T) {
		codec, c := newCodec()
		state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle})
		require.NoError(t, err)
		c.t = c.t.Add(MaxAge + time.Second)
		_, err = codec.Decode(ctx, state, models.ProviderGoogle)
		assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		codec, _ := newCodec()
		state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle})
		require.NoError(t, err)
		_, err = codec.Decode(ctx, state, models.ProviderMicrosoft)
		assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	})

	t.Run("forged user", func(t *testing.T) {
		codec, _ := newCodec()
		state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle})
		require.NoError(t, err)
		body, sig, _ := strings.Cut(state, ".")
		data, err := base64.RawURLEncoding.DecodeString(body)
		require.NoError(t, err)
		forged := base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(data), "u1", "u2", 1)))
		_, err = codec.Decode(ctx, forged+"."+sig, models.ProviderGoogle)
		assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	})

	t.Run("unsigned legacy state", func(t *testing.T) {
		codec, _ := newCodec()
		legacy := base64.RawURLEncoding.EncodeToString([]byte(`{"discord_user_id":"u1","visibility":"private"}`))
		_, err := codec.Decode(ctx, legacy, models.ProviderGoogle)
		assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	})
}

func TestTicket(t *testing.T) {
	codec, c := newCodec()
	ticket, err := codec.EncodeTicket(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle, Visibility: models.VisibilityPublic})
	require.NoError(t, err)

	p, err := codec.DecodeTicket(ticket, models.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.DiscordUserID)
	assert.Equal(t, models.VisibilityPublic, p.Visibility)

	// reusable until it expires
	_, err = codec.DecodeTicket(ticket, models.ProviderGoogle)
	require.NoError(t, err)

	_, err = codec.DecodeTicket(ticket, models.ProviderMicrosoft)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	// a ticket is never accepted as a callback state and vice versa
	_, err = codec.Decode(context.Background(), ticket, models.ProviderGoogle)
	assert.ErrorIs(t, err, apperr.ErrInvalidCallbackState)
	state, err := codec.Encode(Payload{DiscordUserID: "u1", Provider: models.ProviderGoogle})
	require.NoError(t, err)
	_, err = codec.DecodeTicket(state, models.ProviderGoogle)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = codec.DecodeTicket("", models.ProviderGoogle)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	c.t = c.t.Add(TicketMaxAge + time.Second)
	_, err = codec.DecodeTicket(ticket, models.ProviderGoogle)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestMemoryNonceStoreExpires(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	store := NewMemoryNonceStore(c.now)

	ok, err := store.Claim(context.Background(), "n", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.Claim(context.Background(), "n", time.Minute)
	assert.False(t, ok)

	c.t = c.t.Add(time.Minute)
	ok, _ = store.Claim(context.Background(), "n", time.Minute)
	assert.True(t, ok)
}

func TestRedisNonceStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisNonceStore(client)
	nonce := "test-" + time.Now().Format(time.RFC3339Nano)
	ok, err := store.Claim(ctx, nonce, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Claim(ctx, nonce, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
