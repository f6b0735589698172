package bot

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/helper"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/authflow"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/oauthstate"
	"github.com/sshindanai/discord-calendar-bot/server/internal/provider"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
	"github.com/sshindanai/discord-calendar-bot/server/logger"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	events    []models.Event
	calendars []models.CalendarInfo
	created   []models.EventInput
	deleted   []string
}

func (f *fakeProvider) Name() models.Provider { return models.ProviderGoogle }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://consent.test/auth?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (models.Tokens, error) {
	if code == "bad" {
		return models.Tokens{}, &apperr.AuthExchangeError{Provider: "google", Err: errors.New("invalid_grant")}
	}
	return models.Tokens{AccessToken: "access-" + code, RefreshToken: "refresh", ExpiresAt: testNow.Add(time.Hour)}, nil
}

func (f *fakeProvider) RefreshToken(_ context.Context, _ string) (models.Tokens, error) {
	return models.Tokens{AccessToken: "fresh", ExpiresAt: testNow.Add(time.Hour)}, nil
}

func (f *fakeProvider) ListUpcoming(_ context.Context, _ models.Tokens, _ string, max int) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) > max {
		return f.events[:max], nil
	}
	return f.events, nil
}

func (f *fakeProvider) GetEvent(_ context.Context, _ models.Tokens, _, eventID string) (models.Event, error) {
	for _, e := range f.events {
		if e.ID == eventID {
			return e, nil
		}
	}
	return models.Event{}, apperr.ErrEventNotFound
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ models.Tokens, _ string, in models.EventInput) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return models.Event{ID: "evt-new", HTMLLink: "https://cal.test/evt-new", Title: in.Title, Start: in.Start, End: in.End}, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ models.Tokens, _, eventID string) error {
	if eventID == "missing" {
		return apperr.ErrEventNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeProvider) ListCalendars(_ context.Context, _ models.Tokens, max int) ([]models.CalendarInfo, error) {
	if len(f.calendars) > max {
		return f.calendars[:max], nil
	}
	return f.calendars, nil
}

type delivery struct {
	target string
	msg    chat.Message
}

type fakeSender struct {
	mu       sync.Mutex
	dms      []delivery
	channels []delivery
	failDM   map[string]bool
}

func (f *fakeSender) SendDM(_ context.Context, userID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDM[userID] {
		return errors.New("cannot send messages to this user")
	}
	f.dms = append(f.dms, delivery{target: userID, msg: msg})
	return nil
}

func (f *fakeSender) SendChannel(_ context.Context, channelID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, delivery{target: channelID, msg: msg})
	return nil
}

type testBot struct {
	*Bot
	provider *fakeProvider
	sender   *fakeSender
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	db, err := repository.Open(repository.DriverSQLite, filepath.Join(t.TempDir(), "calbot.db"), nil)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = repository.Close(db) })

	cipher, err := helper.NewCipher("secret")
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	google := &fakeProvider{}
	sender := &fakeSender{failDM: map[string]bool{}}
	services := newInternalService(db, cipher, logger.Discard())
	registry := provider.NewRegistry(clock, google)
	codec := oauthstate.NewCodec([]byte("state-key"), oauthstate.NewMemoryNonceStore(clock), clock)

	b := &Bot{
		logger:      logger.Discard(),
		services:    services,
		registry:    registry,
		auth:        authflow.NewOrchestrator(registry, codec, services.credentialService, logger.Discard()),
		codec:       codec,
		sender:      sender,
		authBaseURL: "http://auth.test/",
		location:    time.UTC,
		now:         clock,
		xpCooldown:  newCooldownCache(constant.XP_COOLDOWN, clock),
		rollXP:      func() int { return 10 },
	}
	b.initSchedulers(2, time.Hour)
	b.registerCommands()
	b.registerRouter()
	return &testBot{Bot: b, provider: google, sender: sender}
}

func (tb *testBot) link(t *testing.T, userID string, visibility models.Visibility) {
	t.Helper()
	ctx := context.Background()
	credentials := tb.services.credentialService
	require.NoError(t, credentials.Upsert(ctx, models.UpsertCredential{
		UserID:       userID,
		Provider:     models.ProviderGoogle,
		CalendarID:   constant.PRIMARY_CALENDAR_ID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(time.Hour),
		Visibility:   visibility,
	}))
	require.NoError(t, credentials.SetActive(ctx, userID, models.ProviderGoogle, constant.PRIMARY_CALENDAR_ID))
}

func (tb *testBot) run(name string, in Input) Reply {
	if in.UserID == "" {
		in.UserID = "u1"
	}
	if in.Options == nil {
		in.Options = map[string]interface{}{}
	}
	return tb.ExecuteCommand(context.Background(), name, in)
}

func opts(kv ...interface{}) map[string]interface{} {
	m := map[string]interface{}{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}
