// Package bot binds the calendar services to Discord and serves the OAuth
// callback endpoints.
//
// Lifecycle:
//
//	New --> Run (HTTP server, Discord session, cron) --> ctx cancelled --> Close
//	Slash command --> onInteractionCreate --> ExecuteCommand --> Reply
package bot

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sshindanai/discord-calendar-bot/server/config"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/helper"
	"github.com/sshindanai/discord-calendar-bot/server/internal/authflow"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/oauthstate"
	"github.com/sshindanai/discord-calendar-bot/server/internal/provider"
	"github.com/sshindanai/discord-calendar-bot/server/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

type Bot struct {
	logger   *log.Logger
	services *InternalService
	registry *provider.Registry
	auth     *authflow.Orchestrator
	codec    *oauthstate.Codec
	sender   chat.Sender
	router   *mux.Router
	cron     *cron.Cron

	reminders *scheduler.ReminderScheduler
	digests   *scheduler.DigestScheduler
	pruner    *scheduler.Pruner

	session  *discordgo.Session
	appID    string
	guildID  string
	httpAddr string

	authBaseURL string
	location    *time.Location
	now         func() time.Time

	commands     map[string]Command
	commandOrder []string
	xpCooldown   *cooldownCache
	rollXP       func() int
}

func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Bot, error) {
	if err := cfg.CheckEnv(); err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	services, err := NewInternalService(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("internal service was created", "driver", cfg.DBDriver)

	providers := []provider.Provider{
		provider.NewGoogle(provider.OAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirect(),
		}),
	}
	if cfg.MicrosoftEnabled() {
		providers = append(providers, provider.NewMicrosoft(provider.OAuthConfig{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			RedirectURL:  cfg.MicrosoftRedirect(),
		}, cfg.MicrosoftTenant))
	}
	registry := provider.NewRegistry(time.Now, providers...)

	var nonces oauthstate.NonceStore = oauthstate.NewMemoryNonceStore(time.Now)
	if cfg.RedisURL != "" {
		client, err := oauthstate.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = services.Close()
			return nil, err
		}
		nonces = oauthstate.NewRedisNonceStore(client)
		logger.Info("oauth state nonces stored in redis")
	}
	stateKey, err := helper.StateKey(cfg.EncryptionSecret)
	if err != nil {
		_ = services.Close()
		return nil, err
	}
	codec := oauthstate.NewCodec(stateKey, nonces, time.Now)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		_ = services.Close()
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	b := &Bot{
		logger:      logger,
		services:    services,
		registry:    registry,
		auth:        authflow.NewOrchestrator(registry, codec, services.credentialService, logger),
		codec:       codec,
		sender:      &discordSender{session: session},
		session:     session,
		appID:       cfg.DiscordAppID,
		guildID:     cfg.DiscordGuildID,
		httpAddr:    cfg.HTTPAddr,
		authBaseURL: cfg.AuthBaseURL,
		location:    location,
		now:         time.Now,
		xpCooldown:  newCooldownCache(constant.XP_COOLDOWN, time.Now),
		rollXP:      randomXP,
	}
	b.initSchedulers(cfg.MaxGoroutines, cfg.MarkRetention)
	b.registerCommands()
	b.registerRouter()
	return b, nil
}

func (b *Bot) initSchedulers(maxGoroutines int, retention time.Duration) {
	deps := scheduler.Deps{
		Credentials:   b.services.credentialService,
		Settings:      b.services.settingsService,
		Marks:         b.services.reminderMarkService,
		Registry:      b.registry,
		Sender:        b.sender,
		Logger:        b.logger,
		Location:      b.location,
		Now:           b.now,
		MaxGoroutines: maxGoroutines,
	}
	b.reminders = scheduler.NewReminderScheduler(deps)
	b.digests = scheduler.NewDigestScheduler(deps)
	b.pruner = scheduler.NewPruner(deps, retention)
}

// Run serves until ctx is cancelled or one of the parts fails.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.serveHTTP(ctx) })
	g.Go(func() error { return b.runDiscord(ctx) })
	g.Go(func() error { return b.runCron(ctx) })
	return g.Wait()
}

func (b *Bot) Close() error {
	b.logger.Info("closing database")
	if err := b.services.Close(); err != nil {
		b.logger.Error("failed to close database", "err", err)
		return err
	}
	return nil
}

func (b *Bot) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              b.httpAddr,
		Handler:           b,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("oauth server listening", "addr", b.httpAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "oauth server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (b *Bot) runDiscord(ctx context.Context) error {
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageCreate)
	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	defer b.session.Close()

	if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, b.guildID, b.applicationCommands()); err != nil {
		return errors.Wrap(err, "failed to register commands")
	}
	b.logger.Info("discord commands were registered", "count", len(b.commandOrder), "guild_id", b.guildID)

	<-ctx.Done()
	return nil
}

// activeCredential loads the active calendar of userID, refreshing and
// persisting its tokens before they are used.
func (b *Bot) activeCredential(ctx context.Context, userID string, p models.Provider, public bool) (models.Credential, provider.Provider, error) {
	client, err := b.registry.Get(p)
	if err != nil {
		return models.Credential{}, nil, err
	}
	var cred models.Credential
	if public {
		cred, err = b.services.credentialService.GetPublicActive(ctx, userID, p)
	} else {
		cred, err = b.services.credentialService.GetActive(ctx, userID, p)
	}
	if err != nil {
		return cred, nil, err
	}
	cred, refreshed, err := b.registry.RefreshIfNeeded(ctx, cred)
	if err != nil {
		return cred, nil, err
	}
	if refreshed {
		if err := b.services.credentialService.UpdateTokens(ctx, cred); err != nil {
			return cred, nil, errors.Wrap(err, "failed to persist refreshed tokens")
		}
	}
	return cred, client, nil
}

func randomXP() int {
	return constant.XP_MIN + rand.Intn(constant.XP_MAX-constant.XP_MIN+1)
}
