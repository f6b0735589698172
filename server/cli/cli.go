// Package cli holds the calbot subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/sshindanai/discord-calendar-bot/server/bot"
	"github.com/sshindanai/discord-calendar-bot/server/config"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
	"github.com/sshindanai/discord-calendar-bot/server/internal/scheduler"
	"github.com/sshindanai/discord-calendar-bot/server/internal/service"
)

type Context struct {
	Config *config.Config
	Logger *log.Logger
}

type ServeCmd struct{}

func (c *ServeCmd) Run(ctx *Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx.Logger.Info("calbot starting...")
	b, err := bot.New(runCtx, ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Run(runCtx); err != nil {
		return err
	}
	ctx.Logger.Info("calbot stopped")
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *Context) error {
	if err := ctx.Config.ValidateStorage(); err != nil {
		return err
	}
	db, err := repository.Open(ctx.Config.DBDriver, ctx.Config.DatabaseURL, ctx.Logger)
	if err != nil {
		return err
	}
	defer repository.Close(db)

	if err := repository.Migrate(db); err != nil {
		return err
	}
	ctx.Logger.Info("database schema is up to date", "driver", ctx.Config.DBDriver)
	return nil
}

type PruneCmd struct{}

func (c *PruneCmd) Run(ctx *Context) error {
	if err := ctx.Config.ValidateStorage(); err != nil {
		return err
	}
	db, err := repository.Open(ctx.Config.DBDriver, ctx.Config.DatabaseURL, ctx.Logger)
	if err != nil {
		return err
	}
	defer repository.Close(db)

	pruner := scheduler.NewPruner(scheduler.Deps{
		Marks:  service.NewReminderMarkService(repository.NewReminderSentRepository(db)),
		Logger: ctx.Logger,
	}, ctx.Config.MarkRetention)
	n, err := pruner.Prune(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d reminder mark(s) older than %s.\n", n, ctx.Config.MarkRetention)
	return nil
}
