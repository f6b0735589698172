package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/sshindanai/discord-calendar-bot/server/cli"
	"github.com/sshindanai/discord-calendar-bot/server/config"
	"github.com/sshindanai/discord-calendar-bot/server/logger"
)

var CLI struct {
	config.Config `embed:""`

	Version kong.VersionFlag

	Serve   cli.ServeCmd   `cmd:"" help:"Run the bot, the OAuth server and the schedulers." default:"1"`
	Migrate cli.MigrateCmd `cmd:"" help:"Create or update the database schema."`
	Prune   cli.PruneCmd   `cmd:"" help:"Delete old reminder marks and exit."`
}

func main() {
	// .env has to be in the environment before kong resolves env tags
	envFile := os.Getenv("CALBOT_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := kong.Parse(&CLI,
		kong.Name("calbot"),
		kong.Description("Discord calendar bot: OAuth linking, reminders and digests"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	l, err := logger.New(logger.Config{Debug: CLI.LogDebug, File: CLI.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(&cli.Context{Config: &CLI.Config, Logger: l}); err != nil {
		l.Error("calbot failed", "err", err)
		os.Exit(1)
	}
}
