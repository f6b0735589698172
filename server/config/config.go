package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is embedded into the CLI; every field falls back to its environment
// variable.
type Config struct {
	DiscordToken   string `help:"Discord bot token." env:"DISCORD_TOKEN"`
	DiscordAppID   string `help:"Discord application id." env:"DISCORD_APP_ID"`
	DiscordGuildID string `help:"Register commands in one guild only." env:"DISCORD_GUILD_ID"`

	AuthBaseURL string `help:"Public base URL of the OAuth server." env:"AUTH_BASE_URL" default:"http://localhost:3000"`
	HTTPAddr    string `help:"Listen address of the OAuth server." env:"HTTP_ADDR" default:":3000"`

	GoogleClientID        string `help:"Google OAuth client id." env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `help:"Google OAuth client secret." env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI     string `help:"Google OAuth redirect URI." env:"GOOGLE_REDIRECT_URI"`
	MicrosoftClientID     string `help:"Microsoft OAuth client id." env:"MS_CLIENT_ID"`
	MicrosoftClientSecret string `help:"Microsoft OAuth client secret." env:"MS_CLIENT_SECRET"`
	MicrosoftRedirectURI  string `help:"Microsoft OAuth redirect URI." env:"MS_REDIRECT_URI"`
	MicrosoftTenant       string `help:"Azure AD tenant." env:"MS_TENANT" default:"common"`

	DBDriver    string `help:"Database driver." env:"DB_DRIVER" enum:"postgres,sqlite" default:"sqlite"`
	DatabaseURL string `help:"Database DSN or sqlite file." env:"DATABASE_URL" default:"calbot.db"`

	EncryptionSecret string `help:"Secret for token encryption and state signing." env:"ENCRYPTION_SECRET"`
	RedisURL         string `help:"Redis URL for OAuth state nonces. Empty keeps them in memory." env:"REDIS_URL"`

	Timezone      string        `help:"Time zone for digests and rendered times." env:"BOT_TIMEZONE" default:"UTC"`
	MaxGoroutines int           `help:"Concurrent users per scheduler tick." env:"MAX_GOROUTINES" default:"20"`
	MarkRetention time.Duration `help:"How long reminder marks are kept." env:"MARK_RETENTION" default:"24h"`

	LogDebug bool   `help:"Enable debug logging." env:"LOG_DEBUG"`
	LogFile  string `help:"Rotated log file." env:"LOG_FILE"`
}

// LoadDotEnv loads path into the environment when it exists. Variables already
// set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}
	return nil
}

// ValidateStorage checks what the database commands need.
func (c *Config) ValidateStorage() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("environment variable DATABASE_URL is not set")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("environment variable DB_DRIVER must be postgres or sqlite")
	}
	return nil
}

// CheckEnv checks the variables the bot needs. It is not named Validate so
// kong does not run it for the storage-only commands.
func (c *Config) CheckEnv() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.DiscordToken == "" {
		return fmt.Errorf("environment variable DISCORD_TOKEN is not set")
	}
	if c.DiscordAppID == "" {
		return fmt.Errorf("environment variable DISCORD_APP_ID is not set")
	}
	if c.EncryptionSecret == "" {
		return fmt.Errorf("environment variable ENCRYPTION_SECRET is not set")
	}
	if c.AuthBaseURL == "" {
		return fmt.Errorf("environment variable AUTH_BASE_URL is not set")
	}
	if c.GoogleClientID == "" {
		return fmt.Errorf("environment variable GOOGLE_CLIENT_ID is not set")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("environment variable GOOGLE_CLIENT_SECRET is not set")
	}
	if c.MicrosoftClientID != "" && c.MicrosoftClientSecret == "" {
		return fmt.Errorf("environment variable MS_CLIENT_SECRET is not set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) MicrosoftEnabled() bool {
	return c.MicrosoftClientID != ""
}

func (c *Config) GoogleRedirect() string {
	if c.GoogleRedirectURI != "" {
		return c.GoogleRedirectURI
	}
	return c.baseURL() + "/google/callback"
}

func (c *Config) MicrosoftRedirect() string {
	if c.MicrosoftRedirectURI != "" {
		return c.MicrosoftRedirectURI
	}
	return c.baseURL() + "/microsoft/callback"
}

func (c *Config) baseURL() string {
	return strings.TrimRight(c.AuthBaseURL, "/")
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid BOT_TIMEZONE %q", c.Timezone)
	}
	return loc, nil
}
