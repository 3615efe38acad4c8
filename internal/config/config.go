package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/pkg/discord"
	"github.com/jaam8/reaction_poll_bot/pkg/mattermost"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	PlatformDiscord    = "discord"
	PlatformMattermost = "mattermost"
)

var (
	ErrNoToken         = errors.New("bot token is required")
	ErrUnknownPlatform = errors.New("unknown platform")
)

type Config struct {
	Platform   string            `yaml:"PLATFORM"  env:"PLATFORM"  env-default:"discord"`
	BotToken   string            `yaml:"BOT_TOKEN" env:"BOT_TOKEN,DISCORD_TOKEN"`
	RestPort   string            `yaml:"REST_PORT" env:"REST_PORT" env-default:"8080"`
	LogLevel   string            `yaml:"LOG_LEVEL" env:"LOG_LEVEL" env-default:"info"`
	Discord    discord.Config    `yaml:"DISCORD"`
	Mattermost mattermost.Config `yaml:"MATTERMOST"`
	Poll       Poll              `yaml:"POLL"`
	Commands   Commands          `yaml:"COMMANDS"`
}

type Poll struct {
	PageLimit    int `yaml:"POLL_PAGE_LIMIT"    env:"POLL_PAGE_LIMIT"    env-default:"100"`
	MaxNames     int `yaml:"POLL_MAX_NAMES"     env:"POLL_MAX_NAMES"     env-default:"0"`
	HistoryLimit int `yaml:"POLL_HISTORY_LIMIT" env:"POLL_HISTORY_LIMIT" env-default:"500"`
}

type Commands struct {
	RatePerMinute float64 `yaml:"CMD_RATE_PER_MINUTE" env:"CMD_RATE_PER_MINUTE" env-default:"20"`
	Burst         int     `yaml:"CMD_BURST"           env:"CMD_BURST"           env-default:"5"`
}

// New reads .env (if present) and the environment; flags in args override them.
func New(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := config.applyFlags(args); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyFlags(args []string) error {
	flagSet := pflag.NewFlagSet("reaction-poll-bot", pflag.ContinueOnError)
	token := flagSet.String("token", "", "bot token (overrides BOT_TOKEN)")
	platform := flagSet.String("platform", "", "chat platform: discord or mattermost")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("config: parse flags: %w", err)
	}
	if flagSet.Changed("token") {
		c.BotToken = *token
	}
	if flagSet.Changed("platform") {
		c.Platform = *platform
	}
	if flagSet.Changed("log-level") {
		c.LogLevel = *logLevel
	}
	return nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("config: %w", ErrNoToken)
	}
	switch c.Platform {
	case PlatformDiscord:
	case PlatformMattermost:
		if c.Mattermost.URL == "" || c.Mattermost.WsURL == "" {
			return errors.New("config: MM_URL and MM_WS_URL are required for mattermost")
		}
	default:
		return fmt.Errorf("config: %w: %q", ErrUnknownPlatform, c.Platform)
	}
	if c.Poll.PageLimit < 1 || c.Poll.PageLimit > models.MaxPageLimit {
		c.Poll.PageLimit = models.MaxPageLimit
	}
	if c.Poll.MaxNames < 0 {
		c.Poll.MaxNames = 0
	}
	if c.Commands.RatePerMinute <= 0 {
		c.Commands.RatePerMinute = 20
	}
	if c.Commands.Burst <= 0 {
		c.Commands.Burst = 1
	}
	return nil
}
