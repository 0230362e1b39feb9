// Package config loads the application configuration from YAML with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/midoshouse/midos.house/internal/adapters/bracket"
	"github.com/midoshouse/midos.house/internal/adapters/racechat"
	"github.com/midoshouse/midos.house/internal/adapters/schedthread"
	"github.com/midoshouse/midos.house/internal/adapters/seedgen"
	"github.com/midoshouse/midos.house/internal/ops"
)

// Config holds every setting the process needs.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Observability ObservabilityConfig `yaml:"observability"`
	Racechat      racechat.Config     `yaml:"racechat"`
	Discord       schedthread.Config  `yaml:"discord"`
	Bracket       bracket.Config      `yaml:"bracket"`
	Seedgen       seedgen.Config      `yaml:"seedgen"`
	Ops           ops.Config          `yaml:"ops"`
	Spoiler       SpoilerConfig       `yaml:"spoiler"`
	// PublicBaseURL is the externally reachable origin used when building
	// links in chat and thread messages.
	PublicBaseURL string `yaml:"public_base_url"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
	// NKeySeed optionally authenticates the connection.
	NKeySeed string `yaml:"nkey_seed"`
}

// ObservabilityConfig selects the log level and names the environment.
type ObservabilityConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

// SpoilerConfig signs spoiler unlock tokens.
type SpoilerConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LoadConfig loads the configuration from a YAML file. Secrets and
// deployment-specific values can be overridden (or supplied entirely)
// through environment variables.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	if data, err := os.ReadFile(filename); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is not set (config file or DATABASE_URL)")
	}
	return &cfg, nil
}

// ValidateService checks the settings the long-running service cannot start
// without. The migration command only needs the DSN and skips this.
func (c *Config) ValidateService() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is not set (config file or NATS_URL)")
	}
	if c.Spoiler.Secret == "" {
		return fmt.Errorf("spoiler secret is not set (config file or SPOILER_SECRET)")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.NKeySeed, "NATS_NKEY_SEED")

	setString(&cfg.Observability.Environment, "ENV")
	setString(&cfg.Observability.LogLevel, "LOG_LEVEL")

	setString(&cfg.Racechat.BaseURL, "RACECHAT_BASE_URL")
	setString(&cfg.Racechat.WSBaseURL, "RACECHAT_WS_BASE_URL")
	setString(&cfg.Racechat.TokenURL, "RACECHAT_TOKEN_URL")
	setString(&cfg.Racechat.ClientID, "RACECHAT_CLIENT_ID")
	setString(&cfg.Racechat.ClientSecret, "RACECHAT_CLIENT_SECRET")
	if v := os.Getenv("RACECHAT_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Racechat.RequestsPerSecond = f
		}
	}

	setString(&cfg.Discord.Token, "DISCORD_TOKEN")
	setString(&cfg.Discord.GuildID, "DISCORD_GUILD_ID")
	setString(&cfg.Discord.ChannelID, "DISCORD_CHANNEL_ID")

	setString(&cfg.Bracket.BaseURL, "BRACKET_BASE_URL")
	setString(&cfg.Bracket.APIKey, "BRACKET_API_KEY")
	setDuration(&cfg.Bracket.Timeout, "BRACKET_TIMEOUT")

	setString(&cfg.Seedgen.BaseURL, "SEEDGEN_BASE_URL")
	setString(&cfg.Seedgen.APIKey, "SEEDGEN_API_KEY")
	setDuration(&cfg.Seedgen.PollInterval, "SEEDGEN_POLL_INTERVAL")
	setDuration(&cfg.Seedgen.JobDeadline, "SEEDGEN_JOB_DEADLINE")

	setString(&cfg.Ops.Addr, "OPS_ADDR")
	setString(&cfg.Ops.WebhookToken, "BRACKET_WEBHOOK_TOKEN")
	setString(&cfg.Ops.ArtifactBaseURL, "ARTIFACT_BASE_URL")

	setString(&cfg.Spoiler.Secret, "SPOILER_SECRET")
	setDuration(&cfg.Spoiler.TTL, "SPOILER_TTL")

	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
}

func applyDefaults(cfg *Config) {
	if cfg.Observability.Environment == "" {
		cfg.Observability.Environment = "development"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Ops.Addr == "" {
		cfg.Ops.Addr = ":8080"
	}
	if cfg.Spoiler.TTL <= 0 {
		cfg.Spoiler.TTL = 24 * time.Hour
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "https://midos.house"
	}
}
