// Package config loads funnelbot's configuration from environment variables.
// Missing required settings are a fatal startup error: the process must not
// start serving half-configured.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Telegram bot credential.
	BotToken string `env:"BOT_TOKEN,required"`
	// Recipient store connection string.
	MongoURI string `env:"MONGO_URI,required"`
	// Super-operator identity: may author broadcasts and grant privilege.
	AdminID int64 `env:"ADMIN_ID,required"`
	// Partner/offer URL embedded in the final funnel message.
	PartnerLink string `env:"PARTNER_LINK,required"`

	// Liveness endpoint.
	Port int `env:"PORT" envDefault:"3000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Funnel graph variant: "geo" (geography first) or "goal" (age gate then
	// financial-goal choice). The two graphs are alternatives, never merged.
	FunnelVariant string `env:"FUNNEL_VARIANT" envDefault:"geo"`

	// Optional YAML file overriding the built-in message copy.
	CopyPath string `env:"COPY_PATH"`

	// Optional SQLite journal of broadcast runs and privilege grants.
	JournalPath string `env:"JOURNAL_PATH"`

	// Optional cron spec for the stats digest sent to the super-operator.
	DigestCron string `env:"DIGEST_CRON"`

	// Minimum inter-send delay during broadcast fan-out. This is a deploy-time
	// knob, never a per-call one.
	BroadcastPace time.Duration `env:"BROADCAST_PACE_MS" envDefault:"50ms"`

	MongoTimeout time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AdminID == 0 {
		return errors.New("ADMIN_ID must be a non-zero telegram user id")
	}
	switch strings.ToLower(strings.TrimSpace(c.FunnelVariant)) {
	case "geo", "goal":
	default:
		return fmt.Errorf("FUNNEL_VARIANT must be \"geo\" or \"goal\", got %q", c.FunnelVariant)
	}
	if c.BroadcastPace <= 0 {
		return errors.New("BROADCAST_PACE_MS must be positive")
	}
	return nil
}
