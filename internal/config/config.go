// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Discord  DiscordConfig  `koanf:"discord"`
	Counting CountingConfig `koanf:"counting"`
	Goals    GoalsConfig    `koanf:"goals"`
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Reporter ReporterConfig `koanf:"reporter"`
	Log      LogConfig      `koanf:"log"`
}

// DiscordConfig covers the gateway and REST endpoints and the watched channels.
type DiscordConfig struct {
	Token               string        `koanf:"token" validate:"required"`
	GuildID             string        `koanf:"guild_id" validate:"required"`
	CountingChannelID   string        `koanf:"counting_channel_id" validate:"required"`
	LogChannelID        string        `koanf:"log_channel_id"`
	DisconnectChannelID string        `koanf:"disconnect_channel_id"`
	GatewayURL          string        `koanf:"gateway_url" validate:"required,url"`
	APIURL              string        `koanf:"api_url" validate:"required,url"`
	Intents             int           `koanf:"intents" validate:"gt=0"`
	RequestTimeout      time.Duration `koanf:"request_timeout" validate:"gt=0"`
	RequestsPerSecond   float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst               int           `koanf:"burst" validate:"gt=0"`
}

// CountingConfig tunes the counting engine.
type CountingConfig struct {
	Delay         time.Duration `koanf:"delay" validate:"gte=0"`
	ResyncDepth   int           `koanf:"resync_depth" validate:"min=1,max=100"`
	EnforceDelete bool          `koanf:"enforce_delete"`
}

// GoalsConfig tunes the goal tracker.
type GoalsConfig struct {
	ThresholdPercent int `koanf:"threshold_percent" validate:"min=1,max=100"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig configures the ops HTTP surface.
type ServerConfig struct {
	Port        string   `koanf:"port" validate:"required,numeric"`
	AdminToken  string   `koanf:"admin_token"`
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is requests per minute per client IP on /api. Zero disables it.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// ReporterConfig configures the disconnect reporter.
type ReporterConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid configuration")

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// APIOpen reports whether the /api routes run without an admin token.
func (c *Config) APIOpen() bool {
	return c.Server.AdminToken == ""
}
