package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar names an explicit YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			GatewayURL:        "wss://gateway.discord.gg",
			APIURL:            "https://discord.com/api/v10",
			Intents:           33280, // GUILD_MESSAGES | MESSAGE_CONTENT
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Counting: CountingConfig{
			Delay:         3 * time.Second,
			ResyncDepth:   10,
			EnforceDelete: true,
		},
		Goals: GoalsConfig{
			ThresholdPercent: 1,
		},
		Store: StoreConfig{
			Path: "./data/counting.db",
		},
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"*"},
			RateLimit:   60,
		},
		Reporter: ReporterConfig{
			Interval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence, and validates it.
func Load() (*Config, error) {
	cfg, err := LoadUnchecked()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnchecked is Load without validation. The offline tools use it since
// they need the store path but no Discord credentials.
func LoadUnchecked() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}
	if err := millisDuration(k, "counting.delay"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitList turns a comma-separated env value into a list.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// millisDuration reads a bare integer at path as milliseconds, the unit the
// /countdelay command and the runtime key use. Values with a unit such as
// "3s" are left for the duration decoder.
func millisDuration(k *koanf.Koanf, path string) error {
	var ms int64
	switch v := k.Get(path).(type) {
	case int:
		ms = int64(v)
	case int64:
		ms = v
	case uint64:
		ms = int64(v)
	case float64:
		ms = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		ms = n
	default:
		return nil
	}
	if err := k.Set(path, time.Duration(ms)*time.Millisecond); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// envMappings maps environment variables to koanf paths. PORT and DB_PATH
// are the flat names older deployments use.
var envMappings = map[string]string{
	"discord_token":                 "discord.token",
	"discord_guild_id":              "discord.guild_id",
	"discord_counting_channel_id":   "discord.counting_channel_id",
	"discord_log_channel_id":        "discord.log_channel_id",
	"discord_disconnect_channel_id": "discord.disconnect_channel_id",
	"discord_gateway_url":           "discord.gateway_url",
	"discord_api_url":               "discord.api_url",
	"discord_intents":               "discord.intents",
	"discord_request_timeout":       "discord.request_timeout",
	"discord_requests_per_second":   "discord.requests_per_second",
	"discord_burst":                 "discord.burst",

	"counting_delay":          "counting.delay",
	"counting_resync_depth":   "counting.resync_depth",
	"counting_enforce_delete": "counting.enforce_delete",

	"goals_threshold_percent": "goals.threshold_percent",

	"store_path": "store.path",
	"db_path":    "store.path",

	"server_port":         "server.port",
	"port":                "server.port",
	"server_admin_token":  "server.admin_token",
	"server_cors_origins": "server.cors_origins",
	"server_rate_limit":   "server.rate_limit",

	"reporter_interval": "reporter.interval",

	"log_level": "log.level",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
