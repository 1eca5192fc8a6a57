package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	ArchiveDriverSQLite   = "sqlite"
	ArchiveDriverPostgres = "postgres"
)

type Config struct {
	TelegramBotToken string  `koanf:"telegram_bot_token"`
	TelegramAPIURL   string  `koanf:"telegram_api_url"`
	StoragePath      string  `koanf:"storage_path"`
	HTTPPort         string  `koanf:"http_port"`
	UpdateInterval   int     `koanf:"update_interval"`
	AllowedUsers     []int64 `koanf:"-"`
	AppEnv           AppEnv  `koanf:"app_env"`

	// Message archive backing the history source
	ArchiveDriver         string  `koanf:"archive_driver"`
	ArchiveDSN            string  `koanf:"archive_dsn"`
	HistoryPageSize       int     `koanf:"history_page_size"`
	HistoryReadsPerSecond float64 `koanf:"history_reads_per_second"`

	PermissionCacheTTL time.Duration `koanf:"permission_cache_ttl"`
	CommandCooldown    time.Duration `koanf:"command_cooldown"`
	StatsAPIToken      string        `koanf:"stats_api_token"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	defaults := map[string]any{
		"telegram_api_url":         "https://api.telegram.org",
		"storage_path":             "./data",
		"http_port":                "8080",
		"update_interval":          60,
		"app_env":                  "production",
		"archive_driver":           ArchiveDriverSQLite,
		"history_page_size":        100,
		"history_reads_per_second": 5.0,
		"permission_cache_ttl":     "5m",
		"command_cooldown":         "60s",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// koanf returns a string from env vars and a slice from config files
	if allowedUsers := k.Get("allowed_users"); allowedUsers != nil {
		switch v := allowedUsers.(type) {
		case string:
			cfg.AllowedUsers = ParseAllowedUsers(v)
		case []interface{}:
			cfg.AllowedUsers = lo.FilterMap(v, func(item interface{}, _ int) (int64, bool) {
				switch val := item.(type) {
				case int64:
					return val, true
				case int:
					return int64(val), true
				case float64:
					return int64(val), true
				default:
					return 0, false
				}
			})
		}
	}

	if appEnv, err := ParseAppEnv(k.String("app_env")); err == nil {
		cfg.AppEnv = appEnv
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	if cfg.ArchiveDSN == "" && cfg.ArchiveDriver == ArchiveDriverSQLite {
		cfg.ArchiveDSN = filepath.Join(cfg.StoragePath, "archive.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.ErrMissingBotToken
	}
	if c.ArchiveDriver != ArchiveDriverSQLite && c.ArchiveDriver != ArchiveDriverPostgres {
		return oops.With("archive_driver", c.ArchiveDriver).Errorf("unsupported archive driver")
	}
	if c.ArchiveDSN == "" {
		return oops.With("archive_driver", c.ArchiveDriver).Errorf("archive_dsn is required")
	}
	if c.UpdateInterval <= 0 {
		return oops.With("update_interval", c.UpdateInterval).Errorf("update_interval must be positive")
	}
	if c.HistoryPageSize <= 0 {
		return oops.With("history_page_size", c.HistoryPageSize).Errorf("history_page_size must be positive")
	}
	if c.HistoryReadsPerSecond <= 0 {
		return oops.With("history_reads_per_second", c.HistoryReadsPerSecond).Errorf("history_reads_per_second must be positive")
	}
	return nil
}

// Debug reports whether verbose logging should be enabled
func (c *Config) Debug() bool {
	return c.AppEnv == AppEnvLocal || c.AppEnv == AppEnvDevelopment
}

// ParseAllowedUsers parses comma-separated user IDs string into []int64
func ParseAllowedUsers(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}
