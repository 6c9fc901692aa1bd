// Package config resolves settings from defaults, an optional YAML file,
// a .env file and TABNAV_* environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/cdp"
	"github.com/lotas/tabnav/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 19191
	DefaultStaleDays = 7
)

var ErrInvalidSource = errors.New("invalid source")

// Config holds all tabnav settings.
type Config struct {
	Source    types.Source `yaml:"source"`
	Port      int          `yaml:"port"`
	CDPURL    string       `yaml:"cdp_url"`
	Profile   string       `yaml:"profile"`
	DBPath    string       `yaml:"db"`
	LogDir    string       `yaml:"log_dir"`
	NoJournal bool         `yaml:"no_journal"`
	StaleDays int          `yaml:"stale_days"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{
		Source:    types.SourceBridge,
		Port:      DefaultPort,
		CDPURL:    cdp.DefaultURL,
		StaleDays: DefaultStaleDays,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.DBPath = filepath.Join(home, ".local", "share", "tabnav", "journal.db")
		cfg.LogDir = filepath.Join(home, ".local", "share", "tabnav")
	}
	return cfg
}

// DefaultPath returns ~/.config/tabnav/config.yaml, or TABNAV_CONFIG when set.
func DefaultPath() string {
	if p := os.Getenv("TABNAV_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabnav", "config.yaml")
}

// Load builds the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		applog.Error("config.dotenv", err)
	}

	cfg := Default()
	if path := DefaultPath(); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads a YAML config on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse yaml %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Source = types.Source(getEnvOrDefault("TABNAV_SOURCE", string(c.Source)))
	c.Port = getEnvIntOrDefault("TABNAV_PORT", c.Port)
	c.CDPURL = getEnvOrDefault("TABNAV_CDP_URL", c.CDPURL)
	c.Profile = getEnvOrDefault("TABNAV_PROFILE", c.Profile)
	c.DBPath = getEnvOrDefault("TABNAV_DB", c.DBPath)
	c.LogDir = getEnvOrDefault("TABNAV_LOG_DIR", c.LogDir)
	c.NoJournal = getEnvBoolOrDefault("TABNAV_NO_JOURNAL", c.NoJournal)
	c.StaleDays = getEnvIntOrDefault("TABNAV_STALE_DAYS", c.StaleDays)
}

// Validate checks the settings after flags are applied.
func (c *Config) Validate() error {
	switch c.Source {
	case types.SourceBridge, types.SourceCDP, types.SourceFirefox:
	default:
		return fmt.Errorf("%w %q (want bridge, cdp or firefox)", ErrInvalidSource, c.Source)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.StaleDays < 0 {
		return fmt.Errorf("stale days must not be negative, got %d", c.StaleDays)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
