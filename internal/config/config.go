// Package config loads the YAML configuration file and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen           = "127.0.0.1:8080"
	DefaultDBPath           = "desklist.db"
	DefaultDispatchSchedule = "@every 30s"
	DefaultAccent           = "#667eea"
	DefaultBackground       = "#0f0f19"
	DefaultOpacity          = 0.65
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Theme is handed to the presentation layer as-is.
type Theme struct {
	Accent     string  `yaml:"accent" json:"accent"`
	Background string  `yaml:"background" json:"background"`
	Opacity    float64 `yaml:"opacity" json:"opacity"`
}

type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite file.
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Timezone is the IANA zone that bounds the "today" listing filter.
	Timezone string `yaml:"timezone"`

	// DispatchSchedule is a cron spec for the reminder dispatcher.
	DispatchSchedule string `yaml:"dispatch_schedule"`

	// APITokenHash is a bcrypt hash. Empty disables authentication.
	APITokenHash string `yaml:"api_token_hash,omitempty"`

	// AllowedOrigins are extra websocket origin patterns.
	AllowedOrigins []string `yaml:"allowed_origins"`

	Theme Theme `yaml:"theme"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:           DefaultListen,
		DBPath:           DefaultDBPath,
		LogLevel:         "info",
		LogFormat:        "text",
		Timezone:         "Local",
		DispatchSchedule: DefaultDispatchSchedule,
		AllowedOrigins:   []string{},
		Theme: Theme{
			Accent:     DefaultAccent,
			Background: DefaultBackground,
			Opacity:    DefaultOpacity,
		},
	}
}

// Normalize fills in missing values so older or partial files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch strings.ToLower(c.LogFormat) {
	case "json":
		c.LogFormat = "json"
	default:
		c.LogFormat = "text"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.DispatchSchedule == "" {
		c.DispatchSchedule = DefaultDispatchSchedule
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{}
	}
	if c.Theme.Accent == "" {
		c.Theme.Accent = DefaultAccent
	}
	if c.Theme.Background == "" {
		c.Theme.Background = DefaultBackground
	}
	// A fully transparent window is not useful; 0 reads as unset.
	if c.Theme.Opacity == 0 {
		c.Theme.Opacity = DefaultOpacity
	}
}

// Validate reports the first value that cannot be used at runtime.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.DispatchSchedule); err != nil {
		return fmt.Errorf("invalid dispatch_schedule %q: %w", c.DispatchSchedule, err)
	}
	if !hexColor.MatchString(c.Theme.Accent) {
		return fmt.Errorf("invalid theme.accent %q", c.Theme.Accent)
	}
	if !hexColor.MatchString(c.Theme.Background) {
		return fmt.Errorf("invalid theme.background %q", c.Theme.Background)
	}
	if c.Theme.Opacity < 0 || c.Theme.Opacity > 1 {
		return fmt.Errorf("invalid theme.opacity %v: must be within [0,1]", c.Theme.Opacity)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyEnv overrides file values with DESKLIST_* environment variables.
func (c *Config) ApplyEnv() {
	for env, dst := range map[string]*string{
		"DESKLIST_LISTEN":         &c.Listen,
		"DESKLIST_DB_PATH":        &c.DBPath,
		"DESKLIST_LOG_LEVEL":      &c.LogLevel,
		"DESKLIST_LOG_FORMAT":     &c.LogFormat,
		"DESKLIST_API_TOKEN_HASH": &c.APITokenHash,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	c.Normalize()
}

// Load reads the YAML file at path. On first run it writes the defaults
// there with 0600 permissions. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		cfg.ApplyEnv()
		return cfg, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()
	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".desklist-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
