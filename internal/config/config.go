// Package config loads erpview settings from a YAML file, an optional .env
// file and ERPVIEW_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ERPVIEW_"

// Config is the full runtime configuration.
type Config struct {
	API       API                     `yaml:"api"`
	Log       Log                     `yaml:"log"`
	Metrics   Metrics                 `yaml:"metrics"`
	UI        UI                      `yaml:"ui"`
	PrefsFile string                  `yaml:"prefs_file"`
	Screens   map[string]ScreenConfig `yaml:"screens"`
}

type API struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Metrics enables the Prometheus endpoint when Addr is set.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// UI configures the terminal host.
type UI struct {
	Theme string `yaml:"theme"`
}

// ScreenConfig holds per-screen overrides.
type ScreenConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PageSize     int           `yaml:"page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := defaultDir()
	return &Config{
		API: API{
			BaseURL: "http://localhost:8080/api",
			Timeout: 15 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(dir, "erpview.log"),
		},
		UI:        UI{Theme: "dark"},
		PrefsFile: filepath.Join(dir, "prefs.yaml"),
		Screens:   map[string]ScreenConfig{},
	}
}

func defaultDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "erpview")
	}
	return ".erpview"
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

// Load reads path on top of the defaults. A missing file at the default
// path is not an error; a missing explicit path is. Environment files
// (.env, .env.local) are loaded first and never override variables that
// are already set.
func Load(path string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("API_BASE_URL", &cfg.API.BaseURL)
	str("API_TOKEN", &cfg.API.Token)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("PREFS_FILE", &cfg.PrefsFile)
	str("THEME", &cfg.UI.Theme)
	if v, ok := lookup(envPrefix + "API_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sAPI_TIMEOUT: %w", envPrefix, err)
		}
		cfg.API.Timeout = d
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative: %s", c.API.Timeout))
	}
	switch c.UI.Theme {
	case "", "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("ui.theme must be dark or light: %q", c.UI.Theme))
	}
	for name, s := range c.Screens {
		if s.PollInterval < 0 {
			errs = append(errs, fmt.Errorf("screens.%s.poll_interval must not be negative", name))
		}
		if s.PageSize < 0 {
			errs = append(errs, fmt.Errorf("screens.%s.page_size must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

// Screen returns the overrides for name.
func (c *Config) Screen(name string) ScreenConfig {
	return c.Screens[name]
}

// PollInterval returns the configured interval for screen, or def.
func (c *Config) PollInterval(screen string, def time.Duration) time.Duration {
	if d := c.Screens[screen].PollInterval; d > 0 {
		return d
	}
	return def
}
