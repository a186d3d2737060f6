package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSONFile = "jsonfile"
)

// ErrInvalidConfig is returned by Validate when a required setting or
// credential is missing or out of range. It is fatal for a run.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	LogLevel string         `toml:"log_level"`
	Store    StoreConfig    `toml:"store"`
	Spam     SpamConfig     `toml:"spam"`
	Summary  SummaryConfig  `toml:"summary"`
	Schedule ScheduleConfig `toml:"schedule"`
	Notify   NotifyConfig   `toml:"notify"`
	Debug    DebugConfig    `toml:"debug"`
}

type StoreConfig struct {
	Driver            string `toml:"driver"`
	SQLitePath        string `toml:"sqlite_path"`
	PostgresURL       string `toml:"postgres_url"`
	JSONDir           string `toml:"json_dir"`
	SpamCollection    string `toml:"spam_collection"`
	SummaryCollection string `toml:"summary_collection"`
}

type SpamConfig struct {
	BurstWindowMinutes int `toml:"burst_window_minutes"`
	BurstThreshold     int `toml:"burst_threshold"`
	DuplicateThreshold int `toml:"duplicate_threshold"`
}

// BurstWindow returns the trailing window used by the burst rule.
func (s SpamConfig) BurstWindow() time.Duration {
	return time.Duration(s.BurstWindowMinutes) * time.Minute
}

type SummaryConfig struct {
	ShortSentences int `toml:"short_sentences"`
	LongSentences  int `toml:"long_sentences"`
	Workers        int `toml:"workers"`
}

type ScheduleConfig struct {
	Timezone      string `toml:"timezone"`
	SpamCron      string `toml:"spam_cron"`
	SummaryCron   string `toml:"summary_cron"`
	MetricsListen string `toml:"metrics_listen"`
}

// NotifyConfig controls the moderation report email sent after a sweep
// that marked at least one post.
type NotifyConfig struct {
	Enabled  bool     `toml:"enabled"`
	Provider string   `toml:"provider"` // "smtp"
	SMTPHost string   `toml:"smtp_host"`
	SMTPPort int      `toml:"smtp_port"`
	SMTPUser string   `toml:"smtp_user"`
	SMTPPass string   `toml:"smtp_pass"`
	FromAddr string   `toml:"from_addr"`
	ToAddrs  []string `toml:"to_addrs"`
}

type DebugConfig struct {
	CacheRuns bool `toml:"cache_runs"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	dataDir, err := DataDir()
	if err != nil {
		dataDir = "data"
	}
	return &Config{
		Version:  1,
		LogLevel: "info",
		Store: StoreConfig{
			Driver:            DriverSQLite,
			SQLitePath:        filepath.Join(dataDir, "boardjanitor.db"),
			JSONDir:           filepath.Join(dataDir, "collections"),
			SpamCollection:    "anon_posts",
			SummaryCollection: "posts",
		},
		Spam: SpamConfig{
			BurstWindowMinutes: 10,
			BurstThreshold:     5,
			DuplicateThreshold: 3,
		},
		Summary: SummaryConfig{
			ShortSentences: 3,
			LongSentences:  7,
			Workers:        4,
		},
		Schedule: ScheduleConfig{
			Timezone:      "UTC",
			SpamCron:      "*/10 * * * *",
			SummaryCron:   "0 * * * *",
			MetricsListen: ":9464",
		},
		Notify: NotifyConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// Validate checks that the selected store has what it needs and that rule
// parameters are usable. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: store.sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("%w: store.postgres_url (or DATABASE_URL) is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverJSONFile:
		if c.Store.JSONDir == "" {
			return fmt.Errorf("%w: store.json_dir is required for the jsonfile driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Store.SpamCollection == "" || c.Store.SummaryCollection == "" {
		return fmt.Errorf("%w: store collections must not be empty", ErrInvalidConfig)
	}
	if c.Spam.BurstWindowMinutes <= 0 {
		return fmt.Errorf("%w: spam.burst_window_minutes must be positive", ErrInvalidConfig)
	}
	if c.Spam.BurstThreshold < 2 {
		return fmt.Errorf("%w: spam.burst_threshold must be at least 2", ErrInvalidConfig)
	}
	if c.Spam.DuplicateThreshold < 2 {
		return fmt.Errorf("%w: spam.duplicate_threshold must be at least 2", ErrInvalidConfig)
	}
	if c.Summary.ShortSentences <= 0 || c.Summary.LongSentences <= 0 {
		return fmt.Errorf("%w: summary sentence counts must be positive", ErrInvalidConfig)
	}
	if c.Notify.Enabled {
		if c.Notify.SMTPHost == "" || c.Notify.FromAddr == "" || len(c.Notify.ToAddrs) == 0 {
			return fmt.Errorf("%w: notify needs smtp_host, from_addr and to_addrs", ErrInvalidConfig)
		}
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "boardjanitor"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory used for run snapshots.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "boardjanitor"), nil
}

// DataDir returns the default directory for local stores.
func DataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads config from the default path
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path. Keys missing from the file keep their
// default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
