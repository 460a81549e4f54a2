// Package config loads shelf settings from flags, SHELF_* environment
// variables, a config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/courseshelf/shelf/internal/store"
)

// EnvPrefix is prepended to environment variable names: db_path is read
// from SHELF_DB_PATH and store.driver from SHELF_STORE_DRIVER.
const EnvPrefix = "SHELF"

// Config keys.
const (
	KeyContentDir    = "content_dir"
	KeyCatalogURL    = "catalog_url"
	KeyDBPath        = "db_path"
	KeyStoreDriver   = "store.driver"
	KeySeedDemo      = "store.seed_demo"
	KeyListenAddr    = "listen_addr"
	KeyHTTPTimeout   = "http.timeout"
	KeyWatchDebounce = "watch.debounce"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAgeDays = "log.max_age_days"
	KeyLogCompress   = "log.compress"
	KeyVerbose       = "verbose"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the typed view of all settings.
type Config struct {
	ContentDir string
	CatalogURL string
	DBPath     string

	StoreDriver string
	SeedDemo    bool

	ListenAddr  string
	HTTPTimeout time.Duration

	WatchDebounce time.Duration

	Log     LogConfig
	Verbose bool
}

// LogConfig controls the log writer. An empty File logs to stderr.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultDBPath is ~/.local/share/shelf/shelf.db, or shelf.db in the
// working directory when the home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shelf.db"
	}
	return filepath.Join(home, ".local", "share", "shelf", "shelf.db")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyContentDir, "")
	v.SetDefault(KeyCatalogURL, "")
	v.SetDefault(KeyDBPath, DefaultDBPath())
	v.SetDefault(KeyStoreDriver, store.DefaultDriver)
	v.SetDefault(KeySeedDemo, true)
	v.SetDefault(KeyListenAddr, "127.0.0.1:8080")
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyWatchDebounce, 500*time.Millisecond)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
	v.SetDefault(KeyLogCompress, false)
	v.SetDefault(KeyVerbose, false)
}

// New returns a viper instance with defaults, environment binding and the
// config file search path set up. configFile, when non-empty, replaces the
// search path.
func New(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}

	v.SetConfigName("shelf")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "shelf"))
	}
	return v
}

// ReadFile reads the config file if one is found. A missing file in the
// search path is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load builds a Config from v.
func Load(v *viper.Viper) *Config {
	return &Config{
		ContentDir:    v.GetString(KeyContentDir),
		CatalogURL:    v.GetString(KeyCatalogURL),
		DBPath:        v.GetString(KeyDBPath),
		StoreDriver:   v.GetString(KeyStoreDriver),
		SeedDemo:      v.GetBool(KeySeedDemo),
		ListenAddr:    v.GetString(KeyListenAddr),
		HTTPTimeout:   v.GetDuration(KeyHTTPTimeout),
		WatchDebounce: v.GetDuration(KeyWatchDebounce),
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
			Compress:   v.GetBool(KeyLogCompress),
		},
		Verbose: v.GetBool(KeyVerbose),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyDBPath))
	}
	if c.ContentDir != "" && c.CatalogURL != "" {
		errs = append(errs, fmt.Errorf("set only one of %s and %s", KeyContentDir, KeyCatalogURL))
	}
	if c.CatalogURL != "" && !strings.HasPrefix(c.CatalogURL, "http://") && !strings.HasPrefix(c.CatalogURL, "https://") {
		errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", KeyCatalogURL, c.CatalogURL))
	}

	known := false
	for _, name := range store.Drivers() {
		if c.StoreDriver == name {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("%s %q is not one of %v", KeyStoreDriver, c.StoreDriver, store.Drivers()))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyHTTPTimeout))
	}
	if c.WatchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyWatchDebounce))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("log rotation limits must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// HasCatalog reports whether a catalog source is configured.
func (c *Config) HasCatalog() bool {
	return c.ContentDir != "" || c.CatalogURL != ""
}
