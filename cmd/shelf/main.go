// Command shelf keeps a local library of courses in sync with a catalog and
// serves it, along with the learner's progress and notes, over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/config"
	"github.com/courseshelf/shelf/internal/logging"
	"github.com/courseshelf/shelf/internal/store"
)

var (
	configFile string
	v          *viper.Viper
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Offline course library with catalog sync",
	Long: `shelf keeps a local copy of a course catalog for offline reading.

Courses come from a content directory (--content) or a content server
(--catalog-url). A sync imports new courses and re-imports courses whose
version changed; reading progress and notes are never touched by a sync.

Settings are read from flags, SHELF_* environment variables and
shelf.yaml|toml|json in the working directory or ~/.config/shelf.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		v = config.New(configFile)
		bindFlags(v, cmd)
		if err := config.ReadFile(v); err != nil {
			fatalf("%v", err)
		}
		cfg = config.Load(v)
		if err := cfg.Validate(); err != nil {
			fatalf("%v", err)
		}
		logging.Setup(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
			Verbose:    cfg.Verbose,
		})
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "library", Title: "Library Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ./shelf.yaml or ~/.config/shelf/shelf.yaml)")
	flags.String("db", "", "Path to the local database")
	flags.String("content", "", "Content directory to read the catalog from")
	flags.String("catalog-url", "", "Content server to read the catalog from")
	flags.String("driver", "", "Database driver: "+fmt.Sprint(store.Drivers()))
	flags.String("log-file", "", "Write logs to a rotating file instead of stderr")
	flags.BoolP("verbose", "v", false, "Include file:line in log output")
}

// flagKeys maps flags to config keys. Command-level flags are bound when
// the running command defines them.
var flagKeys = map[string]string{
	"db":          config.KeyDBPath,
	"content":     config.KeyContentDir,
	"catalog-url": config.KeyCatalogURL,
	"driver":      config.KeyStoreDriver,
	"log-file":    config.KeyLogFile,
	"verbose":     config.KeyVerbose,
	"addr":        config.KeyListenAddr,
	"debounce":    config.KeyWatchDebounce,
}

func bindFlags(vv *viper.Viper, cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = vv.BindPFlag(key, f)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	_ = logging.Close()
}

// fatalf prints an error to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	_ = logging.Close()
	os.Exit(1)
}

// openStore opens the configured database and seeds the demo course into
// an empty library when enabled.
func openStore(ctx context.Context) *store.Store {
	st := openExistingStore()
	if cfg.SeedDemo {
		if _, err := st.SeedIfEmpty(ctx); err != nil {
			_ = st.Close()
			fatalf("%v", err)
		}
	}
	return st
}

// openExistingStore opens the configured database without seeding.
func openExistingStore() *store.Store {
	st, err := store.OpenWithOptions(cfg.DBPath, &store.Options{
		Driver: cfg.StoreDriver,
		Logger: logging.New("store"),
	})
	if err != nil {
		fatalf("opening database: %v", err)
	}
	return st
}

// newReader returns the configured catalog reader, or nil when none is set.
func newReader() catalog.Reader {
	switch {
	case cfg.ContentDir != "":
		return catalog.NewFSReader(cfg.ContentDir, logging.New("catalog"))
	case cfg.CatalogURL != "":
		return catalog.NewHTTPReader(cfg.CatalogURL, cfg.HTTPTimeout)
	default:
		return nil
	}
}

func requireReader() catalog.Reader {
	reader := newReader()
	if reader == nil {
		fatalf("no catalog configured; set --content or --catalog-url")
	}
	return reader
}

func printJSON(value any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fatalf("encoding JSON: %v", err)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
