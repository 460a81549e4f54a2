package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/daemon"
	"github.com/courseshelf/shelf/internal/logging"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
	"github.com/courseshelf/shelf/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Re-sync whenever the content directory changes",
	Long: `Watch the content directory and sync after each burst of changes.

A sync runs at startup. After that, changes are collected until the tree
has been quiet for the debounce interval, then one sync runs. Course
versions still decide what is re-imported, so bump the version in
course.json (or .yaml/.toml) to publish edited chapters.`,
	Run: func(cmd *cobra.Command, args []string) {
		resync, _ := cmd.Flags().GetDuration("resync")
		if cfg.ContentDir == "" {
			fatalf("watch needs a content directory (--content)")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st := openStore(ctx)
		defer st.Close()

		engine := shelfsync.New(requireReader(), st, logging.New("sync"))
		stop := engine.Subscribe(func(status shelfsync.Status) {
			if status.State == shelfsync.StateSettled && status.Report != nil {
				fmt.Printf("%s %s %s\n", ui.RenderPass("✓"), time.Now().Format("15:04:05"), status.Report)
			}
		})
		defer stop()

		d, err := daemon.NewWithConfig(engine, cfg.ContentDir, &daemon.Config{
			DebounceInterval: cfg.WatchDebounce,
			ResyncInterval:   resync,
			Logger:           logging.New("daemon"),
		})
		if err != nil {
			fatalf("creating watcher: %v", err)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👀"), cfg.ContentDir)
		fmt.Printf("   Database: %s\n", cfg.DBPath)
		fmt.Printf("   Debounce: %v\n", cfg.WatchDebounce)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Start(ctx); err != nil {
			fatalf("watcher stopped: %v", err)
		}
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before syncing (default 500ms)")
	watchCmd.Flags().Duration("resync", 0, "Also sync on this interval (0 disables)")
	rootCmd.AddCommand(watchCmd)
}
