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
	"github.com/courseshelf/shelf/internal/server"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
	"github.com/courseshelf/shelf/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Serve the library over HTTP with a live websocket feed",
	Long: `Start the HTTP API for the local library.

Endpoints:
  GET    /health
  GET    /ws                                  live feed (sync_status, store_change, stats)
  GET    /api/courses/available               the configured catalog, as a JSON array
  GET    /api/sync/status
  POST   /api/sync                            409 while a sync is running
  GET    /api/courses
  GET    /api/courses/{id}                    course with table of contents
  DELETE /api/courses/{id}                    remove a course with its progress and notes
  GET    /api/courses/{id}/chapters/{chapter}
  GET    /api/courses/{id}/progress
  GET    /api/courses/{id}/notes
  PUT    /api/progress
  POST   /api/notes
  PUT    /api/notes/{id}
  DELETE /api/notes/{id}

With --watch and a content directory, the library re-syncs whenever course
files change.

Examples:
  shelf serve --content ./courses --watch
  shelf serve --catalog-url https://courses.example.com --addr :9000`,
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch")
		syncOnStart, _ := cmd.Flags().GetBool("sync")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st := openStore(ctx)
		defer st.Close()

		reader := newReader()
		deps := server.Deps{Store: st, Catalog: reader}
		var engine *shelfsync.Engine
		if reader != nil {
			engine = shelfsync.New(reader, st, logging.New("sync"))
			deps.Engine = engine
		}
		if watch && cfg.ContentDir == "" {
			fatalf("--watch needs a content directory (--content)")
		}

		srv := server.NewServer(&server.Config{
			Addr:           cfg.ListenAddr,
			RequestTimeout: cfg.HTTPTimeout * 2,
			Logger:         logging.New("server"),
		}, deps)
		detach := server.NewHandler(srv, nil).Attach()
		defer detach()

		if err := srv.Start(); err != nil {
			fatalf("failed to start server: %v", err)
		}

		addr := srv.GetAddr()
		fmt.Printf("%s Serving %s on http://%s\n", ui.RenderAccent("🚀"), cfg.DBPath, addr)
		fmt.Printf("   WebSocket: ws://%s/ws\n", addr)
		if reader == nil {
			fmt.Printf("   %s No catalog configured; sync endpoints are disabled\n", ui.RenderWarn("⚠"))
		}

		var d *daemon.Daemon
		daemonDone := make(chan error, 1)
		switch {
		case watch:
			var err error
			d, err = daemon.NewWithConfig(engine, cfg.ContentDir, &daemon.Config{
				DebounceInterval: cfg.WatchDebounce,
				Logger:           logging.New("daemon"),
			})
			if err != nil {
				fatalf("creating watcher: %v", err)
			}
			fmt.Printf("   Watching: %s\n", cfg.ContentDir)
			go func() { daemonDone <- d.Start(ctx) }()
		case engine != nil && syncOnStart:
			go func() {
				report := engine.Sync(ctx)
				logging.New("sync").Printf("Startup sync: %s", report)
			}()
		}

		fmt.Printf("\nPress Ctrl+C to stop\n\n")
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if d != nil {
			select {
			case err := <-daemonDone:
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error stopping watcher: %v\n", err)
				}
			case <-time.After(5 * time.Second):
				fmt.Fprintf(os.Stderr, "Warning: watcher did not stop in time\n")
			}
		}
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		fmt.Println("Server stopped")
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on (default 127.0.0.1:8080)")
	serveCmd.Flags().Bool("watch", false, "Re-sync when files in the content directory change")
	serveCmd.Flags().Bool("sync", true, "Run one sync at startup when not watching")
	rootCmd.AddCommand(serveCmd)
}
