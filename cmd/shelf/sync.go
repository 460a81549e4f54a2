package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/logging"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
	"github.com/courseshelf/shelf/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Import new and changed courses from the catalog",
	Long: `Fetch the catalog and bring the local library up to date.

Each course is classified by comparing its catalog version with the stored
one:
  new        not stored yet; imported
  changed    version differs; content deleted and re-imported
  unchanged  same version, or the catalog gives no version; skipped

Courses missing from the catalog are kept. Reading progress and notes are
never modified. A course that fails to import is rolled back and reported;
the rest of the sync continues.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st := openStore(ctx)
		defer st.Close()

		engine := shelfsync.New(requireReader(), st, logging.New("sync"))

		if !jsonOutput {
			fmt.Printf("%s Syncing catalog into %s...\n", ui.RenderAccent("🔄"), cfg.DBPath)
		}
		report := engine.Sync(ctx)

		if jsonOutput {
			printJSON(report)
		} else {
			printReport(report)
		}

		if errors.Is(report.Err(), catalog.ErrCatalogUnavailable) || len(report.Failures) > 0 {
			_ = st.Close()
			os.Exit(1)
		}
	},
}

func printReport(report *shelfsync.Report) {
	if err := report.Err(); errors.Is(err, catalog.ErrCatalogUnavailable) {
		fmt.Fprintf(os.Stderr, "%s Catalog unavailable: %s\n", ui.RenderFail("✗"), report.Error)
		return
	}

	fmt.Printf("%s Sync complete in %dms\n", ui.RenderPass("✓"), report.DurationMs)
	fmt.Printf("   New:       %d\n", report.NewCoursesImported)
	fmt.Printf("   Updated:   %d\n", report.CoursesUpdated)
	fmt.Printf("   Unchanged: %d\n", report.CoursesSkipped)

	for _, u := range report.Updates {
		fmt.Printf("   %s %s: %s -> %s (%s)\n", ui.RenderAccent("↑"), u.CourseID, u.From, u.To, u.Direction)
	}
	for _, f := range report.Failures {
		fmt.Printf("   %s %s: %s\n", ui.RenderFail("✗"), f.CourseID, f.Error)
	}
}

func init() {
	syncCmd.Flags().Bool("json", false, "Output the sync report as JSON")
	rootCmd.AddCommand(syncCmd)
}
