package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/loadtest"
	"github.com/courseshelf/shelf/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "maint",
	Short:   "Measure read latency while a sync imports a generated catalog",
	Long: `Generate a synthetic catalog and import it into a scratch database
while concurrent readers list courses and chapters.

Two passes run: the first imports every course, the second bumps every
version so each course is deleted and re-imported under the readers.
Readers must never see an error. Exits 1 if any reader failed.

The configured library is not touched.

Examples:
  shelf loadtest
  shelf loadtest --courses 100 --chapters 20 --readers 32
  shelf loadtest --json`,
	Run: runLoadtest,
}

func init() {
	defaults := loadtest.DefaultCatalogSpec()
	loadtestCmd.Flags().Int("courses", defaults.Courses, "Number of generated courses")
	loadtestCmd.Flags().Int("chapters", defaults.Chapters, "Chapters per course")
	loadtestCmd.Flags().Int("subchapters", defaults.Subchapters, "Subchapters per chapter")
	loadtestCmd.Flags().Int("body", defaults.BodyBytes, "Bytes of content per chapter and subchapter")
	loadtestCmd.Flags().Int("readers", 16, "Number of concurrent readers")
	loadtestCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(loadtestCmd)
}

// loadtestPass is one pass in the --json output.
type loadtestPass struct {
	Name     string   `json:"name"`
	Queries  int      `json:"queries"`
	Errors   int      `json:"errors"`
	MinMs    float64  `json:"minMs"`
	P50Ms    float64  `json:"p50Ms"`
	MeanMs   float64  `json:"meanMs"`
	P95Ms    float64  `json:"p95Ms"`
	P99Ms    float64  `json:"p99Ms"`
	MaxMs    float64  `json:"maxMs"`
	SyncMs   int64    `json:"syncMs"`
	Failures []string `json:"failures,omitempty"`
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
}

func runLoadtest(cmd *cobra.Command, args []string) {
	spec := loadtest.DefaultCatalogSpec()
	spec.Courses, _ = cmd.Flags().GetInt("courses")
	spec.Chapters, _ = cmd.Flags().GetInt("chapters")
	spec.Subchapters, _ = cmd.Flags().GetInt("subchapters")
	spec.BodyBytes, _ = cmd.Flags().GetInt("body")
	readers, _ := cmd.Flags().GetInt("readers")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if spec.Courses <= 0 || spec.Chapters <= 0 {
		fatalf("--courses and --chapters must be positive")
	}
	if spec.Subchapters < 0 || spec.BodyBytes < 0 {
		fatalf("--subchapters and --body must not be negative")
	}
	if readers <= 0 {
		fatalf("--readers must be positive")
	}

	dir, err := os.MkdirTemp("", "shelf-loadtest-")
	if err != nil {
		fatalf("%v", err)
	}
	defer os.RemoveAll(dir)

	h, err := loadtest.NewHarness(filepath.Join(dir, "load.db"), spec)
	if err != nil {
		fatalf("%v", err)
	}
	defer h.Close()

	if !jsonOutput {
		fmt.Printf("%s Load test: %d courses x %d chapters x %d subchapters, %d readers\n\n",
			ui.RenderAccent("⏱"), spec.Courses, spec.Chapters, spec.Subchapters, readers)
	}

	ctx := context.Background()
	var passes []loadtestPass
	failed := false

	for _, name := range []string{"import", "update"} {
		if name == "update" {
			spec.Version = "2.0"
			h.SetCatalog(loadtest.GenerateCatalog(spec))
		}

		result, err := h.RunDuringSync(ctx, readers)
		if err != nil {
			_ = h.Close()
			fatalf("%s pass: %v", name, err)
		}
		if err := result.Report.Err(); err != nil {
			_ = h.Close()
			fatalf("%s pass: sync failed: %v", name, err)
		}

		pass := loadtestPass{
			Name:     name,
			Queries:  result.Stats.TotalQueries,
			Errors:   result.Stats.Errors,
			MinMs:    ms(result.Stats.Min),
			P50Ms:    ms(result.Stats.P50),
			MeanMs:   ms(result.Stats.Mean),
			P95Ms:    ms(result.Stats.P95),
			P99Ms:    ms(result.Stats.P99),
			MaxMs:    ms(result.Stats.Max),
			SyncMs:   result.Report.DurationMs,
			Imported: result.Report.NewCoursesImported,
			Updated:  result.Report.CoursesUpdated,
		}
		for _, f := range result.Failures {
			pass.Failures = append(pass.Failures, f.Error())
		}
		if len(pass.Failures) > 0 {
			failed = true
		}
		passes = append(passes, pass)

		if !jsonOutput {
			fmt.Printf("%s Pass %q: sync took %dms (%d imported, %d updated)\n",
				ui.RenderBold("▸"), name, pass.SyncMs, pass.Imported, pass.Updated)
			result.Stats.PrintStats(os.Stdout)
			for _, f := range pass.Failures {
				fmt.Printf("  %s %s\n", ui.RenderFail("✗"), f)
			}
			fmt.Println()
		}
	}

	if jsonOutput {
		printJSON(passes)
	}
	if failed {
		_ = h.Close()
		_ = os.RemoveAll(dir)
		fmt.Fprintf(os.Stderr, "Error: readers failed during sync\n")
		os.Exit(1)
	}
	if !jsonOutput {
		fmt.Printf("%s No reader errors\n", ui.RenderPass("✓"))
	}
}
