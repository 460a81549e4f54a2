package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/store"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
	"github.com/courseshelf/shelf/internal/ui"
)

// libraryStatus is the --json output of shelf status.
type libraryStatus struct {
	Database      string            `json:"database"`
	Driver        string            `json:"driver"`
	SizeBytes     int64             `json:"sizeBytes"`
	SchemaVersion int               `json:"schemaVersion"`
	Stats         *store.Stats      `json:"stats"`
	Integrity     *store.Integrity  `json:"integrity"`
	Server        *shelfsync.Status `json:"server,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "maint",
	Short:   "Show library status",
	Long: `Display the state of the local library.

Shows:
  - Database location, driver, size and schema version
  - Number of courses, chapters, progress records and notes
  - Integrity: content rows without a course, and orphaned progress/notes
  - The sync status of a running 'shelf serve', if one answers on --addr`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			fmt.Printf("\n%s Library not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'shelf sync' to create it\n\n")
			return
		}

		st := openExistingStore()
		defer st.Close()

		status := libraryStatus{Database: cfg.DBPath, Driver: st.Driver()}
		if info, err := os.Stat(cfg.DBPath); err == nil {
			status.SizeBytes = info.Size()
		}

		var err error
		if status.SchemaVersion, err = st.SchemaVersion(ctx); err != nil {
			fatalf("reading schema version: %v", err)
		}
		if status.Stats, err = st.Stats(ctx); err != nil {
			fatalf("reading stats: %v", err)
		}
		if status.Integrity, err = st.CheckIntegrity(ctx); err != nil {
			fatalf("checking integrity: %v", err)
		}
		status.Server = fetchServerStatus(cfg.ListenAddr)

		if jsonOutput {
			printJSON(status)
			return
		}

		fmt.Printf("\n%s Library Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("   Database: %s (%s, %.1f KB)\n", status.Database, status.Driver, float64(status.SizeBytes)/1024)
		fmt.Printf("   Schema:   v%d\n", status.SchemaVersion)
		fmt.Printf("   Courses:  %d (%d parts, %d chapters, %d subchapters)\n",
			status.Stats.Courses, status.Stats.Parts, status.Stats.Chapters, status.Stats.Subchapters)
		fmt.Printf("   Progress: %d\n", status.Stats.Progress)
		fmt.Printf("   Notes:    %d\n", status.Stats.Notes)

		in := status.Integrity
		if in.OK() {
			fmt.Printf("   %s No dangling content\n", ui.RenderPass("✓"))
		} else {
			fmt.Printf("   %s Dangling rows: %d parts, %d chapters, %d subchapters\n",
				ui.RenderFail("✗"), in.DanglingParts, in.DanglingChapters, in.DanglingSubchapters)
		}
		if in.OrphanedProgress > 0 || in.OrphanedNotes > 0 {
			fmt.Printf("   %s Orphaned: %d progress, %d notes (their chapters left the catalog)\n",
				ui.RenderWarn("⚠"), in.OrphanedProgress, in.OrphanedNotes)
		}

		if s := status.Server; s != nil {
			fmt.Printf("\n   Server on %s: %s since %s\n", cfg.ListenAddr, s.State, formatTime(s.Since))
			if s.Report != nil {
				fmt.Printf("   Last sync: %s\n", s.Report)
			}
		} else {
			fmt.Printf("\n   %s\n", ui.RenderMuted("No server answering on "+cfg.ListenAddr))
		}
		fmt.Println()
	},
}

// fetchServerStatus asks a running server for its sync status. Any failure
// means no server.
func fetchServerStatus(addr string) *shelfsync.Status {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + addr + "/api/sync/status")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var envelope struct {
		Data shelfsync.Status `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil
	}
	return &envelope.Data
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output status as JSON")
	statusCmd.Flags().String("addr", "", "Address of a running 'shelf serve'")
	rootCmd.AddCommand(statusCmd)
}
