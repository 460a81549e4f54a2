package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/store"
	"github.com/courseshelf/shelf/internal/ui"
)

var progressCmd = &cobra.Command{
	Use:     "progress",
	GroupID: "library",
	Short:   "Record and list reading progress",
}

var progressMarkCmd = &cobra.Command{
	Use:   "mark <course-id> <chapter-id> [subchapter-id]",
	Short: "Mark a chapter or subchapter as read",
	Long: `Mark a chapter or subchapter as completed and update its last-read time.

Ids are the catalog ids (e.g. "intro"), not the composite row ids. The
target does not have to exist; progress for content that is not in the
library is kept and listed as orphaned.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		incomplete, _ := cmd.Flags().GetBool("incomplete")
		ctx := context.Background()

		st := openStore(ctx)
		defer st.Close()

		subchapterID := ""
		if len(args) == 3 {
			subchapterID = args[2]
		}

		p, err := st.MarkProgress(ctx, args[0], args[1], subchapterID, !incomplete)
		if err != nil {
			fatalf("%v", err)
		}

		state := "completed"
		if !p.Completed {
			state = "not completed"
		}
		fmt.Printf("%s %s marked %s\n", ui.RenderPass("✓"), p.ID, state)
		if p.Orphaned {
			fmt.Printf("   %s %s is not in the library\n", ui.RenderWarn("⚠"), p.ID)
		}
	},
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List progress records, most recently read first",
	Run: func(cmd *cobra.Command, args []string) {
		courseID, _ := cmd.Flags().GetString("course")
		since, _ := cmd.Flags().GetString("since")
		orphaned, _ := cmd.Flags().GetBool("orphaned")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		from, err := parseSince(since, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		st := openStore(ctx)
		defer st.Close()

		list, err := st.ListProgress(ctx, store.ProgressFilter{CourseID: courseID, Since: from, OrphanedOnly: orphaned})
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			if list == nil {
				list = []*store.Progress{}
			}
			printJSON(list)
			return
		}
		if len(list) == 0 {
			fmt.Println(ui.RenderMuted("No progress recorded"))
			return
		}
		for _, p := range list {
			suffix := ""
			if p.Orphaned {
				suffix = " " + ui.RenderWarn("(orphaned)")
			}
			fmt.Printf("%s %-32s %s%s\n", mark(p.Completed), p.ID, ui.RenderMuted(formatTime(p.LastRead)), suffix)
		}
	},
}

func init() {
	progressMarkCmd.Flags().Bool("incomplete", false, "Record the item as not completed")

	progressListCmd.Flags().String("course", "", "Only this course")
	progressListCmd.Flags().String("since", "", `Only records read since ("48h", "2025-01-31", "3 days ago")`)
	progressListCmd.Flags().Bool("orphaned", false, "Only records whose chapter is no longer in the library")
	progressListCmd.Flags().Bool("json", false, "Output as JSON")

	progressCmd.AddCommand(progressMarkCmd)
	progressCmd.AddCommand(progressListCmd)
	rootCmd.AddCommand(progressCmd)
}
