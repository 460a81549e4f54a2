package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/store"
	"github.com/courseshelf/shelf/internal/ui"
)

var notesCmd = &cobra.Command{
	Use:     "notes",
	GroupID: "library",
	Short:   "Write and list notes",
}

var notesAddCmd = &cobra.Command{
	Use:   "add <course-id> <text...>",
	Short: "Add a note to a course, chapter or subchapter",
	Example: `  shelf notes add go101 "channels close from the sender side"
  shelf notes add go101 --chapter concurrency --title "Select" "default makes it non-blocking"`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		chapterID, _ := cmd.Flags().GetString("chapter")
		subchapterID, _ := cmd.Flags().GetString("subchapter")
		title, _ := cmd.Flags().GetString("title")
		ctx := context.Background()

		st := openStore(ctx)
		defer st.Close()

		note, err := st.CreateNote(ctx, store.NewNote{
			CourseID:     args[0],
			ChapterID:    chapterID,
			SubchapterID: subchapterID,
			Title:        title,
			Content:      strings.Join(args[1:], " "),
		})
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Added note %s\n", ui.RenderPass("✓"), note.ID)
		if note.Orphaned {
			fmt.Printf("   %s its target is not in the library\n", ui.RenderWarn("⚠"))
		}
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recently updated first",
	Run: func(cmd *cobra.Command, args []string) {
		courseID, _ := cmd.Flags().GetString("course")
		chapterID, _ := cmd.Flags().GetString("chapter")
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		from, err := parseSince(since, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		st := openStore(ctx)
		defer st.Close()

		notes, err := st.ListNotes(ctx, store.NoteFilter{CourseID: courseID, ChapterID: chapterID, Since: from, Limit: limit})
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			if notes == nil {
				notes = []*store.Note{}
			}
			printJSON(notes)
			return
		}
		if len(notes) == 0 {
			fmt.Println(ui.RenderMuted("No notes"))
			return
		}
		for _, n := range notes {
			target := n.CourseID
			if n.ChapterID != "" {
				target = store.ProgressKey(n.CourseID, n.ChapterID, n.SubchapterID)
			}
			if n.Orphaned {
				target += " " + ui.RenderWarn("(orphaned)")
			}
			fmt.Printf("%s %s %s\n", ui.RenderBold(n.ID), target, ui.RenderMuted(formatTime(n.UpdatedAt)))
			if n.Title != "" {
				fmt.Printf("   %s\n", ui.RenderBold(n.Title))
			}
			fmt.Printf("   %s\n\n", n.Content)
		}
	},
}

var notesRmCmd = &cobra.Command{
	Use:   "rm <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := openExistingStore()
		defer st.Close()

		err := st.DeleteNote(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			fatalf("note %s not found", args[0])
		}
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted note %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	notesAddCmd.Flags().String("chapter", "", "Attach to this chapter")
	notesAddCmd.Flags().String("subchapter", "", "Attach to this subchapter (needs --chapter)")
	notesAddCmd.Flags().String("title", "", "Note title")

	notesListCmd.Flags().String("course", "", "Only this course")
	notesListCmd.Flags().String("chapter", "", "Only this chapter")
	notesListCmd.Flags().String("since", "", `Only notes updated since ("48h", "2025-01-31", "3 days ago")`)
	notesListCmd.Flags().Int("limit", 0, "Show at most this many notes")
	notesListCmd.Flags().Bool("json", false, "Output as JSON")

	notesCmd.AddCommand(notesAddCmd)
	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesRmCmd)
	rootCmd.AddCommand(notesCmd)
}
