package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/store"
	"github.com/courseshelf/shelf/internal/ui"
)

var coursesCmd = &cobra.Command{
	Use:     "courses",
	GroupID: "library",
	Short:   "List courses in the local library",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		st := openStore(ctx)
		defer st.Close()

		courses, err := st.ListCourses(ctx)
		if err != nil {
			fatalf("listing courses: %v", err)
		}

		if jsonOutput {
			if courses == nil {
				courses = []*store.Course{}
			}
			printJSON(courses)
			return
		}

		if len(courses) == 0 {
			fmt.Println(ui.RenderMuted("No courses. Run 'shelf sync' to import the catalog."))
			return
		}
		for _, c := range courses {
			version := c.Version
			if version == "" {
				version = "unversioned"
			}
			fmt.Printf("%-24s %s %s\n", ui.RenderBold(c.ID), c.Title, ui.RenderMuted("("+version+")"))
		}
	},
}

var courseCmd = &cobra.Command{
	Use:     "course",
	GroupID: "library",
	Short:   "Inspect or remove a single course",
}

var courseShowCmd = &cobra.Command{
	Use:   "show <course-id>",
	Short: "Show a course's table of contents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := openStore(ctx)
		defer st.Close()

		courseID := args[0]
		course, err := st.GetCourse(ctx, courseID)
		if errors.Is(err, store.ErrNotFound) {
			fatalf("course %s not found", courseID)
		}
		if err != nil {
			fatalf("%v", err)
		}

		chapters, err := st.ListChapters(ctx, courseID)
		if err != nil {
			fatalf("%v", err)
		}
		progress, err := st.ListProgress(ctx, store.ProgressFilter{CourseID: courseID})
		if err != nil {
			fatalf("%v", err)
		}
		done := make(map[string]bool, len(progress))
		for _, p := range progress {
			if p.Completed {
				done[p.ID] = true
			}
		}

		fmt.Printf("\n%s %s\n", ui.RenderAccent("📘"), ui.RenderBold(course.Title))
		if course.Description != "" {
			fmt.Printf("   %s\n", course.Description)
		}
		if course.Version != "" {
			fmt.Printf("   Version %s, imported %s\n", course.Version, formatTime(course.ImportedAt))
		}
		fmt.Println()

		for _, ch := range chapters {
			fmt.Printf("   %s %s %s\n", mark(done[ch.ID]), ch.Title, ui.RenderMuted(ch.ChapterID))
			subs, err := st.ListSubchapters(ctx, courseID, ch.ChapterID)
			if err != nil {
				fatalf("%v", err)
			}
			for _, sub := range subs {
				fmt.Printf("      %s %s %s\n", mark(done[sub.ID]), sub.Title, ui.RenderMuted(sub.SubchapterID))
			}
		}
		fmt.Println()
	},
}

func mark(done bool) string {
	if done {
		return ui.RenderPass("✓")
	}
	return ui.RenderMuted("·")
}

var courseRemoveCmd = &cobra.Command{
	Use:   "remove <course-id>",
	Short: "Remove a course together with its progress and notes",
	Long: `Remove a course from the local library.

This deletes the course content AND the reading progress and notes recorded
for it. A sync never does this; a course that leaves the catalog is kept
until it is removed here. If the course is still in the catalog, the next
sync imports it again (without the old progress and notes).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		ctx := context.Background()
		courseID := args[0]

		st := openExistingStore()
		defer st.Close()

		if _, err := st.GetCourse(ctx, courseID); errors.Is(err, store.ErrNotFound) {
			fatalf("course %s not found", courseID)
		}
		progress, _ := st.ListProgress(ctx, store.ProgressFilter{CourseID: courseID})
		notes, _ := st.ListNotes(ctx, store.NoteFilter{CourseID: courseID})

		ok, err := ui.Confirm(
			fmt.Sprintf("Remove course %s?", courseID),
			fmt.Sprintf("%d progress records and %d notes will be deleted.", len(progress), len(notes)),
			yes)
		if err != nil {
			fatalf("%v", err)
		}
		if !ok {
			fmt.Println("Cancelled")
			return
		}

		removal, err := st.RemoveCourse(ctx, courseID)
		if err != nil {
			fatalf("removing course: %v", err)
		}

		var parts []string
		for _, c := range []struct {
			n    int
			name string
		}{
			{removal.Chapters, "chapters"},
			{removal.Subchapters, "subchapters"},
			{removal.Progress, "progress records"},
			{removal.Notes, "notes"},
		} {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
		fmt.Fprintf(os.Stdout, "%s Removed %s (%s)\n", ui.RenderPass("✓"), courseID, strings.Join(parts, ", "))
	},
}

func init() {
	coursesCmd.Flags().Bool("json", false, "Output as JSON")
	courseRemoveCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	courseCmd.AddCommand(courseShowCmd)
	courseCmd.AddCommand(courseRemoveCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(courseCmd)
}
