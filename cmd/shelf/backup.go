package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courseshelf/shelf/internal/backup"
	"github.com/courseshelf/shelf/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	GroupID: "maint",
	Short:   "Export or import progress and notes",
	Long: `Back up the learner's own data as JSON Lines.

Only progress and notes are written; course content comes back with the
next sync. Records keep their ids, so importing the same file twice does
not create duplicates.`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write progress and notes to a JSONL file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := openExistingStore()
		defer st.Close()

		result, err := backup.Export(ctx, st, args[0])
		if err != nil {
			fatalf("export failed: %v", err)
		}
		fmt.Printf("%s Exported %d progress records and %d notes to %s\n",
			ui.RenderPass("✓"), result.Progress, result.Notes, args[0])
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore progress and notes from a JSONL file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		replace, _ := cmd.Flags().GetBool("replace")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")
		ctx := context.Background()

		if replace && !dryRun {
			ok, err := ui.Confirm("Replace all progress and notes?",
				"Existing progress and notes are deleted before the import.", yes)
			if err != nil {
				fatalf("%v", err)
			}
			if !ok {
				fmt.Println("Cancelled")
				return
			}
		}

		st := openExistingStore()
		defer st.Close()

		result, err := backup.Import(ctx, st, args[0], backup.ImportOptions{Replace: replace, DryRun: dryRun})
		if err != nil {
			fatalf("import failed: %v", err)
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d progress records and %d notes\n", ui.RenderPass("✓"), verb, result.Progress, result.Notes)
		if result.Removed > 0 {
			fmt.Printf("   Replaced %d existing records\n", result.Removed)
		}
		for _, e := range result.Errors {
			fmt.Printf("   %s %s\n", ui.RenderFail("✗"), e)
		}
	},
}

func init() {
	backupImportCmd.Flags().Bool("replace", false, "Delete existing progress and notes first")
	backupImportCmd.Flags().Bool("dry-run", false, "Validate and count without writing")
	backupImportCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
	rootCmd.AddCommand(backupCmd)
}
