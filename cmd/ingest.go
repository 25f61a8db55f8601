package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Index a document file or a directory of documents",
	Long: `Ingest normalizes documents (markdown, HTML, PDF, plain text), splits
them into chunks, embeds them and writes them to the index.

Given a directory, ingest walks it recursively with a worker pool, honoring
a .gitignore at the directory root. Re-ingesting an unchanged document is
idempotent: its chunks are replaced, never duplicated.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	system, _, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close() //nolint:errcheck

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		written, err := system.AddDocumentFromFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %s (%d chunks)\n", path, written)
		return nil
	}

	report, err := system.AddDirectory(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s finished in %s\n", report.BatchID, report.Duration.Round(time.Millisecond))
	fmt.Printf("  Files found: %d\n", report.FilesFound)
	fmt.Printf("  Succeeded:   %d\n", report.Succeeded)
	fmt.Printf("  Skipped:     %d\n", report.Skipped)
	fmt.Printf("  Errors:      %d\n", report.Errors)
	fmt.Printf("  Chunks:      %d\n", report.ChunksAdded)
	for path, reason := range report.FailedFiles {
		fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", path, reason)
	}
	return nil
}
