package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document and all of its chunks from the index",
	Long: `Delete removes every chunk belonging to the given document ID. Document
IDs are derived deterministically from the document's source and content and
prefix the chunk IDs printed by 'intelrag search'. Deleting an absent
document is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	system, _, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close() //nolint:errcheck

	if err := system.DeleteDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted document %s\n", args[0])
	return nil
}
