package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index contents and backend health",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	system, cfg, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close() //nolint:errcheck

	stats, err := system.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backend:    %s\n", stats.Backend)
	fmt.Printf("State:      %s\n", stats.State)
	fmt.Printf("Documents:  %d\n", stats.Documents)
	fmt.Printf("Chunks:     %d\n", stats.Chunks)
	fmt.Printf("Dimension:  %d\n", stats.Dimension)
	fmt.Printf("Embedder:   %s (%s)\n", cfg.EmbedderModel, cfg.Provider)
	return nil
}
