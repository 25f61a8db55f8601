package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagMaxTokens int

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Assemble a generation-ready context within a token budget",
	Long: `Context searches the index and assembles the highest-ranked chunks into
a single attributed context string that fits the token budget, suitable for
pasting into an LLM prompt. Chunks are separated and each carries its source
and MITRE technique attribution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVar(&flagMaxTokens, "max-tokens", 0, "token budget (0 uses the configured default)")
	contextCmd.Flags().StringArrayVarP(&flagFilters, "filter", "f", nil, "metadata filter as field=value[,value...] (repeatable)")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	opts, err := searchOptions(0, flagFilters)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	system, cfg, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close() //nolint:errcheck

	budget := flagMaxTokens
	if budget <= 0 {
		budget = cfg.ContextTokens
	}

	out, err := system.ContextForQuery(ctx, strings.Join(args, " "), budget, opts...)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println("No relevant context found.")
		return nil
	}
	fmt.Println(out)
	return nil
}
