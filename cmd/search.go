package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sable-sec/intelrag/internal/rag"
)

var (
	flagTopK    int
	flagFilters []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index and print ranked results",
	Long: `Search embeds the query, retrieves candidate chunks and ranks them by
a fusion of vector similarity, source authority and recency.

Filters restrict candidates before ranking, as field=value pairs where the
value may be a comma-separated list (matching any listed value):

  intelrag search "credential dumping" --filter source_type=cti
  intelrag search "lateral movement" --filter techniques=T1021,T1550

Filterable fields: document_id, source_type, document_type, frameworks,
techniques, cves.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "number of results (0 uses the configured default)")
	searchCmd.Flags().StringArrayVarP(&flagFilters, "filter", "f", nil, "metadata filter as field=value[,value...] (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts, err := searchOptions(flagTopK, flagFilters)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	system, _, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close() //nolint:errcheck

	query := strings.Join(args, " ")
	res, err := system.Search(ctx, query, opts...)
	if err != nil {
		return err
	}

	if res.Degraded {
		fmt.Println("WARNING: embedding backend unavailable, results are keyword-only")
	}
	if len(res.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for _, r := range res.Results {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", r.Rank, r.Combined,
			r.Chunk.Metadata.DocumentTitle, r.Chunk.Metadata.Source)
		fmt.Printf("    similarity=%.3f authority=%.3f temporal=%.3f chunk=%s\n",
			r.Similarity, r.Authority, r.Temporal, r.Chunk.ID)
		if len(r.Chunk.Metadata.Techniques) > 0 {
			fmt.Printf("    techniques: %s\n", strings.Join(r.Chunk.Metadata.Techniques, ", "))
		}
		fmt.Printf("    %s\n\n", excerpt(r.Chunk.Content, 200))
	}
	return nil
}

// searchOptions converts the flag values into search options. Filter syntax
// is field=value with an optional comma-separated value list.
func searchOptions(topK int, filters []string) ([]rag.SearchOption, error) {
	var opts []rag.SearchOption
	if topK > 0 {
		opts = append(opts, rag.WithTopK(topK))
	}
	for _, f := range filters {
		field, raw, ok := strings.Cut(f, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" || strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("invalid filter %q, expected field=value", f)
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("invalid filter %q, expected field=value", f)
		}
		opts = append(opts, rag.WithFilter(field, values...))
	}
	return opts, nil
}

// excerpt returns the first n characters of a single-line rendering of s.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
