// Package cmd implements the intelrag command line interface.
//
// All application logic for the CLI lives here, leaving main.go as a minimal
// entry point. Each subcommand builds the retrieval system through newSystem,
// which wires configuration, embedding provider and index backend together.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	flagDebug    bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "intelrag",
	Short: "Local-first retrieval engine for security research documents",
	Long: `intelrag ingests security research documents (markdown, HTML, PDF and
plain text), splits them into chunks along semantic boundaries, embeds them
and serves scored retrieval with budget-constrained context assembly.

Documents carry security metadata extracted at ingestion time: MITRE ATT&CK
technique IDs, CVE identifiers and framework references all participate in
result ranking and can be used as search filters.

Run 'intelrag ingest <path>' to index a file or directory, then
'intelrag search <query>' or 'intelrag context <query>' to retrieve.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "write logs as JSON")
}

// logLevel maps the persistent flags to a slog level.
func logLevel() slog.Level {
	if flagDebug {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
