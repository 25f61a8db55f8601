package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sable-sec/intelrag/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("intelrag %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		// Version must work even with a broken configuration.
		fmt.Printf("Configuration: unavailable (%v)\n", err)
		return nil
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Provider:    %s\n", cfg.Provider)
	fmt.Printf("  Model:       %s (%d dimensions)\n", cfg.EmbedderModel, cfg.Dimension)
	fmt.Printf("  Backend:     %s\n", cfg.IndexBackend)
	if cfg.IndexBackend == config.BackendElastic {
		fmt.Printf("  Elastic:     %v (index %s)\n", cfg.Elastic.Addresses, cfg.Elastic.Index)
	} else {
		fmt.Printf("  Data dir:    %s\n", cfg.DataDir)
	}
	fmt.Printf("  Chunking:    %d chars max\n", cfg.ChunkSize)
	fmt.Printf("  Retrieval:   top_k=%d threshold=%.2f\n", cfg.TopK, cfg.SimilarityThreshold)

	if cfg.Provider == config.ProviderGemini {
		key := os.Getenv("GEMINI_API_KEY")
		if key != "" && len(key) > 8 {
			fmt.Printf("  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
		} else {
			fmt.Println("  GEMINI_API_KEY: not set")
		}
	}
	return nil
}
