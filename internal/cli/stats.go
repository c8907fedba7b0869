package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"quizrag/internal/adapter/index"
	"quizrag/internal/adapter/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index artifact statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	idx, err := index.Load(cfg.IndexPath(GetRootDir()))
	if err != nil {
		return fmt.Errorf("no index found, run 'quizrag build' first: %w", err)
	}

	meta, err := store.NewMetadataStore(cfg.MetadataPath(GetRootDir()))
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer meta.Close()

	count, err := meta.Count()
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	fmt.Printf("Index: %s\n", cfg.IndexPath(GetRootDir()))
	fmt.Printf("  Vectors:   %d\n", idx.Len())
	fmt.Printf("  Dimension: %d\n", idx.Dimension())
	fmt.Printf("Metadata: %s\n", cfg.MetadataPath(GetRootDir()))
	fmt.Printf("  Chunks:    %d\n", count)

	if model, dim, err := meta.EmbeddingInfo(); err == nil {
		fmt.Printf("Embedding model: %s (dimension %d)\n", model, dim)
	}

	if err := idx.VerifyCount(count); err != nil {
		fmt.Printf("\nWarning: %v\n", err)
		fmt.Println("Rebuild the index with 'quizrag build'.")
	} else {
		fmt.Println("\nArtifacts are consistent.")
	}
	return nil
}
