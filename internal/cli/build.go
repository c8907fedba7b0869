package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"quizrag/config"
	"quizrag/internal/adapter/cache"
	"quizrag/internal/adapter/chunker"
	"quizrag/internal/adapter/corpus"
	"quizrag/internal/adapter/embedding"
	"quizrag/internal/port"
	"quizrag/internal/usecase"
)

var buildMock bool

var buildCmd = &cobra.Command{
	Use:   "build [corpus-dir]",
	Short: "Build the index from a corpus",
	Long: `Chunk every corpus document, embed each chunk and write the index
artifacts into the .quizrag directory.

The corpus is a tree of JSONL files, one JSON object with a "text"
field per line. The parent directory name of each file becomes the
chunk's topic.

Examples:
  quizrag build ./corpus          # Build from a corpus directory
  quizrag build ./corpus --mock   # Deterministic offline embeddings`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildMock, "mock", false, "use deterministic offline embeddings")
}

func runBuild(cmd *cobra.Command, args []string) error {
	corpusDir := GetRootDir()
	if len(args) > 0 {
		var err error
		corpusDir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(corpusDir)
	if err != nil {
		return fmt.Errorf("corpus does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus is not a directory: %s", corpusDir)
	}

	cfg := GetConfig()

	if err := cfg.EnsureIndexDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	embedder, err := newEmbedder(cfg, buildMock)
	if err != nil {
		return err
	}

	buildUC := usecase.NewBuildUseCase(
		corpus.NewLoader(cfg.Corpus.Includes, cfg.Corpus.Excludes),
		chunker.NewSentenceChunker(cfg.Chunking.ChunkWords, cfg.Chunking.OverlapWords),
		embedder,
	)

	fmt.Printf("Building index from %s...\n", corpusDir)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := buildUC.Build(cmd.Context(), corpusDir,
		cfg.IndexPath(GetRootDir()), cfg.MetadataPath(GetRootDir()), progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Files loaded:      %d\n", result.Files)
	fmt.Printf("  Documents:         %d\n", result.Documents)
	if result.DocumentsSkipped > 0 {
		fmt.Printf("  Documents skipped: %d (no sentences)\n", result.DocumentsSkipped)
	}
	if result.SkippedLines > 0 {
		fmt.Printf("  Lines skipped:     %d (malformed)\n", result.SkippedLines)
	}
	fmt.Printf("  Chunks indexed:    %d\n", result.Chunks)
	if result.ChunksFailed > 0 {
		fmt.Printf("  Chunks failed:     %d (embedding errors)\n", result.ChunksFailed)
	}
	if usage, ok := embedder.(port.EmbedderUsage); ok {
		used, total := usage.Usage()
		fmt.Printf("  Embedding budget:  %d/%d\n", used, total)
	}

	fmt.Printf("\nIndex stored at: %s\n", cfg.IndexPath(GetRootDir()))
	return nil
}

// newEmbedder wires the configured embedding backend. The mock backend
// is deterministic and never calls out.
func newEmbedder(cfg *config.Config, mock bool) (port.Embedder, error) {
	if mock {
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	}

	embedCache := cache.NewEmbeddingCache(cfg.Embedding.CacheSize,
		time.Duration(cfg.Embedding.CacheTTLMinutes)*time.Minute)

	embedder, err := embedding.NewVNPTEmbedder(
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.AuthEnv,
		cfg.Embedding.TokenIDEnv,
		cfg.Embedding.TokenKeyEnv,
		embedding.Options{
			Dimension:   cfg.Embedding.Dimension,
			Budget:      cfg.Embedding.MonthlyBudget,
			MinInterval: config.Seconds(cfg.Embedding.MinInterval),
			Timeout:     config.Seconds(cfg.Embedding.Timeout),
			Cache:       embedCache,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
