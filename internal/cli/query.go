package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"quizrag/internal/adapter/index"
	"quizrag/internal/adapter/store"
	"quizrag/internal/usecase"
)

var (
	queryText    string
	queryTopK    int
	queryJSON    bool
	queryMock    bool
	queryContext bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Inspect retrieval for a query",
	Long: `Embed a query, search the index and print the matching chunks with
their distances. Useful for tuning the distance threshold and checking
what context a question would receive.

Examples:
  quizrag query -q "thủ đô của Việt Nam"
  quizrag query -q "boiling point" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryMock, "mock", false, "use deterministic offline embeddings")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "also print the assembled context")
	queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	ID       uint64  `json:"id"`
	Distance float64 `json:"distance"`
	DocID    string  `json:"doc_id"`
	Domain   string  `json:"domain"`
	Text     string  `json:"text"`
}

func runQuery(cmd *cobra.Command, args []string) error {
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
	if err == nil {
		err = idx.VerifyCount(count)
	}
	if err != nil {
		return fmt.Errorf("index artifacts are inconsistent, rebuild with 'quizrag build': %w", err)
	}

	embedder, err := newEmbedder(cfg, queryMock)
	if err != nil {
		return err
	}

	retriever := usecase.NewSemanticRetriever(embedder, idx, meta, usecase.RetrieverOptions{
		DistanceThreshold: cfg.Index.DistanceThreshold,
		SnippetLength:     cfg.Index.SnippetLength,
		MaxContextLength:  cfg.Index.MaxContextLength,
	})

	topK := cfg.Index.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	hits, err := retriever.TopChunks(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var out []queryResult
	for _, hit := range hits {
		out = append(out, queryResult{
			ID:       hit.Chunk.ID,
			Distance: hit.Distance,
			DocID:    hit.Chunk.DocID,
			Domain:   hit.Chunk.Domain,
			Text:     hit.Chunk.Text,
		})
	}

	if queryJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(out) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(out), queryText)
	for i, r := range out {
		marker := ""
		if cfg.Index.DistanceThreshold > 0 && r.Distance >= cfg.Index.DistanceThreshold {
			marker = " (past threshold)"
		}
		fmt.Printf("--- [%d] %s [%s] (distance: %.3f)%s ---\n", i+1, r.DocID, r.Domain, r.Distance, marker)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	if queryContext {
		context, err := retriever.Retrieve(cmd.Context(), queryText, topK)
		if err != nil {
			return fmt.Errorf("failed to assemble context: %w", err)
		}
		fmt.Println("Assembled context:")
		fmt.Println(context)
	}
	return nil
}
