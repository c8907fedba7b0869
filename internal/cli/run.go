package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"quizrag/config"
	"quizrag/internal/adapter/index"
	"quizrag/internal/adapter/llm"
	"quizrag/internal/adapter/quota"
	"quizrag/internal/adapter/results"
	"quizrag/internal/adapter/store"
	"quizrag/internal/domain"
	"quizrag/internal/usecase"
)

var (
	runInput   string
	runAnswers string
	runTiming  string
	runNoRAG   bool
	runMock    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a batch of questions",
	Long: `Answer every question in the input file with the remote LLM,
grounding each one in retrieved corpus chunks when an index is
available. Answers are appended to the output CSV as they are
produced, and questions already present there are skipped, so an
interrupted run resumes where it left off.

Examples:
  quizrag run -i questions.json
  quizrag run -i questions.json --no-rag   # Skip retrieval entirely`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "questions JSON file (default from config)")
	runCmd.Flags().StringVar(&runAnswers, "answers", "", "answer CSV file (default from config)")
	runCmd.Flags().StringVar(&runTiming, "timing", "", "timing CSV file (default from config)")
	runCmd.Flags().BoolVar(&runNoRAG, "no-rag", false, "answer without retrieval")
	runCmd.Flags().BoolVar(&runMock, "mock", false, "use deterministic offline embeddings for retrieval")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	inputPath := cfg.Run.InputFile
	if runInput != "" {
		inputPath = runInput
	}
	answerPath := cfg.Run.AnswerFile
	if runAnswers != "" {
		answerPath = runAnswers
	}
	timingPath := cfg.Run.TimingFile
	if runTiming != "" {
		timingPath = runTiming
	}

	questions, err := loadQuestions(inputPath)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions in %s", inputPath)
	}

	useRAG := cfg.Run.UseRAG && !runNoRAG
	retriever, cleanup, err := openRetriever(cfg, useRAG, runMock)
	if err != nil {
		return err
	}
	defer cleanup()

	switch retriever.Capability() {
	case domain.RetrievalFull:
		fmt.Println("Retrieval: enabled")
	case domain.RetrievalDegraded:
		fmt.Println("Retrieval: degraded, answering without context")
	default:
		fmt.Println("Retrieval: disabled, answering without context")
	}

	chat, err := llm.NewClient(
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.AuthEnv,
		cfg.LLM.TokenIDEnv,
		cfg.LLM.TokenKeyEnv,
		llm.ClientOptions{
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			MaxTokens:   cfg.LLM.MaxTokens,
			MaxRetries:  cfg.LLM.MaxRetries,
			Timeout:     config.Seconds(cfg.LLM.Timeout),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}

	processed, err := results.Processed(answerPath)
	if err != nil {
		return fmt.Errorf("failed to read existing answers: %w", err)
	}
	if len(processed) > 0 {
		fmt.Printf("Resuming: %d questions already answered\n", len(processed))
	}

	writer, err := results.NewWriter(answerPath, timingPath)
	if err != nil {
		return fmt.Errorf("failed to open result files: %w", err)
	}
	defer writer.Close()

	qm := quota.New(cfg.Quota.MaxPerHour, cfg.Quota.MaxPerDay,
		config.Seconds(cfg.Quota.RequestDelay))

	predictUC := usecase.NewPredictUseCase(retriever, chat, qm, writer, usecase.PredictOptions{
		Processed: processed,
		Fallback:  cfg.LLM.FallbackAnswer,
		TopK:      cfg.Index.TopK,
	})

	bar := progressbar.NewOptions(len(questions),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Answering[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	result, err := predictUC.Predict(cmd.Context(), questions, func(done, total int) {
		bar.Set(done)
	})
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	stats := qm.Stats()
	fmt.Printf("\nBatch complete in %s:\n", result.Elapsed.Round(time.Second))
	fmt.Printf("  Answered:  %d\n", result.Processed)
	if result.Failed > 0 {
		fmt.Printf("  Fallbacks: %d\n", result.Failed)
	}
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:   %d (already answered)\n", result.Skipped)
	}
	fmt.Printf("  Quota:     %d/%d hourly, %d/%d daily\n",
		stats.Hourly, stats.MaxHourly, stats.Daily, stats.MaxDaily)
	if result.Aborted {
		fmt.Println("\nDaily quota exhausted. Re-run later to continue; answered questions are kept.")
	}

	fmt.Printf("\nAnswers stored at: %s\n", answerPath)
	return nil
}

// loadQuestions reads the batch input file.
func loadQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	return questions, nil
}

// openRetriever loads the index artifacts. A missing or inconsistent
// index yields an unavailable retriever rather than an error so the
// batch can proceed without context.
func openRetriever(cfg *config.Config, useRAG, mock bool) (*usecase.SemanticRetriever, func(), error) {
	noop := func() {}
	opts := usecase.RetrieverOptions{
		DistanceThreshold: cfg.Index.DistanceThreshold,
		SnippetLength:     cfg.Index.SnippetLength,
		MaxContextLength:  cfg.Index.MaxContextLength,
	}

	if !useRAG {
		return usecase.NewSemanticRetriever(nil, nil, nil, opts), noop, nil
	}

	idx, err := index.Load(cfg.IndexPath(GetRootDir()))
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			fmt.Println("No index found. Run 'quizrag build' to enable retrieval.")
			return usecase.NewSemanticRetriever(nil, nil, nil, opts), noop, nil
		}
		return nil, noop, fmt.Errorf("failed to load index: %w", err)
	}

	meta, err := store.NewMetadataStore(cfg.MetadataPath(GetRootDir()))
	if err != nil {
		fmt.Printf("Warning: failed to open metadata store: %v\n", err)
		return usecase.NewSemanticRetriever(nil, nil, nil, opts), noop, nil
	}
	cleanup := func() { meta.Close() }

	count, err := meta.Count()
	if err == nil {
		err = idx.VerifyCount(count)
	}
	if err != nil {
		fmt.Printf("Warning: index artifacts are inconsistent, retrieval disabled: %v\n", err)
		cleanup()
		return usecase.NewSemanticRetriever(nil, nil, nil, opts), noop, nil
	}

	embedder, err := newEmbedder(cfg, mock)
	if err != nil {
		// Missing embedding credentials leave a readable index that
		// cannot serve queries.
		fmt.Printf("Warning: %v, retrieval disabled\n", err)
		embedder = nil
	}

	return usecase.NewSemanticRetriever(embedder, idx, meta, opts), cleanup, nil
}
