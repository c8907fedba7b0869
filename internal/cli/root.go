package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"quizrag/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "quizrag",
	Short: "Retrieval-augmented multiple-choice question answering",
	Long: `quizrag builds a vector index over a text corpus and answers
multiple-choice quizzes with a remote LLM, grounding each question in
the most relevant corpus chunks.

Example usage:
  quizrag build ./corpus               # Chunk, embed and index a corpus
  quizrag run -i questions.json        # Answer a batch of questions
  quizrag query -q "thủ đô Việt Nam"   # Inspect retrieval for a query
  quizrag stats                        # Show index artifact stats`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./quizrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
