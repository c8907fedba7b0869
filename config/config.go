package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the quizrag pipeline.
// Durations are expressed in seconds so the YAML stays plain numbers.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	LLM       LLMConfig       `yaml:"llm"`
	Quota     QuotaConfig     `yaml:"quota"`
	Run       RunConfig       `yaml:"run"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig selects which corpus files the build step ingests.
type CorpusConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkingConfig holds sentence-aligned chunking parameters, in words.
type ChunkingConfig struct {
	ChunkWords   int `yaml:"chunk_words"`
	OverlapWords int `yaml:"overlap_words"`
}

// EmbeddingConfig holds the embedding API configuration.
type EmbeddingConfig struct {
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	AuthEnv         string  `yaml:"auth_env"`      // env var for the Authorization header
	TokenIDEnv      string  `yaml:"token_id_env"`  // env var for the Token-id header
	TokenKeyEnv     string  `yaml:"token_key_env"` // env var for the Token-key header
	Dimension       int     `yaml:"dimension"`
	MonthlyBudget   int     `yaml:"monthly_budget"`
	MinInterval     float64 `yaml:"min_interval"` // seconds between calls
	Timeout         float64 `yaml:"timeout"`      // seconds
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes"`
}

// IndexConfig holds index artifact paths and retrieval parameters.
type IndexConfig struct {
	Dir               string  `yaml:"dir"`
	IndexFile         string  `yaml:"index_file"`
	MetadataFile      string  `yaml:"metadata_file"`
	TopK              int     `yaml:"top_k"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
	MaxContextLength  int     `yaml:"max_context_length"`
	SnippetLength     int     `yaml:"snippet_length"`
}

// LLMConfig holds the chat completion API configuration.
type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	AuthEnv        string  `yaml:"auth_env"`
	TokenIDEnv     string  `yaml:"token_id_env"`
	TokenKeyEnv    string  `yaml:"token_key_env"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	MaxTokens      int     `yaml:"max_tokens"`
	Timeout        float64 `yaml:"timeout"` // seconds
	MaxRetries     int     `yaml:"max_retries"`
	FallbackAnswer string  `yaml:"fallback_answer"`
}

// QuotaConfig holds the remote-call budget. Windows are rolling: a
// request counts against the hourly budget for 3600s and the daily
// budget for 86400s from its own timestamp.
type QuotaConfig struct {
	MaxPerHour   int     `yaml:"max_per_hour"`
	MaxPerDay    int     `yaml:"max_per_day"`
	RequestDelay float64 `yaml:"request_delay"` // seconds between requests
}

// RunConfig holds batch input/output paths and the retrieval switch.
type RunConfig struct {
	InputFile  string `yaml:"input_file"`
	AnswerFile string `yaml:"answer_file"`
	TimingFile string `yaml:"timing_file"`
	UseRAG     bool   `yaml:"use_rag"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Includes: []string{"**/*.jsonl"},
			Excludes: []string{"**/.*/**"},
		},
		Chunking: ChunkingConfig{
			ChunkWords:   512,
			OverlapWords: 50,
		},
		Embedding: EmbeddingConfig{
			BaseURL:         "https://api.idg.vnpt.vn/data-service",
			Model:           "vnptai_hackathon_embedding",
			AuthEnv:         "QUIZRAG_EMBED_AUTH",
			TokenIDEnv:      "QUIZRAG_EMBED_TOKEN_ID",
			TokenKeyEnv:     "QUIZRAG_EMBED_TOKEN_KEY",
			Dimension:       1024,
			MonthlyBudget:   500,
			MinInterval:     0.12,
			Timeout:         30,
			CacheSize:       1000,
			CacheTTLMinutes: 60,
		},
		Index: IndexConfig{
			Dir:               ".quizrag",
			IndexFile:         "index.bin",
			MetadataFile:      "metadata.db",
			TopK:              3,
			DistanceThreshold: 1.5,
			MaxContextLength:  1024,
			SnippetLength:     200,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.idg.vnpt.vn/data-service/v1/chat/completions",
			Model:          "vnptai_hackathon_small",
			AuthEnv:        "QUIZRAG_LLM_AUTH",
			TokenIDEnv:     "QUIZRAG_LLM_TOKEN_ID",
			TokenKeyEnv:    "QUIZRAG_LLM_TOKEN_KEY",
			Temperature:    0.1,
			TopP:           0.9,
			MaxTokens:      1,
			Timeout:        30,
			MaxRetries:     3,
			FallbackAnswer: "A",
		},
		Quota: QuotaConfig{
			MaxPerHour:   60,
			MaxPerDay:    1000,
			RequestDelay: 1.0,
		},
		Run: RunConfig{
			InputFile:  "questions.json",
			AnswerFile: "answers.csv",
			TimingFile: "timing.csv",
			UseRAG:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Seconds converts a seconds value from the config into a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for quizrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "quizrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".quizrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexPath returns the path to the binary index artifact.
func (c *Config) IndexPath(dir string) string {
	return filepath.Join(dir, c.Index.Dir, c.Index.IndexFile)
}

// MetadataPath returns the path to the metadata store artifact.
func (c *Config) MetadataPath(dir string) string {
	return filepath.Join(dir, c.Index.Dir, c.Index.MetadataFile)
}

// EnsureIndexDir ensures the index artifact directory exists.
func (c *Config) EnsureIndexDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, c.Index.Dir), 0755)
}
