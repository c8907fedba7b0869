package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.ChunkWords != 512 {
		t.Errorf("expected ChunkWords=512, got %d", cfg.Chunking.ChunkWords)
	}
	if cfg.Chunking.OverlapWords != 50 {
		t.Errorf("expected OverlapWords=50, got %d", cfg.Chunking.OverlapWords)
	}
	if cfg.Index.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Index.TopK)
	}
	if cfg.Quota.MaxPerHour != 60 {
		t.Errorf("expected MaxPerHour=60, got %d", cfg.Quota.MaxPerHour)
	}
	if cfg.Quota.MaxPerDay != 1000 {
		t.Errorf("expected MaxPerDay=1000, got %d", cfg.Quota.MaxPerDay)
	}
	if cfg.Quota.RequestDelay != 1.0 {
		t.Errorf("expected RequestDelay=1.0, got %v", cfg.Quota.RequestDelay)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.FallbackAnswer != "A" {
		t.Errorf("expected FallbackAnswer=A, got %q", cfg.LLM.FallbackAnswer)
	}
	if !cfg.Run.UseRAG {
		t.Error("expected UseRAG=true by default")
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quizrag.yaml")

	content := `
chunking:
  chunk_words: 256
  overlap_words: 32
quota:
  max_per_hour: 10
run:
  use_rag: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.ChunkWords != 256 {
		t.Errorf("expected ChunkWords=256, got %d", cfg.Chunking.ChunkWords)
	}
	if cfg.Chunking.OverlapWords != 32 {
		t.Errorf("expected OverlapWords=32, got %d", cfg.Chunking.OverlapWords)
	}
	if cfg.Quota.MaxPerHour != 10 {
		t.Errorf("expected MaxPerHour=10, got %d", cfg.Quota.MaxPerHour)
	}
	if cfg.Run.UseRAG {
		t.Error("expected UseRAG=false")
	}
	// Untouched sections keep their defaults.
	if cfg.Quota.MaxPerDay != 1000 {
		t.Errorf("expected MaxPerDay=1000, got %d", cfg.Quota.MaxPerDay)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quizrag.yaml")

	content := `
index:
  top_k: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Index.TopK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quizrag.yaml")

	cfg := DefaultConfig()
	cfg.Index.TopK = 7
	cfg.Quota.RequestDelay = 0.25

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Index.TopK != 7 {
		t.Errorf("expected TopK=7 after round trip, got %d", loaded.Index.TopK)
	}
	if loaded.Quota.RequestDelay != 0.25 {
		t.Errorf("expected RequestDelay=0.25 after round trip, got %v", loaded.Quota.RequestDelay)
	}
}

func TestSeconds(t *testing.T) {
	if Seconds(1.5) != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", Seconds(1.5))
	}
	if Seconds(0) != 0 {
		t.Errorf("expected 0, got %v", Seconds(0))
	}
}

func TestArtifactPaths(t *testing.T) {
	cfg := DefaultConfig()

	idx := cfg.IndexPath("/home/user/project")
	if idx != filepath.Join("/home/user/project", ".quizrag", "index.bin") {
		t.Errorf("unexpected index path: %s", idx)
	}

	meta := cfg.MetadataPath("/home/user/project")
	if meta != filepath.Join("/home/user/project", ".quizrag", "metadata.db") {
		t.Errorf("unexpected metadata path: %s", meta)
	}
}
