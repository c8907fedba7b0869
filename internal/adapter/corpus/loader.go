package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"quizrag/internal/domain"
)

// Loader walks a corpus directory for JSONL files and turns their lines
// into documents. The topic label of a document is the name of its
// file's parent directory, mirroring the corpus layout
// <root>/<domain>/<file>.jsonl.
type Loader struct {
	includes []string
	excludes []string
}

// corpusLine is one JSONL record. Only text is required.
type corpusLine struct {
	Text string `json:"text"`
}

// LoadResult reports what a corpus walk ingested.
type LoadResult struct {
	Files        int
	Documents    int
	SkippedLines int
}

func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*.jsonl"}
	}
	return &Loader{
		includes: includes,
		excludes: excludes,
	}
}

// Files returns the corpus files under root that match the include
// patterns and none of the exclude patterns, in walk order.
func (l *Loader) Files(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if l.matchesAny(l.excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if l.matchesAny(l.includes, relPath) && !l.matchesAny(l.excludes, relPath) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Load walks root and emits one document per usable JSONL line. Blank
// and malformed lines are counted and skipped, not fatal.
func (l *Loader) Load(root string, emit func(domain.Document) error) (LoadResult, error) {
	var result LoadResult

	root, err := filepath.Abs(root)
	if err != nil {
		return result, err
	}

	files, err := l.Files(root)
	if err != nil {
		return result, fmt.Errorf("corpus walk failed: %w", err)
	}

	for _, path := range files {
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return result, err
		}
		topic := filepath.Base(filepath.Dir(relPath))
		if topic == "." {
			topic = "unknown"
		}

		n, skipped, err := l.loadFile(path, relPath, topic, &result, emit)
		if err != nil {
			return result, fmt.Errorf("failed to load %s: %w", relPath, err)
		}
		result.Files++
		result.Documents += n
		result.SkippedLines += skipped
	}

	return result, nil
}

func (l *Loader) loadFile(path, relPath, topic string, result *LoadResult, emit func(domain.Document) error) (docs, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec corpusLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil || strings.TrimSpace(rec.Text) == "" {
			skipped++
			continue
		}

		doc := domain.Document{
			ID:     fmt.Sprintf("%s:%d", relPath, lineNo),
			Source: relPath,
			Domain: topic,
			Text:   rec.Text,
		}
		if err := emit(doc); err != nil {
			return docs, skipped, err
		}
		docs++
	}
	return docs, skipped, scanner.Err()
}

func (l *Loader) matchesAny(patterns []string, path string) bool {
	// doublestar matches on slash-separated paths.
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
