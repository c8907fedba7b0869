package usecase

import (
	"context"
	"fmt"
	"strings"

	"quizrag/internal/adapter/index"
	"quizrag/internal/domain"
	"quizrag/internal/port"
)

// SemanticRetriever answers questions against the flat index. When the
// index is unavailable it returns empty context rather than failing:
// the pipeline degrades to LLM-only.
type SemanticRetriever struct {
	embedder port.Embedder
	idx      *index.Flat // nil when no index could be loaded
	meta     port.MetadataStore

	threshold     float64
	snippetLength int
	maxContext    int
}

// RetrieverOptions bound the assembled context.
type RetrieverOptions struct {
	DistanceThreshold float64
	SnippetLength     int
	MaxContextLength  int
}

// NewSemanticRetriever wires the retrieval path. idx may be nil, which
// yields an unavailable retriever that always returns empty context.
func NewSemanticRetriever(embedder port.Embedder, idx *index.Flat, meta port.MetadataStore, opts RetrieverOptions) *SemanticRetriever {
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = 200
	}
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = 1024
	}
	return &SemanticRetriever{
		embedder:      embedder,
		idx:           idx,
		meta:          meta,
		threshold:     opts.DistanceThreshold,
		snippetLength: opts.SnippetLength,
		maxContext:    opts.MaxContextLength,
	}
}

// Capability reports what the retrieval path can do for this run.
func (r *SemanticRetriever) Capability() domain.Capability {
	if r.idx == nil || r.meta == nil {
		return domain.RetrievalUnavailable
	}
	if r.embedder == nil {
		return domain.RetrievalDegraded
	}
	return domain.RetrievalFull
}

// TopChunks returns the raw scored hits for a question, unfiltered by
// the distance threshold. Hits whose metadata record is missing are
// skipped.
func (r *SemanticRetriever) TopChunks(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	if r.Capability() != domain.RetrievalFull {
		return nil, fmt.Errorf("retrieval not available")
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var hits []domain.ScoredChunk
	for _, res := range results {
		chunk, err := r.meta.GetChunk(res.ID)
		if err != nil {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: chunk, Distance: res.Distance})
	}
	return hits, nil
}

// Retrieve embeds the question, searches the index, and assembles a
// bounded context blob, most relevant snippet first. Unavailable
// retrieval returns empty context and no error.
func (r *SemanticRetriever) Retrieve(ctx context.Context, question string, k int) (string, error) {
	switch r.Capability() {
	case domain.RetrievalUnavailable:
		return "", nil
	case domain.RetrievalDegraded:
		return "", fmt.Errorf("retrieval degraded: no query embedder")
	}

	hits, err := r.TopChunks(ctx, question, k)
	if err != nil {
		return "", err
	}

	var lines []string
	rank := 0
	for _, hit := range hits {
		if r.threshold > 0 && hit.Distance >= r.threshold {
			continue
		}
		rank++
		lines = append(lines, fmt.Sprintf("[Source %d, relevance: %.2f] %s",
			rank, 1-hit.Distance, truncateSnippet(hit.Chunk.Text, r.snippetLength)))
	}

	return assembleContext(lines, r.maxContext), nil
}

// truncateSnippet shortens a chunk for prompt use, preferring to cut at
// the last sentence end within a small slack past the limit.
func truncateSnippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	slack := limit + limit/4
	if slack > len(runes) {
		slack = len(runes)
	}
	window := string(runes[:slack])
	if cut := strings.LastIndex(window, "."); cut > 0 {
		return window[:cut+1] + ".."
	}
	return string(runes[:limit]) + "..."
}

// assembleContext joins snippet lines until the total length budget is
// reached, dropping the lowest-ranked lines first.
func assembleContext(lines []string, maxLen int) string {
	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	total := 0
	for i, line := range lines {
		n := len([]rune(line))
		if i > 0 {
			n++ // newline separator
		}
		if total+n > maxLen {
			break
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
		total += n
	}

	if sb.Len() == 0 {
		// Even the top snippet does not fit: hard-truncate it.
		runes := []rune(lines[0])
		if len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		return string(runes)
	}
	return sb.String()
}
