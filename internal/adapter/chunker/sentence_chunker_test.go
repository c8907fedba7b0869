package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"quizrag/internal/domain"
)

func makeDoc(text string) domain.Document {
	return domain.Document{ID: "doc1", Source: "a/b.jsonl", Domain: "science", Text: text}
}

// sentenceText builds a document of n short sentences, wordsPer words each.
func sentenceText(n, wordsPer int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		for w := 0; w < wordsPer; w++ {
			fmt.Fprintf(&sb, "w%d_%d ", i, w)
		}
		sb.WriteString(". ")
	}
	return sb.String()
}

func TestShortDocumentSingleChunk(t *testing.T) {
	c := NewSentenceChunker(512, 50)

	chunks, err := c.Chunk(makeDoc("One short sentence. And another one."))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Position != 0 {
		t.Errorf("expected position 0, got %d", chunks[0].Position)
	}
	if chunks[0].DocID != "doc1" || chunks[0].Domain != "science" {
		t.Errorf("chunk lost document metadata: %+v", chunks[0])
	}
}

func TestNoSentenceBoundaries(t *testing.T) {
	c := NewSentenceChunker(512, 50)

	_, err := c.Chunk(makeDoc("no terminator anywhere in this text"))
	if !errors.Is(err, ErrNoSentences) {
		t.Fatalf("expected ErrNoSentences, got %v", err)
	}

	_, err = c.Chunk(makeDoc("   "))
	if !errors.Is(err, ErrNoSentences) {
		t.Fatalf("expected ErrNoSentences for blank text, got %v", err)
	}
}

func TestChunkSizeAndOverlap(t *testing.T) {
	const size, overlap = 40, 8
	c := NewSentenceChunker(size, overlap)

	doc := makeDoc(sentenceText(20, 5)) // 100 words in 5-word sentences
	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		n := len(strings.Fields(ch.Text))
		if n > size+overlap {
			t.Errorf("chunk %d has %d words, over size+overlap (%d)", i, n, size+overlap)
		}
		if ch.Position != i {
			t.Errorf("chunk %d has position %d", i, ch.Position)
		}
	}

	// Every chunk after the first starts with the last overlap words of
	// the previous chunk.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		tail := prev[len(prev)-overlap:]
		for j, w := range tail {
			if cur[j] != w {
				t.Fatalf("chunk %d does not begin with previous tail: %v vs %v", i, cur[:overlap], tail)
			}
		}
	}
}

func TestChunkEndsOnSentenceBoundary(t *testing.T) {
	c := NewSentenceChunker(40, 8)

	chunks, err := c.Chunk(makeDoc(sentenceText(20, 5)))
	if err != nil {
		t.Fatal(err)
	}
	for i, ch := range chunks {
		trimmed := strings.TrimSpace(ch.Text)
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, trimmed)
		}
	}
}

func TestReconstruction(t *testing.T) {
	const size, overlap = 40, 8
	c := NewSentenceChunker(size, overlap)

	doc := makeDoc(sentenceText(30, 7))
	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}

	// Dropping the first overlap words of every chunk after the first
	// reconstructs the normalized document.
	var words []string
	for i, ch := range chunks {
		w := strings.Fields(ch.Text)
		if i > 0 {
			w = w[overlap:]
		}
		words = append(words, w...)
	}

	want := strings.Fields(doc.Text)
	if len(words) != len(want) {
		t.Fatalf("reconstructed %d words, document has %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("word %d differs: %q vs %q", i, words[i], want[i])
		}
	}
}

func TestLongSentenceFallback(t *testing.T) {
	const size, overlap = 20, 4
	c := NewSentenceChunker(size, overlap)

	// One 50-word sentence: must split on word boundaries.
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "word%d ", i)
	}
	sb.WriteString(".")

	chunks, err := c.Chunk(makeDoc(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected the long sentence to split, got %d chunks", len(chunks))
	}

	seen := make(map[string]bool)
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			seen[w] = true
		}
	}
	for i := 0; i < 50; i++ {
		if !seen[fmt.Sprintf("word%d", i)] {
			t.Errorf("word%d missing from all chunks", i)
		}
	}
}

func TestTrailingTextWithoutTerminator(t *testing.T) {
	c := NewSentenceChunker(512, 50)

	chunks, err := c.Chunk(makeDoc("A full sentence. trailing words without a period"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "trailing words") {
		t.Error("trailing text after the last terminator was dropped")
	}
}
