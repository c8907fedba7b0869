package chunker

import (
	"errors"
	"regexp"
	"strings"

	"quizrag/internal/domain"
)

// ErrNoSentences is returned when a document contains no sentence
// boundary the splitter can detect.
var ErrNoSentences = errors.New("no sentence boundaries in document")

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// SentenceChunker splits documents into overlapping word-bounded chunks
// that end on sentence boundaries. Each chunk after the first begins
// overlapWords words before the end of the previous chunk, which may
// fall mid-sentence; chunk ends never do, except inside a single
// sentence longer than the chunk size.
type SentenceChunker struct {
	chunkWords   int
	overlapWords int
}

func NewSentenceChunker(chunkWords, overlapWords int) *SentenceChunker {
	if chunkWords <= 0 {
		chunkWords = 512
	}
	if overlapWords < 0 || overlapWords >= chunkWords {
		overlapWords = 0
	}
	return &SentenceChunker{
		chunkWords:   chunkWords,
		overlapWords: overlapWords,
	}
}

// Chunk splits the document text into ordered chunks. Chunk IDs are
// assigned later by the build pipeline; Position is the ordinal within
// the document.
func (c *SentenceChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	sentences := splitSentences(doc.Text)
	if sentences == nil {
		return nil, ErrNoSentences
	}

	var texts []string
	var current []string // accumulated words of the open chunk

	flush := func() {
		if len(current) > 0 {
			texts = append(texts, strings.Join(current, " "))
		}
	}

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}

		// A single sentence longer than the chunk size is split on raw
		// word boundaries with the configured overlap.
		if len(words) > c.chunkWords {
			flush()
			current = nil
			stride := c.chunkWords - c.overlapWords
			for i := 0; i < len(words); i += stride {
				start := i - c.overlapWords
				if start < 0 {
					start = 0
				}
				end := i + c.chunkWords
				if end > len(words) {
					end = len(words)
				}
				texts = append(texts, strings.Join(words[start:end], " "))
				if end == len(words) {
					break
				}
			}
			continue
		}

		if len(current)+len(words) <= c.chunkWords {
			current = append(current, words...)
			continue
		}

		// Chunk is full: emit it and start the next one overlap words
		// before its end.
		flush()
		tail := current
		if len(tail) > c.overlapWords {
			tail = tail[len(tail)-c.overlapWords:]
		}
		current = append(append([]string{}, tail...), words...)
	}
	flush()

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocID:    doc.ID,
			Source:   doc.Source,
			Domain:   doc.Domain,
			Position: i,
			Text:     text,
		})
	}
	return chunks, nil
}

// splitSentences splits text on runs of sentence terminators, keeping
// each terminator run attached to its sentence. Returns nil when the
// text has no detectable boundary.
func splitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	bounds := sentenceEnd.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return nil
	}

	var sentences []string
	prev := 0
	for _, b := range bounds {
		s := strings.TrimSpace(text[prev:b[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		prev = b[1]
	}
	// Trailing words after the last terminator still belong to the
	// document and become a final sentence.
	if rest := strings.TrimSpace(text[prev:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
