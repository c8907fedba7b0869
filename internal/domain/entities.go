package domain

import "time"

// Document is a raw corpus text with its topic label. It exists only
// during the offline build: loaded, chunked, then discarded.
type Document struct {
	ID     string
	Source string
	Domain string
	Text   string
}

// Chunk is a sentence-aligned span of a document. ID is the vector id
// assigned at build time, in insertion order across the whole corpus.
type Chunk struct {
	ID       uint64
	DocID    string
	Source   string
	Domain   string
	Position int
	Text     string
}

// Question is one multiple-choice item from the batch input.
type Question struct {
	ID      string   `json:"qid"`
	Text    string   `json:"question"`
	Choices []string `json:"choices"`
}

// ScoredChunk pairs a chunk with its L2 distance to the query.
// Lower distance means more relevant.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float64
}

// InferenceRecord is the per-question result. Records are flushed as
// they are produced so an interrupted batch keeps everything written
// so far.
type InferenceRecord struct {
	QuestionID  string
	Context     string
	RawResponse string
	Answer      string
	Elapsed     time.Duration
	Attempts    int
}

// Capability describes what the retrieval side of the pipeline can do
// for the current run.
type Capability int

const (
	// RetrievalUnavailable means no usable index: the run proceeds LLM-only.
	RetrievalUnavailable Capability = iota
	// RetrievalDegraded means the index loaded but query embedding is
	// unhealthy; questions fall back to LLM-only individually.
	RetrievalDegraded
	// RetrievalFull means index and embedder are both usable.
	RetrievalFull
)

func (c Capability) String() string {
	switch c {
	case RetrievalFull:
		return "full"
	case RetrievalDegraded:
		return "degraded"
	default:
		return "unavailable"
	}
}
