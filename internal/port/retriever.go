package port

import (
	"context"

	"quizrag/internal/domain"
)

// Retriever assembles a context blob for a question, or an empty string
// when retrieval is unavailable.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (string, error)

	// Capability reports whether retrieval is usable for this run.
	Capability() domain.Capability
}
