package port

import "context"

// Embedder generates a vector embedding for a single text.
type Embedder interface {
	// Embed generates an embedding for the given text. The text must be
	// non-empty; callers guard against empty chunks and questions.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// EmbedderUsage is implemented by embedders that track a call budget.
type EmbedderUsage interface {
	// Usage returns calls made and the total budget.
	Usage() (used, total int)
}
