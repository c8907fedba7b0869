package port

import "context"

// ChatModel answers a single multiple-choice prompt via a remote API.
type ChatModel interface {
	// Complete sends a system + user prompt pair and returns the raw
	// response text together with the number of transport attempts made.
	// Retry behavior is the adapter's concern; once Complete returns a
	// non-nil error the attempt budget is exhausted.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (raw string, attempts int, err error)

	// ModelName returns the name of the model.
	ModelName() string
}
