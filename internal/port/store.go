package port

import "quizrag/internal/domain"

// MetadataStore maps vector ids to chunk records. It is written once by
// the offline build and read-only afterwards.
type MetadataStore interface {
	PutChunk(chunk domain.Chunk) error

	GetChunk(id uint64) (domain.Chunk, error)

	// Count returns the number of stored chunk records. It must equal
	// the vector count of the index artifact built alongside it.
	Count() (int, error)

	Close() error
}
