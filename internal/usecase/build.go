package usecase

import (
	"context"
	"errors"
	"fmt"

	"quizrag/internal/adapter/chunker"
	"quizrag/internal/adapter/corpus"
	"quizrag/internal/adapter/index"
	"quizrag/internal/adapter/store"
	"quizrag/internal/domain"
	"quizrag/internal/port"
)

// BuildUseCase runs the offline pipeline: walk the corpus, chunk every
// document, embed every chunk, and write the index and metadata
// artifacts together so their ids and counts stay in sync.
type BuildUseCase struct {
	loader   *corpus.Loader
	chunker  port.Chunker
	embedder port.Embedder
}

// BuildResult summarizes an offline build.
type BuildResult struct {
	Files            int
	Documents        int
	DocumentsSkipped int // no sentence boundaries
	Chunks           int
	ChunksFailed     int // embedding failures
	SkippedLines     int
}

func NewBuildUseCase(loader *corpus.Loader, chk port.Chunker, embedder port.Embedder) *BuildUseCase {
	return &BuildUseCase{
		loader:   loader,
		chunker:  chk,
		embedder: embedder,
	}
}

// Build ingests corpusDir and writes the two artifacts. The progress
// callback receives (embedded, total) once chunking is done.
func (u *BuildUseCase) Build(ctx context.Context, corpusDir, indexPath, metadataPath string, progress func(done, total int)) (BuildResult, error) {
	var result BuildResult

	// First pass: chunk the whole corpus so the embedding phase knows
	// its total and ids are assigned in one contiguous sequence.
	var chunks []domain.Chunk
	loadResult, err := u.loader.Load(corpusDir, func(doc domain.Document) error {
		docChunks, err := u.chunker.Chunk(doc)
		if err != nil {
			if errors.Is(err, chunker.ErrNoSentences) {
				result.DocumentsSkipped++
				return nil
			}
			return fmt.Errorf("chunking %s: %w", doc.ID, err)
		}
		chunks = append(chunks, docChunks...)
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Files = loadResult.Files
	result.Documents = loadResult.Documents
	result.SkippedLines = loadResult.SkippedLines

	if len(chunks) == 0 {
		return result, fmt.Errorf("corpus produced no chunks")
	}

	meta, err := store.NewMetadataStore(metadataPath)
	if err != nil {
		return result, err
	}
	defer meta.Close()

	idx := index.NewFlat(u.embedder.Dimension())

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		vec, err := u.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			// A bad chunk is fatal to that chunk only; index and
			// metadata skip it together.
			result.ChunksFailed++
			continue
		}

		id, err := idx.Add(vec)
		if err != nil {
			return result, err
		}
		chunk.ID = id
		if err := meta.PutChunk(chunk); err != nil {
			return result, err
		}
		result.Chunks++

		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	if result.Chunks == 0 {
		return result, fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}

	if err := meta.SetEmbeddingInfo(u.embedder.ModelName(), u.embedder.Dimension()); err != nil {
		return result, err
	}
	if err := idx.Save(indexPath); err != nil {
		return result, fmt.Errorf("failed to save index: %w", err)
	}

	// The two artifacts must agree before the build is declared good.
	count, err := meta.Count()
	if err != nil {
		return result, err
	}
	if err := idx.VerifyCount(count); err != nil {
		return result, err
	}

	return result, nil
}
