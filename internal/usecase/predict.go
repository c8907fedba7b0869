package usecase

import (
	"context"
	"errors"
	"time"

	"quizrag/internal/adapter/llm"
	"quizrag/internal/adapter/quota"
	"quizrag/internal/domain"
	"quizrag/internal/port"
)

// RecordSink persists one inference record. Append must make the record
// durable before returning so an interrupted batch loses nothing.
type RecordSink interface {
	Append(rec domain.InferenceRecord) error
}

// PredictUseCase runs the batch inference loop: retrieve context, build
// the prompt, wait for a quota slot, call the model and persist the
// result for each question in turn.
type PredictUseCase struct {
	retriever port.Retriever
	chat      port.ChatModel
	quota     *quota.Manager
	sink      RecordSink

	processed map[string]bool
	fallback  string
	topK      int
}

// BatchResult summarizes one inference run.
type BatchResult struct {
	Processed int
	Failed    int
	Skipped   int
	// Aborted is set when the daily quota ran out before the batch
	// finished. Everything processed so far is already persisted.
	Aborted bool
	Elapsed time.Duration
}

// PredictOptions tunes a PredictUseCase.
type PredictOptions struct {
	// Processed holds question ids already persisted by an earlier run.
	// Questions with these ids are skipped.
	Processed map[string]bool

	// Fallback is the answer recorded when the model response cannot be
	// parsed or the request fails outright.
	Fallback string

	// TopK is the number of chunks requested per retrieval.
	TopK int
}

func NewPredictUseCase(retriever port.Retriever, chat port.ChatModel, qm *quota.Manager, sink RecordSink, opts PredictOptions) *PredictUseCase {
	processed := opts.Processed
	if processed == nil {
		processed = map[string]bool{}
	}
	fallback := opts.Fallback
	if fallback == "" {
		fallback = "A"
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 3
	}
	return &PredictUseCase{
		retriever: retriever,
		chat:      chat,
		quota:     qm,
		sink:      sink,
		processed: processed,
		fallback:  fallback,
		topK:      topK,
	}
}

// Progress is called after each question with the number handled so far
// and the batch total. It may be nil.
type Progress func(done, total int)

// Predict answers every question not already processed. Retrieval
// failures degrade to a context-free prompt; model failures record the
// fallback answer. Only sink errors and context cancellation stop the
// batch early, besides daily quota exhaustion which sets Aborted.
func (u *PredictUseCase) Predict(ctx context.Context, questions []domain.Question, progress Progress) (res BatchResult, err error) {
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if u.processed[q.ID] {
			res.Skipped++
			if progress != nil {
				progress(i+1, len(questions))
			}
			continue
		}

		retrieved := ""
		if u.retriever != nil && u.retriever.Capability() != domain.RetrievalUnavailable {
			text, err := u.retriever.Retrieve(ctx, q.Text, u.topK)
			if err == nil {
				retrieved = text
			}
		}

		if err := u.quota.WaitSlot(ctx); err != nil {
			if errors.Is(err, quota.ErrDailyExhausted) {
				res.Aborted = true
				return res, nil
			}
			return res, err
		}
		if err := u.quota.Pace(ctx); err != nil {
			return res, err
		}

		rec, failed := u.answer(ctx, q, retrieved)
		u.quota.Record()
		if failed {
			res.Failed++
		} else {
			res.Processed++
		}

		if err := u.sink.Append(rec); err != nil {
			return res, err
		}
		u.processed[q.ID] = true
		if progress != nil {
			progress(i+1, len(questions))
		}
	}
	return res, nil
}

func (u *PredictUseCase) answer(ctx context.Context, q domain.Question, retrieved string) (domain.InferenceRecord, bool) {
	systemPrompt, userPrompt := BuildPrompt(q, retrieved)

	begin := time.Now()
	raw, attempts, err := u.chat.Complete(ctx, systemPrompt, userPrompt)
	elapsed := time.Since(begin)

	rec := domain.InferenceRecord{
		QuestionID:  q.ID,
		Context:     retrieved,
		RawResponse: raw,
		Answer:      u.fallback,
		Elapsed:     elapsed,
		Attempts:    attempts,
	}
	if err != nil {
		return rec, true
	}

	answer, err := llm.ParseAnswer(raw, len(q.Choices))
	if err != nil {
		return rec, true
	}
	rec.Answer = answer
	return rec, false
}
