package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizrag/internal/adapter/quota"
	"quizrag/internal/domain"
)

type chatCall struct {
	systemPrompt string
	userPrompt   string
}

type scriptedChat struct {
	responses []string
	fail      map[int]error // call index -> error
	calls     []chatCall
}

func (c *scriptedChat) Complete(_ context.Context, systemPrompt, userPrompt string) (string, int, error) {
	i := len(c.calls)
	c.calls = append(c.calls, chatCall{systemPrompt: systemPrompt, userPrompt: userPrompt})
	if err, ok := c.fail[i]; ok {
		return "", 3, err
	}
	if i < len(c.responses) {
		return c.responses[i], 1, nil
	}
	return "A", 1, nil
}

func (c *scriptedChat) ModelName() string { return "scripted" }

type staticRetriever struct {
	text       string
	capability domain.Capability
}

func (r *staticRetriever) Retrieve(context.Context, string, int) (string, error) {
	return r.text, nil
}

func (r *staticRetriever) Capability() domain.Capability { return r.capability }

type memorySink struct {
	records []domain.InferenceRecord
	err     error
}

func (s *memorySink) Append(rec domain.InferenceRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func testQuestions(ids ...string) []domain.Question {
	var qs []domain.Question
	for _, id := range ids {
		qs = append(qs, domain.Question{
			ID:      id,
			Text:    "What is " + id + "?",
			Choices: []string{"A. one", "B. two", "C. three", "D. four"},
		})
	}
	return qs
}

func TestPredictAnswersAndPersists(t *testing.T) {
	chat := &scriptedChat{responses: []string{"A", "The answer is B.", " c \n"}}
	sink := &memorySink{}
	u := NewPredictUseCase(
		&staticRetriever{text: "[Source 1, relevance: 0.90] fact.", capability: domain.RetrievalFull},
		chat, quota.New(10, 100, 0), sink, PredictOptions{})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2", "q3"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Processed != 3 || res.Failed != 0 || res.Skipped != 0 || res.Aborted {
		t.Fatalf("result = %+v, want 3 processed", res)
	}
	if len(sink.records) != 3 {
		t.Fatalf("got %d records, want 3", len(sink.records))
	}
	for i, want := range []string{"A", "B", "C"} {
		if sink.records[i].Answer != want {
			t.Errorf("record %d answer = %q, want %q", i, sink.records[i].Answer, want)
		}
	}
	if sink.records[0].Context == "" {
		t.Error("record should carry the retrieved context")
	}
	if !strings.Contains(chat.calls[0].systemPrompt, "fact.") {
		t.Error("system prompt should embed the retrieved context")
	}
	if !strings.Contains(chat.calls[0].userPrompt, "Câu hỏi: What is q1?") {
		t.Errorf("user prompt = %q, missing question", chat.calls[0].userPrompt)
	}
	if !strings.Contains(chat.calls[0].userPrompt, "B. two") {
		t.Errorf("user prompt = %q, missing choices", chat.calls[0].userPrompt)
	}
}

func TestPredictRecordsFallbackOnTransportFailure(t *testing.T) {
	chat := &scriptedChat{fail: map[int]error{0: errors.New("connection refused")}}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 100, 0), sink, PredictOptions{Fallback: "A"})

	res, err := u.Predict(context.Background(), testQuestions("q1"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Failed != 1 || res.Processed != 0 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}
	if len(sink.records) != 1 {
		t.Fatalf("got %d records, want 1", len(sink.records))
	}
	if sink.records[0].Answer != "A" {
		t.Errorf("answer = %q, want fallback A", sink.records[0].Answer)
	}
	if sink.records[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", sink.records[0].Attempts)
	}
}

func TestPredictRecordsFallbackOnUnparseableResponse(t *testing.T) {
	chat := &scriptedChat{responses: []string{"I cannot answer"}}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 100, 0), sink, PredictOptions{Fallback: "B"})

	res, err := u.Predict(context.Background(), testQuestions("q1"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}
	if sink.records[0].Answer != "B" {
		t.Errorf("answer = %q, want fallback B", sink.records[0].Answer)
	}
	if sink.records[0].RawResponse != "I cannot answer" {
		t.Errorf("raw response = %q, should be kept for inspection", sink.records[0].RawResponse)
	}
}

func TestPredictSkipsAlreadyProcessed(t *testing.T) {
	chat := &scriptedChat{responses: []string{"A", "B"}}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 100, 0), sink, PredictOptions{
		Processed: map[string]bool{"q2": true},
	})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2", "q3"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Skipped != 1 || res.Processed != 2 {
		t.Fatalf("result = %+v, want 1 skipped and 2 processed", res)
	}
	if len(chat.calls) != 2 {
		t.Errorf("model called %d times, want 2", len(chat.calls))
	}
	for _, rec := range sink.records {
		if rec.QuestionID == "q2" {
			t.Error("q2 was answered despite being already processed")
		}
	}
}

type slowChat struct {
	scriptedChat
	perCall time.Duration
}

func (c *slowChat) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	time.Sleep(c.perCall)
	return c.scriptedChat.Complete(ctx, systemPrompt, userPrompt)
}

func TestPredictReportsElapsedTime(t *testing.T) {
	chat := &slowChat{
		scriptedChat: scriptedChat{responses: []string{"A", "B"}},
		perCall:      20 * time.Millisecond,
	}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 100, 0), sink, PredictOptions{})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Elapsed < 40*time.Millisecond {
		t.Errorf("Elapsed = %v, want at least the 40ms spent in the model calls", res.Elapsed)
	}
}

func TestPredictReportsElapsedOnAbort(t *testing.T) {
	chat := &slowChat{
		scriptedChat: scriptedChat{responses: []string{"A"}},
		perCall:      20 * time.Millisecond,
	}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 1, 0), sink, PredictOptions{})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !res.Aborted {
		t.Fatal("batch should abort when the daily budget is spent")
	}
	if res.Elapsed < 20*time.Millisecond {
		t.Errorf("Elapsed = %v, want at least the 20ms spent before the abort", res.Elapsed)
	}
}

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func TestPredictWaitsForHourlySlot(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	qm := quota.NewWithClock(2, 100, 0, clock.now, clock.sleep)
	chat := &scriptedChat{responses: []string{"A", "B", "C"}}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, qm, sink, PredictOptions{})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2", "q3"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Processed != 3 {
		t.Fatalf("result = %+v, want 3 processed", res)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("got %d sleeps, want 1 for the hourly window", len(clock.sleeps))
	}
	if want := time.Hour + 5*time.Second; clock.sleeps[0] != want {
		t.Errorf("slept %v, want %v", clock.sleeps[0], want)
	}
	if len(sink.records) != 3 {
		t.Errorf("got %d records, want 3", len(sink.records))
	}
}

func TestPredictAbortsWhenDailyQuotaExhausted(t *testing.T) {
	chat := &scriptedChat{responses: []string{"A", "B", "C"}}
	sink := &memorySink{}
	u := NewPredictUseCase(nil, chat, quota.New(10, 2, 0), sink, PredictOptions{})

	res, err := u.Predict(context.Background(), testQuestions("q1", "q2", "q3"), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !res.Aborted {
		t.Fatal("batch should abort when the daily budget is spent")
	}
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}
	if len(sink.records) != 2 {
		t.Errorf("got %d records, want the 2 answered before exhaustion", len(sink.records))
	}
}

func TestPredictUnavailableRetrievalUsesBarePrompt(t *testing.T) {
	chat := &scriptedChat{responses: []string{"A"}}
	sink := &memorySink{}
	u := NewPredictUseCase(
		&staticRetriever{text: "should not appear", capability: domain.RetrievalUnavailable},
		chat, quota.New(10, 100, 0), sink, PredictOptions{})

	if _, err := u.Predict(context.Background(), testQuestions("q1"), nil); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if sink.records[0].Context != "" {
		t.Errorf("record context = %q, want empty", sink.records[0].Context)
	}
	if strings.Contains(chat.calls[0].systemPrompt, "THÔNG TIN THAM KHẢO") {
		t.Error("system prompt should be the context-free variant")
	}
}

func TestPredictStopsOnSinkError(t *testing.T) {
	chat := &scriptedChat{responses: []string{"A", "B"}}
	sink := &memorySink{err: errors.New("disk full")}
	u := NewPredictUseCase(nil, chat, quota.New(10, 100, 0), sink, PredictOptions{})

	_, err := u.Predict(context.Background(), testQuestions("q1", "q2"), nil)
	if err == nil {
		t.Fatal("expected sink failure to stop the batch")
	}
}
