package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"quizrag/internal/adapter/cache"
)

var (
	// ErrEmptyInput is returned before any network call when the text
	// to embed is empty or whitespace.
	ErrEmptyInput = errors.New("cannot embed empty text")

	// ErrBudgetExhausted is returned once the monthly call budget is used up.
	ErrBudgetExhausted = errors.New("embedding call budget exhausted")

	// errRateLimited marks a 429 so the retry loop can wait it out.
	errRateLimited = errors.New("embedding API rate limited")
)

const (
	rateLimitRetries = 3
	rateLimitWait    = 60 * time.Second
)

// VNPTEmbedder calls a VNPT-style embedding endpoint. The API takes one
// input text per request and authenticates with an Authorization header
// plus Token-id/Token-key pair.
type VNPTEmbedder struct {
	authorization string
	tokenID       string
	tokenKey      string
	model         string
	baseURL       string
	dimension     int

	client      *http.Client
	cache       *cache.EmbeddingCache
	minInterval time.Duration
	sleep       func(time.Duration)

	mu       sync.Mutex
	used     int
	budget   int
	lastCall time.Time
}

type embeddingRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Options configures a VNPTEmbedder beyond its credentials.
type Options struct {
	Dimension   int
	Budget      int
	MinInterval time.Duration
	Timeout     time.Duration
	Cache       *cache.EmbeddingCache
}

// NewVNPTEmbedder builds an embedder from credential environment
// variable names, matching how the deployment supplies API keys.
func NewVNPTEmbedder(baseURL, model, authEnv, tokenIDEnv, tokenKeyEnv string, opts Options) (*VNPTEmbedder, error) {
	auth := os.Getenv(authEnv)
	if auth == "" {
		return nil, fmt.Errorf("API credential not found in environment variable: %s", authEnv)
	}

	if opts.Dimension <= 0 {
		opts.Dimension = 1024
	}
	if opts.Budget <= 0 {
		opts.Budget = 500
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &VNPTEmbedder{
		authorization: auth,
		tokenID:       os.Getenv(tokenIDEnv),
		tokenKey:      os.Getenv(tokenKeyEnv),
		model:         model,
		baseURL:       baseURL,
		dimension:     opts.Dimension,
		budget:        opts.Budget,
		minInterval:   opts.MinInterval,
		cache:         opts.Cache,
		sleep:         time.Sleep,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// Embed returns the embedding for a single text. Results are cached by
// normalized text; cache hits do not touch the wire or the budget. A
// 429 response is waited out and retried a bounded number of times.
func (e *VNPTEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := cache.Normalize(text)
	if normalized == "" {
		return nil, ErrEmptyInput
	}

	if e.cache != nil {
		if vec, hit := e.cache.Get(normalized); hit {
			return vec, nil
		}
	}

	e.mu.Lock()
	if e.used >= e.budget {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w (%d/%d)", ErrBudgetExhausted, e.used, e.budget)
	}
	// The API rate-limits aggressively; keep a minimum interval between
	// calls.
	if e.minInterval > 0 && !e.lastCall.IsZero() {
		if wait := e.minInterval - time.Since(e.lastCall); wait > 0 {
			e.sleep(wait)
		}
	}
	e.lastCall = time.Now()
	e.mu.Unlock()

	var vec []float32
	var err error
	for attempt := 0; attempt < rateLimitRetries; attempt++ {
		vec, err = e.embedOnce(ctx, normalized)
		if err == nil || !errors.Is(err, errRateLimited) {
			break
		}
		if attempt < rateLimitRetries-1 {
			e.sleep(rateLimitWait)
		}
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.used++
	e.mu.Unlock()

	if e.cache != nil {
		e.cache.Put(normalized, vec)
	}
	return vec, nil
}

func (e *VNPTEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		Model:          e.model,
		Input:          text,
		EncodingFormat: "float",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/"+e.model, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", e.authorization)
	req.Header.Set("Token-id", e.tokenID)
	req.Header.Set("Token-key", e.tokenKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", errRateLimited, truncateBody(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", truncateBody(body), err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("API response contained no embedding")
	}

	vec := embResp.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(vec))
	}
	return vec, nil
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// Usage returns calls made against the monthly budget.
func (e *VNPTEmbedder) Usage() (used, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used, e.budget
}

func (e *VNPTEmbedder) Dimension() int {
	return e.dimension
}

func (e *VNPTEmbedder) ModelName() string {
	return e.model
}

// MockEmbedder produces deterministic embeddings from rune values.
// Used in tests and for offline dry runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if cache.Normalize(text) == "" {
		return nil, ErrEmptyInput
	}
	vec := make([]float32, e.dimension)
	j := 0
	for _, r := range text {
		if j >= e.dimension {
			break
		}
		vec[j] = float32(r) / 1000.0
		j++
	}
	return vec, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
