package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	// ErrUnavailable means the API could not be reached or kept failing
	// after the retry budget. The batch records a fallback answer and
	// moves on.
	ErrUnavailable = errors.New("chat API unavailable")

	// ErrUnauthorized means the credentials were rejected. Retrying
	// cannot help, so the adapter gives up immediately.
	ErrUnauthorized = errors.New("chat API rejected credentials")
)

// Client calls a VNPT-style chat completions endpoint. Transport
// failures and rate-limit responses are retried with backoff up to
// maxRetries attempts; authentication failures are not.
type Client struct {
	authorization string
	tokenID       string
	tokenKey      string
	model         string
	url           string

	temperature float64
	topP        float64
	maxTokens   int
	maxRetries  int

	client *http.Client
	sleep  func(time.Duration)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k"`
	N           int           `json:"n"`
	MaxTokens   int           `json:"max_completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ClientOptions configures a Client beyond its credentials.
type ClientOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
}

// NewClient builds a chat client from credential environment variable
// names. The URL is the full chat completions endpoint for the model.
func NewClient(url, model, authEnv, tokenIDEnv, tokenKeyEnv string, opts ClientOptions) (*Client, error) {
	auth := os.Getenv(authEnv)
	if auth == "" {
		return nil, fmt.Errorf("API credential not found in environment variable: %s", authEnv)
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		authorization: auth,
		tokenID:       os.Getenv(tokenIDEnv),
		tokenKey:      os.Getenv(tokenKeyEnv),
		model:         model,
		url:           url,
		temperature:   opts.Temperature,
		topP:          opts.TopP,
		maxTokens:     opts.MaxTokens,
		maxRetries:    opts.MaxRetries,
		sleep:         time.Sleep,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// Complete sends the prompt pair and returns the raw answer text and
// the number of attempts it took.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		TopP:        c.topP,
		TopK:        20,
		N:           1,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		raw, err := c.completeOnce(ctx, jsonData)
		if err == nil {
			return raw, attempt + 1, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return "", attempt + 1, err
		}
		if ctx.Err() != nil {
			return "", attempt + 1, ctx.Err()
		}
		lastErr = err

		if errors.Is(err, errRateLimited) {
			// 429: exponential backoff, the API tells us to slow down.
			c.sleep(time.Duration(1<<attempt) * time.Second)
		} else {
			c.sleep(time.Second)
		}
	}

	return "", c.maxRetries, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.maxRetries, lastErr)
}

var errRateLimited = errors.New("rate limited")

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("Token-id", c.tokenID)
	req.Header.Set("Token-key", c.tokenKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", errRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	default:
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response (body: %s): %w", truncate(respBody), err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("API response contained no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func truncate(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (c *Client) ModelName() string {
	return c.model
}
