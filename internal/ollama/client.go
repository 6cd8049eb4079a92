// Package ollama is the HTTP client for a local Ollama server. All language
// model calls in the pipeline go through Client.Complete.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the local Ollama endpoint.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the model the transcript prompts were tuned against.
	DefaultModel = "qwen2.5:7b"

	// DefaultTimeout bounds one generate call end to end.
	DefaultTimeout = 120 * time.Second

	// DefaultRateLimit caps generate calls per second.
	DefaultRateLimit = 2

	// maxResponseBytes bounds how much of a response body gets read.
	maxResponseBytes = 4 << 20
)

// Client talks to an Ollama server. At most one generate request is in
// flight at a time regardless of how many goroutines call Complete; the
// backing inference engine serializes work per accelerator, so extra
// parallelism only adds queueing.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	inflight   chan struct{}

	// Stats aggregates latencies and volumes across calls.
	Stats *Stats
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// NewClient creates a client with the documented defaults, adjusted by opts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		inflight:   make(chan struct{}, 1),
		Stats:      NewStats(time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete sends one prompt to /api/generate and returns the generated
// text, trimmed. The call is synchronous and never retried here; it fails
// when the request times out, the server answers non-200, or the response
// carries an error field.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-c.inflight }()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).
		Int("prompt_tokens_est", EstimateTokens(prompt)).Msg("generate")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.Stats.RecordError(elapsed)
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.Stats.RecordError(elapsed)
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Stats.RecordError(elapsed)
		return "", &ServiceError{StatusCode: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		c.Stats.RecordError(elapsed)
		return "", fmt.Errorf("decode response: %w", err)
	}
	if gen.Error != "" {
		c.Stats.RecordError(elapsed)
		return "", fmt.Errorf("ollama error: %s", gen.Error)
	}

	c.Stats.Record(elapsed, len(prompt), len(gen.Response))
	return strings.TrimSpace(gen.Response), nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// ServiceError is a non-200 answer from the Ollama server.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ollama status %d: %s", e.StatusCode, e.Message)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
