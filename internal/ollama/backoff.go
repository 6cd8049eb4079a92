package ollama

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/phuslu/log"
)

const maxBackoff = 30 * time.Second

// Backoff returns the wait before probe attempt n (0-indexed), exponential
// with jitter, capped at maxBackoff.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > maxBackoff {
		base = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// WaitReady polls the server's tag listing until it answers or maxAttempts
// probes have failed, backing off between probes. Generate calls are never
// retried; only this startup probe is.
func (c *Client) WaitReady(ctx context.Context, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Str("url", c.baseURL).Msg("ollama not ready")
			continue
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = &ServiceError{StatusCode: resp.StatusCode, Message: "tags probe failed"}
		log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("ollama not ready")
	}
	return fmt.Errorf("ollama at %s not ready after %d attempts: %w", c.baseURL, maxAttempts, lastErr)
}
