// Package fetch provides the HTTP retrieval primitive used by every
// network-touching component: a client with per-request timeouts, a shared
// politeness rate limit, and bounded retries with exponential backoff for
// transient failures. A timeout is an ordinary transient failure here, not a
// distinct outcome.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// defaultUserAgent identifies the tool to origin servers.
const defaultUserAgent = "blogmirror/1.0 (blog migration; +https://github.com/netjoints/blogmirror)"

// maxBodyBytes caps how much of a response body is read, guarding against
// runaway responses. 50 MB comfortably covers pages and typical blog media.
const maxBodyBytes = 50 << 20

// Config controls client behavior.
type Config struct {
	// Timeout applies to each individual request attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of tries per URL, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; it doubles per
	// attempt.
	InitialBackoff time.Duration
	// RequestsPerSecond is the sustained politeness rate toward the origin.
	RequestsPerSecond float64
	// Burst is the token bucket burst size.
	Burst int
	// UserAgent overrides the default User-Agent header when non-empty.
	UserAgent string
}

// DefaultConfig returns conservative defaults: 10s timeout, 3 attempts,
// 500ms initial backoff, 2 requests/second.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		RequestsPerSecond: 2.0,
		Burst:             1,
	}
}

// Client fetches URLs with retries and rate limiting. The limiter is shared
// by every caller of one Client, so aggregate request rate to the origin
// stays bounded no matter how many workers fetch through it.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
}

// NewClient creates a client from config, filling zero values with defaults.
func NewClient(config Config) *Client {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		config:     config,
	}
}

// Get fetches url and returns the response body. Transient failures
// (network errors, timeouts, HTTP 5xx and 429) are retried with exponential
// backoff up to the configured attempt bound; other HTTP errors return a
// *StatusError immediately.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	var lastErr error

	backoff := c.config.InitialBackoff
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
		}

		body, lastErr = c.doRequest(ctx, url)
		if lastErr == nil {
			return body, nil
		}
		if !IsRetryable(lastErr) {
			return nil, lastErr
		}

		// No sleep after the final attempt.
		if attempt < c.config.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to fetch %s: %w", url, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w",
		url, c.config.MaxAttempts, lastErr)
}

// doRequest performs one attempt.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return body, nil
}
