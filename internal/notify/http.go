package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/manav03panchal/timegrid/internal/config"
)

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// HTTPClient posts payloads with exponential backoff between attempts.
type HTTPClient struct {
	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	userAgent    string
}

// NewHTTPClient creates a client from the HTTP section of cfg.
func NewHTTPClient(cfg config.HTTPConfig) *HTTPClient {
	return &HTTPClient{
		client:       &http.Client{Timeout: cfg.Timeout},
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.RetryInitialDelay,
		maxDelay:     cfg.RetryMaxDelay,
		userAgent:    "timegrid/1.0",
	}
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// Send POSTs body to url. Transport errors, 429 and 5xx responses are
// retried; any other non-2xx status fails at once.
func (c *HTTPClient) Send(ctx context.Context, url, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialDelay
	b.MaxInterval = c.maxDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.maxRetries, 0))), ctx)

	result.Error = backoff.Retry(func() error {
		result.Attempts++
		status, err := c.post(ctx, url, contentType, body)
		result.StatusCode = status
		return err
	}, policy)

	result.Duration = time.Since(start)
	return result
}

func (c *HTTPClient) post(ctx context.Context, url, contentType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("rate limited (HTTP 429)")
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, snippet)
	default:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, snippet))
	}
}
