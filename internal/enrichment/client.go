// Package enrichment queues imported companies with the remote enrichment service.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rpattn/tradeflow/internal/ingestion"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = time.Second
)

// Client posts enrichment requests with retry on network errors, 5xx and 429.
type Client struct {
	endpoint       string
	apiKey         string
	http           *http.Client
	maxRetries     int
	initialBackoff time.Duration
}

var _ ingestion.CompanyEnricher = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithRetry overrides the retry count and the first backoff. The backoff doubles per attempt.
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if initialBackoff > 0 {
			c.initialBackoff = initialBackoff
		}
	}
}

func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		apiKey:         apiKey,
		http:           &http.Client{Timeout: 30 * time.Second},
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type enqueueRequest struct {
	CompanyName string   `json:"companyName"`
	Departments []string `json:"departments"`
}

// Enqueue asks the service to enrich one company.
func (c *Client) Enqueue(ctx context.Context, companyName string, departments []string) error {
	body, err := json.Marshal(enqueueRequest{CompanyName: companyName, Departments: departments})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		retryable, err := c.send(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			break
		}

		slog.WarnContext(ctx, "company enrichment request failed, retrying",
			"company", companyName,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
			backoff *= 2
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("enqueue %q: %w", companyName, lastErr)
}

func (c *Client) send(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/enrich", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("enrichment service returned status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("enrichment service returned non-retryable status %d", resp.StatusCode)
	}
}
