package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"solana-wallet-watch/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.helius.xyz"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
	DefaultBatchLimit = 50

	maxResponseBytes = 10 << 20
)

// Client fetches enhanced transaction history from the Helius API.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	batchLimit  int
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithBatchLimit sets how many transactions one fetch requests.
func WithBatchLimit(n int) ClientOption {
	return func(c *Client) {
		c.batchLimit = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Helius enhanced transactions client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: 2.0,
		batchLimit:  DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRecent retrieves the newest transactions for an address. The API
// returns them newest first.
func (c *Client) FetchRecent(ctx context.Context, address string) ([]domain.RawTransaction, error) {
	return c.fetch(ctx, address, "")
}

// FetchBefore pages backwards through history, returning transactions
// older than the given signature, newest first.
func (c *Client) FetchBefore(ctx context.Context, address, before string) ([]domain.RawTransaction, error) {
	return c.fetch(ctx, address, before)
}

func (c *Client) fetch(ctx context.Context, address, before string) ([]domain.RawTransaction, error) {
	u := fmt.Sprintf("%s/v0/addresses/%s/transactions?api-key=%s&limit=%d",
		c.baseURL, address, url.QueryEscape(c.apiKey), c.batchLimit)
	if before != "" {
		u += "&before=" + url.QueryEscape(before)
	}

	body, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	var wire []enhancedTransaction
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}

	out := make([]domain.RawTransaction, 0, len(wire))
	for i := range wire {
		out = append(out, *wire[i].toDomain())
	}
	return out, nil
}

// getJSON performs a GET with retries and exponential backoff. 429 and
// 5xx responses are retried; other client errors fail fast.
func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
		default:
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
