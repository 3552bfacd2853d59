package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"solana-wallet-watch/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.dexscreener.com"
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second

	solanaChainID = "solana"

	maxResponseBytes = 4 << 20
)

// ErrNoPairs marks a token with no tradable DexScreener pairs.
var ErrNoPairs = errors.New("no trading pairs found")

// Quote is one DexScreener read: the spot price plus token metadata taken
// from the deepest Solana pair.
type Quote struct {
	Price domain.TokenPrice
	Meta  domain.TokenMetadata
}

// Client fetches token quotes from the DexScreener public API. No API key
// required.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
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

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a DexScreener client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: 2.0,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pairsResponse is the raw /latest/dex/tokens response.
type pairsResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

type pairInfo struct {
	ChainID   string `json:"chainId"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Info struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

// Quote fetches all pairs for a mint and keeps the highest liquidity
// Solana pair. Returns ErrNoPairs when the token is not listed.
func (c *Client) Quote(ctx context.Context, mint string) (*Quote, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, mint)

	body, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var result pairsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal pairs: %w", err)
	}

	best := bestPair(result.Pairs)
	if best == nil {
		return nil, ErrNoPairs
	}

	marketCap := best.MarketCap
	if marketCap <= 0 {
		marketCap = best.FDV
	}

	return &Quote{
		Price: domain.TokenPrice{
			Mint:      mint,
			PriceUSD:  parseFloat(best.PriceUSD),
			Change24h: best.PriceChange.H24,
		},
		Meta: domain.TokenMetadata{
			Mint:         mint,
			Name:         best.BaseToken.Name,
			Symbol:       best.BaseToken.Symbol,
			MarketCapUSD: marketCap,
			LiquidityUSD: best.Liquidity.USD,
			ImageURL:     best.Info.ImageURL,
		},
	}, nil
}

// TokenPrice fetches the spot price for a mint.
func (c *Client) TokenPrice(ctx context.Context, mint string) (*domain.TokenPrice, error) {
	q, err := c.Quote(ctx, mint)
	if err != nil {
		return nil, err
	}
	return &q.Price, nil
}

// TokenMetadata fetches name, symbol and market context for a mint.
func (c *Client) TokenMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	q, err := c.Quote(ctx, mint)
	if err != nil {
		return nil, err
	}
	return &q.Meta, nil
}

// bestPair picks the highest liquidity Solana pair with a usable price.
func bestPair(pairs []pairInfo) *pairInfo {
	var best *pairInfo
	bestLiq := -1.0

	for i := range pairs {
		p := &pairs[i]
		if p.ChainID != solanaChainID {
			continue
		}
		if parseFloat(p.PriceUSD) <= 0 {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			best = p
			bestLiq = p.Liquidity.USD
		}
	}
	return best
}

// getJSON performs a GET with retries and exponential backoff. Client
// errors other than 429 fail fast; 429 and 5xx are retried.
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

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
