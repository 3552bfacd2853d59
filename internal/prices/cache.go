package prices

import (
	"context"
	"sync"
	"time"

	"solana-wallet-watch/internal/domain"
)

// DefaultCacheTTL keeps quote reads inside DexScreener rate limits.
const DefaultCacheTTL = 60 * time.Second

// DefaultFetchSpacing is the minimum gap between upstream fetches, so a
// burst of cache misses does not hammer the API.
const DefaultFetchSpacing = 150 * time.Millisecond

// QuoteSource fetches quotes for a mint.
type QuoteSource interface {
	Quote(ctx context.Context, mint string) (*Quote, error)
}

// CachedClient memoizes quotes per mint for a short TTL. Errors are not
// cached, so a failed lookup is retried on the next call. Upstream fetches
// are serialized and spaced apart; cache hits never wait.
type CachedClient struct {
	src     QuoteSource
	ttl     time.Duration
	spacing time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedQuote

	fetchMu   sync.Mutex
	lastFetch time.Time
}

type cachedQuote struct {
	quote   *Quote
	fetched time.Time
}

// CacheOption configures a CachedClient.
type CacheOption func(*CachedClient)

// WithFetchSpacing sets the minimum gap between upstream fetches. Zero or
// negative disables the spacing.
func WithFetchSpacing(d time.Duration) CacheOption {
	return func(c *CachedClient) {
		c.spacing = d
	}
}

// NewCachedClient wraps a quote source with a TTL cache. ttl <= 0 uses
// DefaultCacheTTL.
func NewCachedClient(src QuoteSource, ttl time.Duration, opts ...CacheOption) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedClient{
		src:     src,
		ttl:     ttl,
		spacing: DefaultFetchSpacing,
		now:     time.Now,
		cache:   make(map[string]cachedQuote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote returns the cached quote when fresh, fetching otherwise.
func (c *CachedClient) Quote(ctx context.Context, mint string) (*Quote, error) {
	c.mu.RLock()
	if cached, ok := c.cache[mint]; ok && c.now().Sub(cached.fetched) < c.ttl {
		c.mu.RUnlock()
		return cached.quote, nil
	}
	c.mu.RUnlock()

	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	q, err := c.src.Quote(ctx, mint)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[mint] = cachedQuote{quote: q, fetched: c.now()}
	c.mu.Unlock()
	return q, nil
}

// pace holds the caller until the spacing since the previous upstream fetch
// has elapsed. The wall clock drives the spacing, not the injected now.
func (c *CachedClient) pace(ctx context.Context) error {
	if c.spacing <= 0 {
		return nil
	}
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if wait := c.spacing - time.Since(c.lastFetch); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastFetch = time.Now()
	return nil
}

// TokenPrice returns the spot price for a mint through the cache.
func (c *CachedClient) TokenPrice(ctx context.Context, mint string) (*domain.TokenPrice, error) {
	q, err := c.Quote(ctx, mint)
	if err != nil {
		return nil, err
	}
	return &q.Price, nil
}

// TokenMetadata returns token metadata for a mint through the cache.
func (c *CachedClient) TokenMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	q, err := c.Quote(ctx, mint)
	if err != nil {
		return nil, err
	}
	return &q.Meta, nil
}
