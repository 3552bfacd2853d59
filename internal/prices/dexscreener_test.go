package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testMint = "Mint111111111111111111111111111111111111111"

func TestClient_Quote_PicksDeepestPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/latest/dex/tokens/"+testMint) {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"pairs": [
				{
					"chainId": "solana",
					"priceUsd": "0.011",
					"liquidity": {"usd": 1500},
					"marketCap": 40000,
					"baseToken": {"name": "Shallow", "symbol": "SHLW"}
				},
				{
					"chainId": "solana",
					"priceUsd": "0.012",
					"liquidity": {"usd": 95000},
					"marketCap": 48000,
					"fdv": 52000,
					"baseToken": {"name": "Deep Token", "symbol": "DEEP"},
					"priceChange": {"h24": -12.5},
					"info": {"imageUrl": "https://img.example/deep.png"}
				},
				{
					"chainId": "ethereum",
					"priceUsd": "0.5",
					"liquidity": {"usd": 9000000},
					"baseToken": {"name": "Wrong Chain", "symbol": "WCH"}
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	q, err := client.Quote(ctx, testMint)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if q.Price.PriceUSD != 0.012 {
		t.Errorf("PriceUSD = %v, want 0.012", q.Price.PriceUSD)
	}
	if q.Price.Change24h != -12.5 {
		t.Errorf("Change24h = %v, want -12.5", q.Price.Change24h)
	}
	if q.Meta.Name != "Deep Token" || q.Meta.Symbol != "DEEP" {
		t.Errorf("metadata = %q/%q, want Deep Token/DEEP", q.Meta.Name, q.Meta.Symbol)
	}
	if q.Meta.MarketCapUSD != 48000 {
		t.Errorf("MarketCapUSD = %v, want 48000", q.Meta.MarketCapUSD)
	}
	if q.Meta.LiquidityUSD != 95000 {
		t.Errorf("LiquidityUSD = %v, want 95000", q.Meta.LiquidityUSD)
	}
	if q.Meta.ImageURL != "https://img.example/deep.png" {
		t.Errorf("ImageURL = %q", q.Meta.ImageURL)
	}
}

func TestClient_Quote_MarketCapFallsBackToFDV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"pairs": [
				{
					"chainId": "solana",
					"priceUsd": "1.5",
					"liquidity": {"usd": 1000},
					"fdv": 75000,
					"baseToken": {"name": "NoCap", "symbol": "NC"}
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	q, err := client.Quote(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Meta.MarketCapUSD != 75000 {
		t.Errorf("MarketCapUSD = %v, want FDV fallback 75000", q.Meta.MarketCapUSD)
	}
}

func TestClient_Quote_NoPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs": null}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.Quote(context.Background(), testMint); err != ErrNoPairs {
		t.Errorf("err = %v, want ErrNoPairs", err)
	}
}

func TestClient_Quote_SkipsUnpricedPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"pairs": [
				{"chainId": "solana", "priceUsd": "", "liquidity": {"usd": 500000}},
				{"chainId": "solana", "priceUsd": "0.002", "liquidity": {"usd": 100}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	q, err := client.Quote(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Price.PriceUSD != 0.002 {
		t.Errorf("PriceUSD = %v, want the priced pair 0.002", q.Price.PriceUSD)
	}
}

func TestClient_Quote_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs": [{"chainId": "solana", "priceUsd": "2", "liquidity": {"usd": 10}}]}`))
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
	)

	q, err := client.Quote(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Price.PriceUSD != 2 {
		t.Errorf("PriceUSD = %v, want 2", q.Price.PriceUSD)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestClient_Quote_ClientErrorFailsFast(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
	)

	if _, err := client.Quote(context.Background(), testMint); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts.Load())
	}
}
