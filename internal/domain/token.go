package domain

// TokenPrice is a spot price quote for a token.
type TokenPrice struct {
	Mint      string  `json:"mint"`
	PriceUSD  float64 `json:"price_usd"`
	Change24h float64 `json:"change_24h"` // percent move over the last 24h
}

// TokenMetadata describes a token as known to the price aggregator.
type TokenMetadata struct {
	Mint         string  `json:"mint"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	ImageURL     string  `json:"image_url,omitempty"`
}
