package alerting

import (
	"context"

	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/domain"
)

// Sink delivers alerts to subscribers. Rendering and transport live behind
// this boundary.
type Sink interface {
	// Emit delivers one alert to each subscriber. Returns the IDs whose
	// delivery failed; a non-nil error means the alert could not be
	// delivered to anyone.
	Emit(ctx context.Context, alert *domain.Alert, subscriberIDs []string) (failed []string, err error)
}

// LogSink writes alerts to the log. Stands in when no broker is
// configured.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, alert *domain.Alert, subscriberIDs []string) ([]string, error) {
	log.Info().
		Str("kind", alert.Kind).
		Str("account", alert.Account).
		Str("mint", alert.Mint).
		Str("symbol", alert.TokenSymbol).
		Float64("buy_sol", alert.TotalBuyNativeAmount).
		Float64("sell_sol", alert.TotalSellNativeAmount).
		Float64("pnl_sol", alert.PnLNative).
		Bool("complete_exit", alert.CompleteExit).
		Int("subscribers", len(subscriberIDs)).
		Msg("alert")
	return nil, nil
}
