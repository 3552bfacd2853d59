package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/domain"
)

// DefaultSubjectPrefix roots the per-subscriber alert subjects.
const DefaultSubjectPrefix = "walletwatch.alerts"

// NATSSinkOptions configures a NATSSink.
type NATSSinkOptions struct {
	URL           string
	SubjectPrefix string // defaults to DefaultSubjectPrefix
	Name          string // connection name, defaults to "wallet-watch"
}

// NATSSink publishes alerts to per-subscriber NATS subjects
// (<prefix>.<subscriberID>). Delivery consumers render and forward from
// there.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to NATS.
func NewNATSSink(opts NATSSinkOptions) (*NATSSink, error) {
	if opts.URL == "" {
		return nil, errors.New("nats url is required")
	}

	prefix := opts.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	name := opts.Name
	if name == "" {
		name = "wallet-watch"
	}

	connOpts := []nats.Option{
		nats.Name(name),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(opts.URL, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSSink{nc: nc, prefix: prefix}, nil
}

// Emit publishes the alert once per subscriber. Publish failures are
// collected per subscriber rather than aborting the batch.
func (s *NATSSink) Emit(_ context.Context, alert *domain.Alert, subscriberIDs []string) ([]string, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}

	var failed []string
	for _, id := range subscriberIDs {
		subject := s.prefix + "." + id
		if err := s.nc.Publish(subject, payload); err != nil {
			log.Error().Err(err).Str("subscriber", id).Str("subject", subject).Msg("alert publish failed")
			failed = append(failed, id)
		}
	}

	if len(failed) == len(subscriberIDs) && len(subscriberIDs) > 0 {
		return failed, errors.New("all publishes failed")
	}
	return failed, nil
}

// Ready reports whether the connection is established.
func (s *NATSSink) Ready() bool {
	if s.nc == nil {
		return false
	}
	return s.nc.Status() == nats.CONNECTED
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	if s.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := s.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
		s.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}
	s.nc.Close()
	log.Info().Msg("NATS connection closed gracefully")
	return nil
}
