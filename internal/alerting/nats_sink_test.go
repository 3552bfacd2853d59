package alerting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-watch/internal/domain"
)

func runTestWithInMemoryNATS(t *testing.T, testFunc func(*testing.T, *server.Server, string)) {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1 // random port
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	time.Sleep(100 * time.Millisecond)

	testFunc(t, s, s.ClientURL())
}

func TestNewNATSSink_EmptyURL(t *testing.T) {
	sink, err := NewNATSSink(NATSSinkOptions{})
	assert.Error(t, err)
	assert.Nil(t, sink)
}

func TestNATSSink_EmitFansOutPerSubscriber(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		sink, err := NewNATSSink(NATSSinkOptions{URL: url, SubjectPrefix: "test.alerts"})
		require.NoError(t, err)
		defer sink.Close()
		require.True(t, sink.Ready())

		nc, err := nats.Connect(url)
		require.NoError(t, err)
		defer nc.Close()

		subA, err := nc.SubscribeSync("test.alerts.sub-a")
		require.NoError(t, err)
		subB, err := nc.SubscribeSync("test.alerts.sub-b")
		require.NoError(t, err)
		require.NoError(t, nc.Flush())

		alert := &domain.Alert{
			ID:           "alert-1",
			Account:      "Trader11111111111111111111111111111111111111",
			Mint:         "Mint111111111111111111111111111111111111111",
			Kind:         domain.AlertKindMixed,
			PnLNative:    0.5,
			CompleteExit: true,
			Signatures:   []string{"sig1", "sig2"},
		}

		failed, err := sink.Emit(context.Background(), alert, []string{"sub-a", "sub-b"})
		require.NoError(t, err)
		assert.Empty(t, failed)

		for _, sub := range []*nats.Subscription{subA, subB} {
			msg, err := sub.NextMsg(2 * time.Second)
			require.NoError(t, err)

			var got domain.Alert
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, "alert-1", got.ID)
			assert.Equal(t, domain.AlertKindMixed, got.Kind)
			assert.True(t, got.CompleteExit)
			assert.Len(t, got.Signatures, 2)
		}
	})
}

func TestNATSSink_EmitNoSubscribers(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		sink, err := NewNATSSink(NATSSinkOptions{URL: url})
		require.NoError(t, err)
		defer sink.Close()

		failed, err := sink.Emit(context.Background(), &domain.Alert{ID: "alert-1"}, nil)
		require.NoError(t, err)
		assert.Empty(t, failed)
	})
}

func TestNATSSink_Close(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		sink, err := NewNATSSink(NATSSinkOptions{URL: url})
		require.NoError(t, err)

		require.NoError(t, sink.Close())
		assert.False(t, sink.Ready())
		// Closing twice is a no-op.
		assert.NoError(t, sink.Close())
	})
}
