package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ListenerConfig configures WebSocket listener behavior.
type ListenerConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// NudgeBuffer is the nudge channel capacity.
	NudgeBuffer int
}

// DefaultListenerConfig returns default listener configuration.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		NudgeBuffer:       256,
	}
}

// ActivityListener subscribes to log mentions of watched accounts over the
// RPC WebSocket and nudges the poller when one shows on-chain activity.
// Polling remains the source of truth; a nudge only advances its schedule,
// so dropped or missed nudges cost latency, never data.
type ActivityListener struct {
	endpoint string
	config   ListenerConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// accounts maps subscription ID to account; watched is the inverse.
	accounts   map[int64]string
	watched    map[string]int64
	accountsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	nudges chan string

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewActivityListener connects to the WebSocket endpoint and starts the
// read and ping loops.
func NewActivityListener(ctx context.Context, endpoint string, config *ListenerConfig) (*ActivityListener, error) {
	cfg := DefaultListenerConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.NudgeBuffer <= 0 {
		cfg.NudgeBuffer = 256
	}

	l := &ActivityListener{
		endpoint:    endpoint,
		config:      cfg,
		accounts:    make(map[int64]string),
		watched:     make(map[string]int64),
		pendingSubs: make(map[uint64]chan int64),
		nudges:      make(chan string, cfg.NudgeBuffer),
		done:        make(chan struct{}),
	}

	if err := l.connect(ctx); err != nil {
		return nil, err
	}

	l.wg.Add(1)
	go l.readLoop()

	l.wg.Add(1)
	go l.pingLoop()

	return l, nil
}

// Nudges returns the channel carrying addresses of accounts with fresh
// on-chain activity.
func (l *ActivityListener) Nudges() <-chan string {
	return l.nudges
}

// connect establishes WebSocket connection.
func (l *ActivityListener) connect(ctx context.Context) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	l.conn = conn
	return nil
}

// Watch subscribes to log mentions of an account. Watching an already
// watched account is a no-op.
func (l *ActivityListener) Watch(ctx context.Context, account string) error {
	if l.closed.Load() {
		return fmt.Errorf("listener closed")
	}

	l.accountsMu.RLock()
	_, exists := l.watched[account]
	l.accountsMu.RUnlock()
	if exists {
		return nil
	}

	subID, err := l.subscribeMentions(ctx, account)
	if err != nil {
		return err
	}

	l.accountsMu.Lock()
	l.accounts[subID] = account
	l.watched[account] = subID
	l.accountsMu.Unlock()

	return nil
}

// subscribeMentions issues a logsSubscribe for one account and waits for
// the subscription ID.
func (l *ActivityListener) subscribeMentions(ctx context.Context, account string) (int64, error) {
	reqID := l.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{account}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	l.pendingSubsMu.Lock()
	l.pendingSubs[reqID] = confirmCh
	l.pendingSubsMu.Unlock()

	l.connMu.Lock()
	if l.conn == nil {
		l.connMu.Unlock()
		l.dropPending(reqID)
		return 0, fmt.Errorf("not connected")
	}

	l.conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
	err := l.conn.WriteJSON(req)
	l.connMu.Unlock()

	if err != nil {
		l.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		l.dropPending(reqID)
		return 0, fmt.Errorf("subscription timeout after 30s")
	case <-l.done:
		return 0, fmt.Errorf("listener closed")
	case <-ctx.Done():
		l.dropPending(reqID)
		return 0, ctx.Err()
	}
}

func (l *ActivityListener) dropPending(reqID uint64) {
	l.pendingSubsMu.Lock()
	delete(l.pendingSubs, reqID)
	l.pendingSubsMu.Unlock()
}

// Close closes the WebSocket connection.
func (l *ActivityListener) Close() error {
	if l.closed.Swap(true) {
		return nil // Already closed
	}

	close(l.done)

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.conn.Close()
	}
	l.connMu.Unlock()

	l.pendingSubsMu.Lock()
	for id, ch := range l.pendingSubs {
		close(ch)
		delete(l.pendingSubs, id)
	}
	l.pendingSubsMu.Unlock()

	l.wg.Wait()
	close(l.nudges)
	return nil
}

// readLoop reads messages from WebSocket and dispatches them.
func (l *ActivityListener) readLoop() {
	defer l.wg.Done()

	reconnectDelay := l.config.ReconnectDelay

	for !l.closed.Load() {
		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			select {
			case <-l.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if l.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !l.reconnecting.Swap(true) {
				go l.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > l.config.MaxReconnectDelay {
				reconnectDelay = l.config.MaxReconnectDelay
			}

			select {
			case <-l.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = l.config.ReconnectDelay

		l.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (l *ActivityListener) reconnect(delay time.Duration) {
	defer l.reconnecting.Store(false)

	if l.closed.Load() {
		return
	}

	select {
	case <-l.done:
		return
	case <-time.After(delay):
	}

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	l.resubscribeAll()
}

// resubscribeAll re-issues a subscription for every watched account after
// reconnect.
func (l *ActivityListener) resubscribeAll() {
	l.accountsMu.RLock()
	accounts := make([]string, 0, len(l.watched))
	for account := range l.watched {
		accounts = append(accounts, account)
	}
	l.accountsMu.RUnlock()

	for _, account := range accounts {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := l.subscribeMentions(ctx, account)
		cancel()

		if err != nil {
			log.Warn().Err(err).Str("account", account).Msg("resubscribe failed")
			continue
		}

		l.accountsMu.Lock()
		if oldSubID, ok := l.watched[account]; ok {
			delete(l.accounts, oldSubID)
		}
		l.accounts[newSubID] = account
		l.watched[account] = newSubID
		l.accountsMu.Unlock()
	}
}

// handleMessage processes incoming WebSocket message.
func (l *ActivityListener) handleMessage(message []byte) {
	// Try to parse as subscription response first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		l.handleSubscribeResponse(&resp)
		return
	}

	// Try to parse as notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" {
		l.handleLogsNotification(&notif)
		return
	}

	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		log.Warn().Int("code", errResp.Error.Code).Str("msg", errResp.Error.Message).Msg("websocket error response")
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (l *ActivityListener) handleSubscribeResponse(resp *wsSubscribeResponse) {
	l.pendingSubsMu.Lock()
	ch, ok := l.pendingSubs[resp.ID]
	if ok {
		delete(l.pendingSubs, resp.ID)
	}
	l.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleLogsNotification nudges the poller for the mentioned account.
// Failed transactions never produce swaps, so their mentions are ignored.
func (l *ActivityListener) handleLogsNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}
	if notif.Params.Result.Value.Err != nil {
		return
	}

	l.accountsMu.RLock()
	account, ok := l.accounts[notif.Params.Subscription]
	l.accountsMu.RUnlock()
	if !ok {
		return
	}

	// A nudge is a hint; the poll ticker is the backstop. When the buffer
	// is full the nudge is dropped rather than blocking the read loop.
	select {
	case l.nudges <- account:
	default:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (l *ActivityListener) pingLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.connMu.Lock()
			if l.conn != nil {
				l.conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
				if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			l.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
