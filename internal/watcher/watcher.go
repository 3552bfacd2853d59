package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/alerting"
	"solana-wallet-watch/internal/analyze"
	"solana-wallet-watch/internal/classify"
	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/grouping"
	"solana-wallet-watch/internal/ledger"
	"solana-wallet-watch/internal/normalize"
	"solana-wallet-watch/internal/storage"
)

const (
	// DefaultLookupTimeout bounds one price or metadata lookup inside a
	// pass. A slow quote API must not stall transaction processing.
	DefaultLookupTimeout = 10 * time.Second

	// DefaultHistoryLimit bounds the swap history replayed per FIFO PnL
	// computation.
	DefaultHistoryLimit = 2000
)

// Options contains configuration for creating a Watcher.
type Options struct {
	Transactions TransactionSource
	Prices       PriceSource       // optional; alerts carry zero price without it
	Metadata     MetadataSource    // optional; alerts carry zero market cap without it

	Cursors     storage.CursorStore
	Alerted     storage.AlertedStore
	Ledger      storage.LedgerStore
	Subscribers storage.SubscriberStore
	Archive     storage.SwapArchiveStore // optional

	Classifier *classify.Classifier     // defaults to classify.New()
	Analyzer   *analyze.Analyzer        // defaults to a fresh analyzer over Archive
	Pending    *alerting.PendingBuffer  // defaults to the standard hold
	Sink       alerting.Sink            // defaults to alerting.LogSink

	WindowSeconds int64         // grouping window, default grouping.DefaultWindowSeconds
	LookupTimeout time.Duration // default DefaultLookupTimeout
	HistoryLimit  int           // default DefaultHistoryLimit
}

// Watcher is the per-account processing engine: it pulls fresh
// transactions past the cursor, classifies and groups them, applies the
// ledger, and routes alerts through the delay buffer to the sink.
type Watcher struct {
	transactions TransactionSource
	prices       PriceSource
	metadata     MetadataSource

	cursors     storage.CursorStore
	alerted     storage.AlertedStore
	ledger      storage.LedgerStore
	subscribers storage.SubscriberStore
	archive     storage.SwapArchiveStore

	classifier *classify.Classifier
	analyzer   *analyze.Analyzer
	pending    *alerting.PendingBuffer
	sink       alerting.Sink

	windowSeconds int64
	lookupTimeout time.Duration
	historyLimit  int
	now           func() time.Time
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.New()
	}

	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = analyze.New(analyze.Options{Archive: opts.Archive})
	}

	pending := opts.Pending
	if pending == nil {
		pending = alerting.NewPendingBuffer(0)
	}

	sink := opts.Sink
	if sink == nil {
		sink = alerting.LogSink{}
	}

	windowSeconds := opts.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = grouping.DefaultWindowSeconds
	}

	lookupTimeout := opts.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}

	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &Watcher{
		transactions:  opts.Transactions,
		prices:        opts.Prices,
		metadata:      opts.Metadata,
		cursors:       opts.Cursors,
		alerted:       opts.Alerted,
		ledger:        opts.Ledger,
		subscribers:   opts.Subscribers,
		archive:       opts.Archive,
		classifier:    classifier,
		analyzer:      analyzer,
		pending:       pending,
		sink:          sink,
		windowSeconds: windowSeconds,
		lookupTimeout: lookupTimeout,
		historyLimit:  historyLimit,
		now:           time.Now,
	}
}

// Analyzer exposes the deviation analyzer for baseline refresh jobs.
func (w *Watcher) Analyzer() *analyze.Analyzer {
	return w.analyzer
}

// PendingCount reports how many alerts sit in the delay buffer.
func (w *Watcher) PendingCount() int {
	return w.pending.Len()
}

// PassResult summarizes one processing pass over one account.
type PassResult struct {
	Account         string
	Fetched         int    // transactions returned by the source
	NewTransactions int    // transactions past the cursor
	Swaps           int    // classified swap events
	Groups          int
	Emitted         int    // alerts handed to the sink
	Queued          int    // pure-buy alerts parked in the delay buffer
	Absorbed        int    // sell groups merged into a parked buy

	// Non-fatal problems encountered mid-pass. The pass continues past
	// these; only fetch and cursor failures abort it.
	Errors []string
}

// ProcessOnce runs a full pass for one account: fetch, cut at the cursor,
// classify, group, apply, route. The cursor advances only after the whole
// batch is processed, so an aborted pass is retried from the same point.
func (w *Watcher) ProcessOnce(ctx context.Context, account *domain.WatchedAccount) (*PassResult, error) {
	result := &PassResult{Account: account.Address}

	txs, err := w.transactions.FetchRecent(ctx, account.Address)
	if err != nil {
		return result, fmt.Errorf("fetch %s: %w", account.Address, err)
	}
	result.Fetched = len(txs)
	if len(txs) == 0 {
		return result, nil
	}

	cursor, err := w.cursors.Get(ctx, account.Address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return result, fmt.Errorf("cursor %s: %w", account.Address, err)
	}

	fresh := cutAtCursor(txs, cursor)
	if cursor != "" && len(fresh) == len(txs) {
		log.Warn().
			Str("account", account.Address).
			Str("cursor", cursor).
			Int("batch", len(txs)).
			Msg("cursor not in batch, account outran one fetch; processing whole batch")
	}
	result.NewTransactions = len(fresh)

	if len(fresh) > 0 {
		events := w.classifyBatch(ctx, account.Address, fresh, result)
		result.Swaps = len(events)

		groups := grouping.GroupEvents(events, w.windowSeconds)
		result.Groups = len(groups)

		for i := range groups {
			w.processGroup(ctx, account, &groups[i], result)
		}
	}

	// Advance past everything fetched, including skipped and ambiguous
	// transactions; the pass is done with them either way.
	newest := txs[0].Signature
	if newest != "" && newest != cursor {
		if err := w.cursors.Set(ctx, account.Address, newest); err != nil {
			return result, fmt.Errorf("advance cursor %s: %w", account.Address, err)
		}
	}
	return result, nil
}

// cutAtCursor returns the transactions newer than the cursor signature in
// chronological order. An empty cursor, or a cursor absent from the batch,
// selects the whole batch; the caller logs the gap.
func cutAtCursor(txs []domain.RawTransaction, cursor string) []domain.RawTransaction {
	end := len(txs)
	if cursor != "" {
		for i := range txs {
			if txs[i].Signature == cursor {
				end = i
				break
			}
		}
	}

	fresh := make([]domain.RawTransaction, end)
	for i := 0; i < end; i++ {
		fresh[i] = txs[end-1-i]
	}
	return fresh
}

// classifyBatch normalizes and classifies fresh transactions, dropping
// failed, malformed, ambiguous, and already-alerted ones.
func (w *Watcher) classifyBatch(ctx context.Context, account string, txs []domain.RawTransaction, result *PassResult) []domain.SwapEvent {
	var events []domain.SwapEvent
	for i := range txs {
		tx := &txs[i]
		if tx.Failed {
			continue
		}
		if tx.Signature == "" || tx.Timestamp <= 0 {
			log.Debug().Str("account", account).Msg("skipping malformed transaction")
			continue
		}

		delta := normalize.Deltas(tx, account)
		if delta == nil {
			continue
		}

		event, rule := w.classifier.Classify(tx, account, delta)
		if event == nil {
			continue
		}
		log.Debug().
			Str("signature", event.Signature).
			Str("rule", rule).
			Str("side", event.Side).
			Msg("classified swap")

		seen, err := w.alerted.Has(ctx, event.Signature)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("alerted lookup %s: %v", event.Signature, err))
			continue
		}
		if seen {
			continue
		}

		events = append(events, *event)
	}
	return events
}

// processGroup derives market and deviation context for one group, applies
// its swaps to the ledger, and routes the resulting alert.
func (w *Watcher) processGroup(ctx context.Context, account *domain.WatchedAccount, g *domain.Group, result *PassResult) {
	price, meta := w.lookupMarket(ctx, g.Mint)

	alert := &domain.Alert{
		ID:           uuid.NewString(),
		Account:      g.Account,
		AccountLabel: account.Label,
		Mint:         g.Mint,
		Kind:         g.Kind(),

		TotalBuyTokenAmount:   g.TotalBuyTokenAmount,
		TotalSellTokenAmount:  g.TotalSellTokenAmount,
		TotalBuyNativeAmount:  g.TotalBuyNativeAmount,
		TotalSellNativeAmount: g.TotalSellNativeAmount,

		Signatures: append([]string(nil), g.Signatures...),
		FirstTime:  g.FirstTime,
		LastTime:   g.LastTime,
		CreatedAt:  w.now().Unix(),
	}
	if price != nil {
		alert.TokenPriceUSD = price.PriceUSD
	}
	if meta != nil {
		alert.TokenName = meta.Name
		alert.TokenSymbol = meta.Symbol
		alert.MarketCapUSD = meta.MarketCapUSD
	}

	// Deviation flags compare against the baseline as it stood before
	// this group's buys are folded in.
	if len(g.Buys) > 0 {
		alert.LowMarketCap, alert.VeryLowMarketCap = w.analyzer.FlagMarketCap(g.Account, alert.MarketCapUSD)
	}

	w.applyGroup(ctx, g, alert, result)

	if flips := analyze.InstantFlips(g); flips.Count > 0 {
		alert.InstantFlipCount = flips.Count
		alert.FastestFlipSecs = flips.FastestSeconds
		alert.FlipNativePnL = flips.TotalNativePnL
	}

	w.routeAlert(ctx, g, alert, result)
}

// applyGroup writes each member swap through the ledger and derives the
// position outcome: complete exit and FIFO-matched PnL on the sell side.
func (w *Watcher) applyGroup(ctx context.Context, g *domain.Group, alert *domain.Alert, result *PassResult) {
	events := g.Events()
	archived := make([]*domain.ArchivedSwap, 0, len(events))

	for i := range events {
		e := &events[i]

		var before float64
		if entry, err := w.ledger.Get(ctx, g.Account, g.Mint); err == nil {
			before = entry.Balance
		} else if !errors.Is(err, storage.ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("ledger get %s/%s: %v", g.Account, g.Mint, err))
		}

		delta := domain.LedgerDelta{
			Signature:    e.Signature,
			Timestamp:    e.Timestamp,
			TokenDelta:   e.TokenAmount,
			NativeAmount: e.NativeAmount,
			Price:        alert.TokenPriceUSD,
			IsBuy:        e.IsBuy(),
		}
		if e.IsSell() {
			delta.TokenDelta = -e.TokenAmount
		}

		after, err := w.ledger.Apply(ctx, g.Account, g.Mint, delta)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Applied by an earlier pass that died before alerting.
				// The event still participates in the alert; the balance
				// already reflects it.
				after = before
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("ledger apply %s: %v", e.Signature, err))
				continue
			}
		}

		if ledger.Inconsistent(after) {
			log.Warn().
				Str("account", g.Account).
				Str("mint", g.Mint).
				Float64("balance", after).
				Msg("negative balance beyond tolerance; position likely predates watching")
		}

		if e.IsSell() {
			if ledger.CompleteExit(before, after) {
				alert.CompleteExit = true
			}
		} else {
			w.analyzer.RecordBuy(g.Account, alert.MarketCapUSD, e.NativeAmount)
		}

		archived = append(archived, &domain.ArchivedSwap{
			Signature:     e.Signature,
			Timestamp:     e.Timestamp,
			Account:       e.Account,
			Mint:          e.Mint,
			Side:          e.Side,
			TokenAmount:   e.TokenAmount,
			NativeAmount:  e.NativeAmount,
			TokenPriceUSD: alert.TokenPriceUSD,
			MarketCapUSD:  alert.MarketCapUSD,
		})
	}

	if len(g.Sells) > 0 {
		w.attachPnL(ctx, g, alert, result)
	}

	if w.archive != nil && len(archived) > 0 {
		if err := w.archive.Insert(ctx, archived); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("archive insert: %v", err))
		}
	}
}

// attachPnL FIFO-matches every sell in the group against the (account,
// mint) history and folds the per-sell results into the alert.
func (w *Watcher) attachPnL(ctx context.Context, g *domain.Group, alert *domain.Alert, result *PassResult) {
	history, err := w.ledger.History(ctx, g.Account, g.Mint, w.historyLimit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("history %s/%s: %v", g.Account, g.Mint, err))
		return
	}

	var total, matched float64
	for i := range g.Sells {
		res, err := ledger.RealizedPnL(history, g.Sells[i].Signature)
		if err != nil {
			log.Debug().Err(err).Str("signature", g.Sells[i].Signature).Msg("pnl unavailable for sell")
			continue
		}
		total += res.PnL
		matched += res.MatchedCostBasis
		// Sells are chronological, so the last result carries the lifetime
		// figure.
		alert.CumulativePnL = res.CumulativePnL
	}

	alert.PnLNative = total
	if matched > 0 {
		alert.PnLPercent = total / matched * 100
		alert.PnLPercentDefined = true
	}
}

// lookupMarket fetches price and metadata with a bounded timeout. Either
// lookup may miss; the alert then carries zero market context and the
// deviation flags stay unset.
func (w *Watcher) lookupMarket(ctx context.Context, mint string) (*domain.TokenPrice, *domain.TokenMetadata) {
	var price *domain.TokenPrice
	var meta *domain.TokenMetadata

	if w.prices != nil {
		lctx, cancel := context.WithTimeout(ctx, w.lookupTimeout)
		p, err := w.prices.TokenPrice(lctx, mint)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("mint", mint).Msg("price lookup missed")
		} else {
			price = p
		}
	}

	if w.metadata != nil {
		lctx, cancel := context.WithTimeout(ctx, w.lookupTimeout)
		m, err := w.metadata.TokenMetadata(lctx, mint)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("mint", mint).Msg("metadata lookup missed")
		} else {
			meta = m
		}
	}

	return price, meta
}

// routeAlert emits the alert now, parks it, or merges it into a parked
// buy. Pure buys wait out the hold so a fast round-trip lands as one
// mixed alert instead of two.
func (w *Watcher) routeAlert(ctx context.Context, g *domain.Group, alert *domain.Alert, result *PassResult) {
	switch alert.Kind {
	case domain.AlertKindBuy:
		w.pending.Enqueue(alert, g.FirstTime)
		result.Queued++
		log.Debug().
			Str("account", g.Account).
			Str("mint", g.Mint).
			Msg("buy parked for the hold window")
		return

	case domain.AlertKindSell:
		absorbed := w.pending.AbsorbSell(g.Account, g.Mint, g.Signatures, func(parked *domain.Alert) {
			mergeSellIntoParked(parked, g, alert)
		})
		if absorbed {
			result.Absorbed++
			log.Debug().
				Str("account", g.Account).
				Str("mint", g.Mint).
				Msg("sell absorbed into parked buy")
			return
		}
	}

	w.emit(ctx, alert, result)
}

// mergeSellIntoParked folds a sell group into a parked buy alert, turning
// it into a mixed round-trip alert. The buffer has already appended the
// sell's signatures; this fills in totals, kind, PnL, and flip context.
func mergeSellIntoParked(parked *domain.Alert, g *domain.Group, sell *domain.Alert) {
	// Flip check against the parked buy's last event, before LastTime is
	// extended below.
	if gap := g.FirstTime - parked.LastTime; gap >= 0 && gap <= analyze.InstantFlipWindowSeconds {
		parked.InstantFlipCount++
		parked.FlipNativePnL += g.TotalSellNativeAmount - parked.TotalBuyNativeAmount
		if parked.FastestFlipSecs == 0 || gap < parked.FastestFlipSecs {
			parked.FastestFlipSecs = gap
		}
	}

	parked.Kind = domain.AlertKindMixed
	parked.TotalSellTokenAmount += g.TotalSellTokenAmount
	parked.TotalSellNativeAmount += g.TotalSellNativeAmount
	if g.LastTime > parked.LastTime {
		parked.LastTime = g.LastTime
	}

	parked.PnLNative += sell.PnLNative
	parked.PnLPercent = sell.PnLPercent
	parked.PnLPercentDefined = sell.PnLPercentDefined
	parked.CumulativePnL = sell.CumulativePnL
	if sell.CompleteExit {
		parked.CompleteExit = true
	}
}

// emit resolves the audience, hands the alert to the sink, and marks its
// signatures. Emission never retries; subscribers the sink reports as
// failed are deactivated. Signatures are marked even when the sink errors
// so a broken sink cannot make the same trade alert twice.
func (w *Watcher) emit(ctx context.Context, alert *domain.Alert, result *PassResult) {
	subs, err := w.subscribers.ListInterested(ctx, alert.Account, alert.Mint)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscribers %s/%s: %v", alert.Account, alert.Mint, err))
	}

	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}

	failed, err := w.sink.Emit(ctx, alert, ids)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("emit %s: %v", alert.ID, err))
		log.Error().Err(err).Str("alert", alert.ID).Msg("emission failed, not retrying")
	}
	for _, id := range failed {
		log.Warn().Str("subscriber", id).Msg("deactivating subscriber after delivery failure")
		if derr := w.subscribers.Deactivate(ctx, id); derr != nil && !errors.Is(derr, storage.ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("deactivate %s: %v", id, derr))
		}
	}

	w.markAlerted(ctx, alert, result)
	result.Emitted++
}

// markAlerted records every signature behind an alert in the alerted set.
func (w *Watcher) markAlerted(ctx context.Context, alert *domain.Alert, result *PassResult) {
	for _, sig := range alert.Signatures {
		if err := w.alerted.Mark(ctx, sig, alert.Account, alert.Mint); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("mark alerted %s: %v", sig, err))
		}
	}
}

// SweepPending emits every parked alert whose hold has elapsed. Entries
// leave the buffer whether or not emission succeeds.
func (w *Watcher) SweepPending(ctx context.Context) *PassResult {
	result := &PassResult{}
	for _, alert := range w.pending.Flush() {
		w.emit(ctx, alert, result)
	}
	return result
}

// DrainPending emits every parked alert immediately, due or not. Used on
// shutdown so held alerts are not lost.
func (w *Watcher) DrainPending(ctx context.Context) *PassResult {
	result := &PassResult{}
	for _, alert := range w.pending.FlushAll() {
		w.emit(ctx, alert, result)
	}
	return result
}
