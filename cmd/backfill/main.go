// Package main backfills position ledgers from transaction history. It
// pages backwards through an account's enhanced transactions, classifies
// the swaps, and replays them into the ledger and the swap archive so a
// newly watched trader starts with full FIFO context instead of an empty
// book.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/classify"
	"solana-wallet-watch/internal/config"
	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/helius"
	"solana-wallet-watch/internal/normalize"
	"solana-wallet-watch/internal/solana"
	"solana-wallet-watch/internal/storage"
	chstore "solana-wallet-watch/internal/storage/clickhouse"
	"solana-wallet-watch/internal/storage/memory"
	"solana-wallet-watch/internal/storage/migrations"
	pgstore "solana-wallet-watch/internal/storage/postgres"
)

const archiveBatchSize = 500

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	account := flag.String("account", "", "Account address to backfill (required)")
	pages := flag.Int("pages", 10, "Maximum history pages to fetch (0 = until exhausted)")
	setCursor := flag.Bool("set-cursor", true, "Advance the account cursor past the backfilled range")
	outputJSON := flag.Bool("json", false, "Print the summary as JSON")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	if *account == "" {
		log.Fatal().Msg("--account is required")
	}
	if err := solana.ValidateAddress(*account); err != nil {
		log.Fatal().Err(err).Str("account", *account).Msg("invalid account address")
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("interrupting backfill")
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}
	defer cleanup()

	if cfg.Stores.Backend == "memory" {
		log.Warn().Msg("memory backend: the backfilled state dies with this process")
	}

	client := helius.NewClient(cfg.Helius.APIKey,
		helius.WithBaseURL(cfg.Helius.BaseURL),
		helius.WithTimeout(cfg.Helius.Timeout),
		helius.WithBatchLimit(cfg.Helius.BatchLimit),
		helius.WithMaxRetries(cfg.Helius.MaxRetries),
	)

	summary, err := run(ctx, client, stores, *account, *pages, *setCursor)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill failed")
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	} else {
		printSummary(summary)
	}
}

// Summary reports what one backfill run did.
type Summary struct {
	Account      string `json:"account"`
	Pages        int    `json:"pages"`
	Transactions int    `json:"transactions"`
	Swaps        int    `json:"swaps"`
	Buys         int    `json:"buys"`
	Sells        int    `json:"sells"`
	Applied      int    `json:"applied"`
	Duplicates   int    `json:"duplicates"`
	Archived     int    `json:"archived"`
	OldestTime   int64  `json:"oldest_time,omitempty"`
	NewestTime   int64  `json:"newest_time,omitempty"`
	CursorSet    bool   `json:"cursor_set"`
}

// backfillStores is the subset of storage a backfill touches.
type backfillStores struct {
	cursors storage.CursorStore
	ledger  storage.LedgerStore
	archive storage.SwapArchiveStore // nil without ClickHouse
}

func createStores(ctx context.Context, cfg *config.Config) (*backfillStores, func(), error) {
	stores := &backfillStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Stores.Backend {
	case "memory":
		stores.cursors = memory.NewCursorStore()
		stores.ledger = memory.NewLedgerStore()

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Stores.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, err
		}

		stores.cursors = pgstore.NewCursorStore(pool)
		stores.ledger = pgstore.NewLedgerStore(pool)
	}

	if cfg.Stores.ClickHouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Stores.ClickHouse.DSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })
		stores.archive = chstore.NewSwapArchiveStore(conn)
	}

	return stores, cleanup, nil
}

// run pages backwards through history, then replays the collected swaps
// oldest first so the ledger builds up in trade order.
func run(ctx context.Context, client *helius.Client, stores *backfillStores, account string, maxPages int, setCursor bool) (*Summary, error) {
	summary := &Summary{Account: account}
	classifier := classify.New()

	var all []domain.RawTransaction
	before := ""
	for maxPages <= 0 || summary.Pages < maxPages {
		var (
			txs []domain.RawTransaction
			err error
		)
		if before == "" {
			txs, err = client.FetchRecent(ctx, account)
		} else {
			txs, err = client.FetchBefore(ctx, account, before)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", summary.Pages+1, err)
		}
		if len(txs) == 0 {
			break
		}

		summary.Pages++
		all = append(all, txs...)
		before = txs[len(txs)-1].Signature

		log.Info().
			Int("page", summary.Pages).
			Int("transactions", len(txs)).
			Str("before", before).
			Msg("page fetched")
	}
	summary.Transactions = len(all)
	if len(all) == 0 {
		return summary, nil
	}

	// Pages arrive newest first; replay runs oldest first. Historical
	// price lookups are not available, so ledger deltas and archive rows
	// carry zero market context and only native amounts feed baselines.
	var archived []*domain.ArchivedSwap
	for i := len(all) - 1; i >= 0; i-- {
		tx := &all[i]
		if tx.Failed || tx.Signature == "" || tx.Timestamp <= 0 {
			continue
		}

		tokenDelta := normalize.Deltas(tx, account)
		if tokenDelta == nil {
			continue
		}
		event, _ := classifier.Classify(tx, account, tokenDelta)
		if event == nil {
			continue
		}

		summary.Swaps++
		if event.IsBuy() {
			summary.Buys++
		} else {
			summary.Sells++
		}
		if summary.OldestTime == 0 || event.Timestamp < summary.OldestTime {
			summary.OldestTime = event.Timestamp
		}
		if event.Timestamp > summary.NewestTime {
			summary.NewestTime = event.Timestamp
		}

		delta := domain.LedgerDelta{
			Signature:    event.Signature,
			Timestamp:    event.Timestamp,
			TokenDelta:   event.TokenAmount,
			NativeAmount: event.NativeAmount,
			IsBuy:        event.IsBuy(),
		}
		if event.IsSell() {
			delta.TokenDelta = -event.TokenAmount
		}

		if _, err := stores.ledger.Apply(ctx, account, event.Mint, delta); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				summary.Duplicates++
				continue
			}
			return summary, fmt.Errorf("apply %s: %w", event.Signature, err)
		}
		summary.Applied++

		if stores.archive != nil {
			archived = append(archived, &domain.ArchivedSwap{
				Signature:    event.Signature,
				Timestamp:    event.Timestamp,
				Account:      event.Account,
				Mint:         event.Mint,
				Side:         event.Side,
				TokenAmount:  event.TokenAmount,
				NativeAmount: event.NativeAmount,
			})
			if len(archived) >= archiveBatchSize {
				if err := stores.archive.Insert(ctx, archived); err != nil {
					return summary, fmt.Errorf("archive insert: %w", err)
				}
				summary.Archived += len(archived)
				archived = archived[:0]
			}
		}
	}

	if stores.archive != nil && len(archived) > 0 {
		if err := stores.archive.Insert(ctx, archived); err != nil {
			return summary, fmt.Errorf("archive insert: %w", err)
		}
		summary.Archived += len(archived)
	}

	// Advancing the cursor keeps the live watcher from re-alerting the
	// backfilled range on its first pass.
	if setCursor {
		newest := all[0].Signature
		if err := stores.cursors.Set(ctx, account, newest); err != nil {
			return summary, fmt.Errorf("set cursor: %w", err)
		}
		summary.CursorSet = true
		log.Info().Str("cursor", newest).Msg("cursor advanced past backfilled range")
	}

	return summary, nil
}

func printSummary(s *Summary) {
	fmt.Printf("\n=== Backfill Summary ===\n")
	fmt.Printf("Account:       %s\n", s.Account)
	fmt.Printf("Pages:         %d\n", s.Pages)
	fmt.Printf("Transactions:  %d\n", s.Transactions)
	fmt.Printf("Swaps:         %d (%d buys, %d sells)\n", s.Swaps, s.Buys, s.Sells)
	fmt.Printf("Applied:       %d (%d duplicates skipped)\n", s.Applied, s.Duplicates)
	fmt.Printf("Archived:      %d\n", s.Archived)
	if s.Swaps > 0 {
		fmt.Printf("Range:         %s .. %s\n",
			time.Unix(s.OldestTime, 0).UTC().Format(time.RFC3339),
			time.Unix(s.NewestTime, 0).UTC().Format(time.RFC3339))
	}
	fmt.Printf("Cursor set:    %v\n", s.CursorSet)
}
