// Package main runs the wallet watcher: it polls watched accounts for
// enhanced transaction history, classifies swaps, maintains position
// ledgers, and routes grouped alerts to subscribers.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/alerting"
	"solana-wallet-watch/internal/config"
	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/helius"
	"solana-wallet-watch/internal/observability"
	"solana-wallet-watch/internal/prices"
	"solana-wallet-watch/internal/solana"
	"solana-wallet-watch/internal/storage"
	chstore "solana-wallet-watch/internal/storage/clickhouse"
	"solana-wallet-watch/internal/storage/memory"
	"solana-wallet-watch/internal/storage/migrations"
	pgstore "solana-wallet-watch/internal/storage/postgres"
	redisstore "solana-wallet-watch/internal/storage/redis"
	"solana-wallet-watch/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	// Bootstrap logger until the config says otherwise.
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
	}
	setupLogging(cfg.Logging)

	log.Info().
		Str("app", cfg.App.Name).
		Str("backend", cfg.Stores.Backend).
		Dur("poll_interval", cfg.Watch.PollInterval).
		Msg("wallet watcher starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}
	defer cleanup()

	seedAccounts(ctx, stores.accounts, cfg.Accounts)
	seedSubscribers(ctx, stores.subscribers, cfg.Subscribers)

	quotes := prices.NewCachedClient(
		prices.NewClient(prices.WithBaseURL(cfg.Prices.BaseURL)),
		cfg.Prices.CacheTTL,
		prices.WithFetchSpacing(cfg.Prices.FetchSpacing),
	)

	transactions := helius.NewClient(cfg.Helius.APIKey,
		helius.WithBaseURL(cfg.Helius.BaseURL),
		helius.WithTimeout(cfg.Helius.Timeout),
		helius.WithBatchLimit(cfg.Helius.BatchLimit),
		helius.WithMaxRetries(cfg.Helius.MaxRetries),
	)

	var sink alerting.Sink = alerting.LogSink{}
	if cfg.PubSub.NATS.Enabled {
		natsSink, err := alerting.NewNATSSink(alerting.NATSSinkOptions{
			URL:           cfg.PubSub.NATS.URL,
			SubjectPrefix: cfg.PubSub.NATS.SubjectPrefix,
			Name:          cfg.App.Name,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("nats sink setup failed")
		}
		defer natsSink.Close()
		sink = natsSink
	}

	w := watcher.New(watcher.Options{
		Transactions: transactions,
		Prices:       quotes,
		Metadata:     quotes,

		Cursors:     stores.cursors,
		Alerted:     stores.alerted,
		Ledger:      stores.ledger,
		Subscribers: stores.subscribers,
		Archive:     stores.archive,

		Pending:       alerting.NewPendingBuffer(cfg.Watch.HoldDuration),
		Sink:          sink,
		WindowSeconds: cfg.Watch.GroupWindowSecs,
		LookupTimeout: cfg.Watch.LookupTimeout,
	})

	// The websocket listener is an accelerator; when it cannot connect the
	// poll ticker alone carries the watch.
	var listener *helius.ActivityListener
	var nudges <-chan string
	if cfg.Helius.WSEndpoint != "" {
		listener, err = helius.NewActivityListener(ctx, cfg.Helius.WSEndpoint, nil)
		if err != nil {
			log.Warn().Err(err).Msg("activity listener unavailable, polling only")
			listener = nil
		} else {
			defer listener.Close()
			if err := watchAccounts(ctx, listener, stores.accounts); err != nil {
				log.Warn().Err(err).Msg("some mention subscriptions failed")
			}
			nudges = listener.Nudges()
		}
	}

	sched := watcher.NewScheduler(watcher.SchedulerOptions{
		Watcher:       w,
		Accounts:      stores.accounts,
		PollInterval:  cfg.Watch.PollInterval,
		SweepInterval: cfg.Watch.SweepInterval,
		Concurrency:   cfg.Watch.Concurrency,
		Nudges:        nudges,
	})

	jobs := startJobs(cfg, w, stores, listener)
	defer jobs.Stop()

	if cfg.Metrics.Prometheus != "" {
		go serveMetrics(cfg.Metrics.Prometheus)
	}

	// First signal starts the graceful shutdown; a second one, or the
	// shutdown timeout, forces exit.
	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case <-sigCh:
			log.Warn().Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(cfg.App.ShutdownTimeout):
			log.Warn().Dur("timeout", cfg.App.ShutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = sched.Run(ctx)
	done <- err

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("scheduler failed")
	}
	log.Info().Msg("shutdown complete")
}

// setupLogging configures the global logger from the config.
func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	}
}

// appStores holds every storage implementation behind the engine.
type appStores struct {
	cursors     storage.CursorStore
	alerted     storage.AlertedStore
	ledger      storage.LedgerStore
	accounts    storage.AccountStore
	subscribers storage.SubscriberStore
	archive     storage.SwapArchiveStore // nil without ClickHouse
}

// createStores builds the configured backend. The ClickHouse archive and
// the Redis alerted set are optional layers over either backend.
func createStores(ctx context.Context, cfg *config.Config) (*appStores, func(), error) {
	stores := &appStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Stores.Backend {
	case "memory":
		stores.cursors = memory.NewCursorStore()
		stores.alerted = memory.NewAlertedStore()
		stores.ledger = memory.NewLedgerStore()
		stores.accounts = memory.NewAccountStore()
		stores.subscribers = memory.NewSubscriberStore()

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
		stores.alerted = pgstore.NewAlertedStore(pool)
		stores.ledger = pgstore.NewLedgerStore(pool)
		stores.accounts = pgstore.NewAccountStore(pool)
		stores.subscribers = pgstore.NewSubscriberStore(pool)
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

	if cfg.Stores.Redis.Enabled {
		client, err := redisstore.NewClient(ctx, cfg.Stores.Redis.Addr, cfg.Stores.Redis.Password, cfg.Stores.Redis.DB)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })
		stores.alerted = redisstore.NewAlertedStore(client, cfg.Stores.Redis.Prefix, cfg.Stores.Redis.TTL)
	}

	return stores, cleanup, nil
}

// seedAccounts registers the accounts declared in the config. Addresses
// that do not decode to 32 bytes are skipped; off-curve addresses are
// accepted with a warning since they are usually program vaults.
func seedAccounts(ctx context.Context, store storage.AccountStore, seeds []config.AccountSeed) {
	for _, seed := range seeds {
		if err := solana.ValidateAddress(seed.Address); err != nil {
			log.Warn().Err(err).Str("address", seed.Address).Msg("skipping invalid seed account")
			continue
		}
		if !solana.IsWalletAddress(seed.Address) {
			log.Warn().Str("address", seed.Address).Msg("seed address is off-curve, likely a program account")
		}

		err := store.Add(ctx, &domain.WatchedAccount{
			Address: seed.Address,
			Label:   seed.Label,
			AddedAt: time.Now().Unix(),
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			log.Error().Err(err).Str("address", seed.Address).Msg("seeding account failed")
		}
	}
}

// seedSubscribers upserts the subscribers declared in the config.
func seedSubscribers(ctx context.Context, store storage.SubscriberStore, seeds []config.SubscriberSeed) {
	for _, seed := range seeds {
		err := store.Upsert(ctx, &domain.Subscriber{
			ID:       seed.ID,
			Accounts: seed.Accounts,
			Mints:    seed.Mints,
			Active:   true,
		})
		if err != nil {
			log.Error().Err(err).Str("subscriber", seed.ID).Msg("seeding subscriber failed")
		}
	}
}

// watchAccounts subscribes the listener to mentions of every watched
// account. Returns the first subscription error; the rest are logged.
func watchAccounts(ctx context.Context, listener *helius.ActivityListener, accounts storage.AccountStore) error {
	list, err := accounts.List(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, a := range list {
		if err := listener.Watch(ctx, a.Address); err != nil {
			log.Warn().Err(err).Str("account", a.Address).Msg("mention subscription failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// startJobs schedules the periodic maintenance jobs: rebuilding deviation
// baselines from the archive and resubscribing the listener to accounts
// added after startup.
func startJobs(cfg *config.Config, w *watcher.Watcher, stores *appStores, listener *helius.ActivityListener) *cron.Cron {
	c := cron.New()

	if stores.archive != nil && cfg.Watch.BaselineRefreshCron != "" {
		_, err := c.AddFunc(cfg.Watch.BaselineRefreshCron, func() {
			refreshBaselines(w, stores.accounts)
		})
		if err != nil {
			log.Error().Err(err).Str("spec", cfg.Watch.BaselineRefreshCron).Msg("baseline refresh schedule rejected")
		}
	}

	if listener != nil {
		_, err := c.AddFunc("*/5 * * * *", func() {
			resyncListener(listener, stores.accounts)
		})
		if err != nil {
			log.Error().Err(err).Msg("listener resync schedule rejected")
		}
	}

	c.Start()
	return c
}

// refreshBaselines rebuilds every watched account's buy baseline from the
// swap archive.
func refreshBaselines(w *watcher.Watcher, accounts storage.AccountStore) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	status := "success"

	list, err := accounts.List(ctx)
	if err == nil {
		addrs := make([]string, 0, len(list))
		for _, a := range list {
			addrs = append(addrs, a.Address)
		}
		err = w.Analyzer().RefreshBaseline(ctx, addrs)
	}
	if err != nil {
		status = "error"
		log.Warn().Err(err).Msg("baseline refresh incomplete")
	}
	observability.RecordJobRun("baseline_refresh", status, time.Since(start).Seconds())
}

// resyncListener keeps the mention subscriptions aligned with the account
// store, covering accounts inserted while the process runs.
func resyncListener(listener *helius.ActivityListener, accounts storage.AccountStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	status := "success"
	if err := watchAccounts(ctx, listener, accounts); err != nil {
		status = "error"
	}
	observability.RecordJobRun("listener_resync", status, time.Since(start).Seconds())
}

// serveMetrics exposes liveness and Prometheus metrics over HTTP.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
