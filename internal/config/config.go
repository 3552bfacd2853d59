package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Fields absent from the file
// keep the Default values; credential and DSN fields support ${VAR}
// environment expansion.
type Config struct {
	App         AppConfig        `yaml:"app"`
	Logging     LoggingConfig    `yaml:"logging"`
	Helius      HeliusConfig     `yaml:"helius"`
	Prices      PricesConfig     `yaml:"prices"`
	Watch       WatchConfig      `yaml:"watch"`
	Stores      StoresConfig     `yaml:"stores"`
	PubSub      PubSubConfig     `yaml:"pubsub"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Accounts    []AccountSeed    `yaml:"accounts"`
	Subscribers []SubscriberSeed `yaml:"subscribers"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type HeliusConfig struct {
	APIKey     string        `yaml:"api_key"` // ${HELIUS_API_KEY} by default
	BaseURL    string        `yaml:"base_url"`
	WSEndpoint string        `yaml:"ws_endpoint"` // empty disables the activity listener
	Timeout    time.Duration `yaml:"timeout"`
	BatchLimit int           `yaml:"batch_limit"`
	MaxRetries int           `yaml:"max_retries"`
}

type PricesConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// FetchSpacing is the minimum gap between upstream quote fetches.
	// Zero disables the spacing.
	FetchSpacing time.Duration `yaml:"fetch_spacing"`
}

type WatchConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	HoldDuration    time.Duration `yaml:"hold_duration"`
	GroupWindowSecs int64         `yaml:"group_window_secs"`
	Concurrency     int           `yaml:"concurrency"`
	LookupTimeout   time.Duration `yaml:"lookup_timeout"`

	// BaselineRefreshCron is the schedule for rebuilding deviation
	// baselines from the swap archive.
	BaselineRefreshCron string `yaml:"baseline_refresh_cron"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ClickHouseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type StoresConfig struct {
	Backend    string           `yaml:"backend"` // memory|postgres
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type MetricsConfig struct {
	Prometheus string `yaml:"prometheus"` // listen address, empty disables
}

// AccountSeed is a watched account declared in the config file. Seeds are
// upserted into the account store at startup.
type AccountSeed struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// SubscriberSeed is an alert subscriber declared in the config file.
type SubscriberSeed struct {
	ID       string   `yaml:"id"`
	Accounts []string `yaml:"accounts"`
	Mints    []string `yaml:"mints"`
}

// Default returns the configuration used for any field the file omits.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:            "wallet-watch",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Helius: HeliusConfig{
			APIKey:     "${HELIUS_API_KEY}",
			BaseURL:    "https://api.helius.xyz",
			Timeout:    30 * time.Second,
			BatchLimit: 50,
			MaxRetries: 3,
		},
		Prices: PricesConfig{
			BaseURL:      "https://api.dexscreener.com",
			CacheTTL:     60 * time.Second,
			FetchSpacing: 150 * time.Millisecond,
		},
		Watch: WatchConfig{
			PollInterval:        30 * time.Second,
			SweepInterval:       15 * time.Second,
			HoldDuration:        60 * time.Second,
			GroupWindowSecs:     120,
			Concurrency:         4,
			LookupTimeout:       10 * time.Second,
			BaselineRefreshCron: "*/10 * * * *",
		},
		Stores: StoresConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Prefix: "walletwatch",
				TTL:    30 * 24 * time.Hour,
			},
		},
		PubSub: PubSubConfig{
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "walletwatch.alerts",
			},
		},
		Metrics: MetricsConfig{
			Prometheus: ":9091",
		},
	}
}

// Load reads the YAML file at path over the defaults. A .env file next to
// the process is folded into the environment first, then ${VAR} references
// in credential fields are expanded.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load, falling back to pure defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = godotenv.Load()
		cfg := Default()
		cfg.expandEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// expandEnv resolves ${VAR} references in the fields that carry secrets
// or connection strings.
func (c *Config) expandEnv() {
	c.Helius.APIKey = os.ExpandEnv(c.Helius.APIKey)
	c.Helius.WSEndpoint = os.ExpandEnv(c.Helius.WSEndpoint)
	c.Stores.Postgres.DSN = os.ExpandEnv(c.Stores.Postgres.DSN)
	c.Stores.ClickHouse.DSN = os.ExpandEnv(c.Stores.ClickHouse.DSN)
	c.Stores.Redis.Password = os.ExpandEnv(c.Stores.Redis.Password)
	c.PubSub.NATS.URL = os.ExpandEnv(c.PubSub.NATS.URL)
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Helius.APIKey == "" {
		return fmt.Errorf("helius.api_key is required (set HELIUS_API_KEY or put the key in the file)")
	}

	switch c.Stores.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("stores.backend must be memory or postgres, got %q", c.Stores.Backend)
	}
	if c.Stores.Backend == "postgres" && c.Stores.Postgres.DSN == "" {
		return fmt.Errorf("stores.postgres.dsn is required with the postgres backend")
	}
	if c.Stores.ClickHouse.Enabled && c.Stores.ClickHouse.DSN == "" {
		return fmt.Errorf("stores.clickhouse.dsn is required when clickhouse is enabled")
	}
	if c.Stores.Redis.Enabled && c.Stores.Redis.Addr == "" {
		return fmt.Errorf("stores.redis.addr is required when redis is enabled")
	}
	if c.PubSub.NATS.Enabled && c.PubSub.NATS.URL == "" {
		return fmt.Errorf("pubsub.nats.url is required when nats is enabled")
	}

	// A sweep slower than the hold would let parked alerts overstay.
	if c.Watch.HoldDuration > 0 && c.Watch.SweepInterval > c.Watch.HoldDuration {
		return fmt.Errorf("watch.sweep_interval (%v) must not exceed watch.hold_duration (%v)",
			c.Watch.SweepInterval, c.Watch.HoldDuration)
	}

	for i, a := range c.Accounts {
		if a.Address == "" {
			return fmt.Errorf("accounts[%d]: address is required", i)
		}
	}
	for i, s := range c.Subscribers {
		if s.ID == "" {
			return fmt.Errorf("subscribers[%d]: id is required", i)
		}
	}
	return nil
}
