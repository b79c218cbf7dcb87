package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradeserver/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Exchange      ExchangeConfig
	Trading       TradingConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tradeserver"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"5007"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig is optional. An empty host disables the price cache entirely
// and the service talks to the exchange directly.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type ExchangeConfig struct {
	BaseURL           string        `envconfig:"EXCHANGE_BASE_URL" default:"https://fapi.binance.com"`
	QuoteCurrency     string        `envconfig:"EXCHANGE_QUOTE_CURRENCY" default:"USDT"`
	HTTPTimeout       time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"10s"`
	CandleInterval    string        `envconfig:"EXCHANGE_CANDLE_INTERVAL" default:"15m"`
	CandleLimit       int           `envconfig:"EXCHANGE_CANDLE_LIMIT" default:"1000"`
	RequestsPerMinute int           `envconfig:"EXCHANGE_REQUESTS_PER_MINUTE" default:"1200"`
	PriceCacheTTL     time.Duration `envconfig:"EXCHANGE_PRICE_CACHE_TTL" default:"2s"`
}

type TradingConfig struct {
	// DefaultTable receives positions when the client names no table or an invalid one
	DefaultTable string `envconfig:"TRADING_DEFAULT_TABLE" default:"positions"`

	// AutoCloseComputePnL controls whether positions closed automatically when the
	// opposite side opens get their exit price and PnL filled in. When false they are
	// only flipped to the closed status.
	AutoCloseComputePnL bool `envconfig:"TRADING_AUTO_CLOSE_COMPUTE_PNL" default:"false"`

	FeeRate float64 `envconfig:"TRADING_FEE_RATE" default:"0.0002"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	ProfitTrackerEnabled  bool          `envconfig:"WORKER_PROFIT_TRACKER_ENABLED" default:"true"`
	ProfitTrackerInterval time.Duration `envconfig:"WORKER_PROFIT_TRACKER_INTERVAL" default:"1m"`

	RecalculatorEnabled  bool          `envconfig:"WORKER_RECALCULATOR_ENABLED" default:"false"`
	RecalculatorInterval time.Duration `envconfig:"WORKER_RECALCULATOR_INTERVAL" default:"24h"`

	// Tables lists the position tables the background workers sweep
	Tables []string `envconfig:"WORKER_TABLES" default:"positions"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
