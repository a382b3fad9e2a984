package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting the binaries read. Nothing else in the module
// reads the environment directly.
type Config struct {
	AppEnv  string `env:"APP_ENV,default=dev"`
	AppName string `env:"APP_NAME,default=finance_tracker"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8000"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=30s"`
	CorsAllowOrigin    string        `env:"CORS_ALLOW_ORIGIN,default=http://localhost:5173"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST,default=localhost"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER,default=postgres"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME,default=finance"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST,default=localhost"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER,default=postgres"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME,default=finance"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace     string `env:"PROM_NAMESPACE,default=finance"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR"`

	OllamaEnabled                 bool          `env:"OLLAMA_ENABLED,default=false"`
	OllamaBaseURL                 string        `env:"OLLAMA_BASE_URL,default=http://localhost:11434"`
	OllamaModel                   string        `env:"OLLAMA_MODEL,default=llama3.1:8b"`
	OllamaTimeout                 time.Duration `env:"OLLAMA_TIMEOUT,default=30s"`
	OllamaCircuitBreakerThreshold int           `env:"OLLAMA_CIRCUIT_BREAKER_THRESHOLD,default=5"`
	OllamaCircuitBreakerTimeout   time.Duration `env:"OLLAMA_CIRCUIT_BREAKER_TIMEOUT,default=30s"`

	InsightsCacheTTL time.Duration `env:"INSIGHTS_CACHE_TTL,default=10m"`

	SeedOnStart bool   `env:"SEED_ON_START,default=false"`
	SeedCSVPath string `env:"SEED_CSV_PATH,default=data/transactions.csv"`

	EventsStream            string        `env:"EVENTS_STREAM,default=finance:tx-events"`
	EventsConsumerGroup     string        `env:"EVENTS_CONSUMER_GROUP,default=insight-refreshers"`
	EventsConsumerName      string        `env:"EVENTS_CONSUMER_NAME,default=worker-1"`
	EventsMaxRetries        int           `env:"EVENTS_MAX_RETRIES,default=3"`
	EventsVisibilityTimeout time.Duration `env:"EVENTS_VISIBILITY_TIMEOUT,default=30s"`
	EventsPollInterval      time.Duration `env:"EVENTS_POLL_INTERVAL,default=500ms"`
	EventsBatchSize         int64         `env:"EVENTS_BATCH_SIZE,default=10"`
	EventsMaxLen            int64         `env:"EVENTS_MAX_LEN,default=10000"`
	EventsEnableDLQ         bool          `env:"EVENTS_ENABLE_DLQ,default=true"`

	WorkerPoolSize int `env:"WORKER_POOL_SIZE,default=4"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	c := &Config{}
	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) Validate() error {
	if c.HttpListenAddr == "" {
		return errors.New("HTTP_LISTEN_ADDR must not be empty")
	}
	if c.OllamaEnabled {
		if c.OllamaTimeout <= 0 {
			return errors.New("OLLAMA_TIMEOUT must be positive when OLLAMA_ENABLED is set")
		}
		if c.OllamaBaseURL == "" {
			return errors.New("OLLAMA_BASE_URL must not be empty when OLLAMA_ENABLED is set")
		}
	}
	if c.WorkerPoolSize < 1 {
		return errors.New("WORKER_POOL_SIZE must be at least 1")
	}
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration. Used by tests and by binaries that
// build a Config by hand.
func Set(c *Config) {
	config = c
}
