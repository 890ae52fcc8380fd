// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendDocstore = "docstore"
)

// Config holds configuration knobs for the HTTP server, store, auth and workers.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend   string `envconfig:"STORE_BACKEND" default:"memory"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	DocstoreURL    string `envconfig:"DOCSTORE_URL"`
	DocstoreAPIKey string `envconfig:"DOCSTORE_API_KEY"`

	AuthSecret    string        `envconfig:"AUTH_SECRET" default:"change-me"`
	AuthTokenTTL  time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"12h"`
	AuthRequired  bool          `envconfig:"AUTH_REQUIRED" default:"true"`
	AuthRateLimit float64       `envconfig:"AUTH_RATE_LIMIT" default:"5"`
	AuthRateBurst int           `envconfig:"AUTH_RATE_BURST" default:"10"`

	LowStockThreshold    int64    `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
	StockAuditSchedule   string   `envconfig:"STOCK_AUDIT_SCHEDULE" default:"@every 1h"`
	SessionPruneSchedule string   `envconfig:"SESSION_PRUNE_SCHEDULE" default:"@every 10m"`
	EventJournalSize     int      `envconfig:"EVENT_JOURNAL_SIZE" default:"256"`
	KafkaBrokers         []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic           string   `envconfig:"KAFKA_TOPIC" default:"cafe.inventory.changes"`

	TracingExporter string `envconfig:"TRACING_EXPORTER" default:"none"`
	OTLPEndpoint    string `envconfig:"OTLP_ENDPOINT" default:"localhost:4318"`

	InitialWorkerCount      int           `envconfig:"WORKER_COUNT" default:"2"`
	WorkerMin               int           `envconfig:"WORKER_MIN" default:"2"`
	WorkerMax               int           `envconfig:"WORKER_MAX" default:"6"`
	ScaleInterval           time.Duration `envconfig:"SCALE_INTERVAL" default:"500ms"`
	ScaleUpBacklogPerWorker int           `envconfig:"SCALE_UP_BACKLOG_PER_WORKER" default:"100"`
	ScaleDownIdleTicks      int           `envconfig:"SCALE_DOWN_IDLE_TICKS" default:"6"`
	QueueHighWatermark      int           `envconfig:"QUEUE_HIGH_WATERMARK" default:"5000"`
}

// Load collects configuration from environment with defaults.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if c.WorkerMin < 1 {
		c.WorkerMin = 1
	}
	if c.WorkerMax < c.WorkerMin {
		c.WorkerMax = c.WorkerMin
	}
	if c.InitialWorkerCount < c.WorkerMin {
		c.InitialWorkerCount = c.WorkerMin
	}
	if c.InitialWorkerCount > c.WorkerMax {
		c.InitialWorkerCount = c.WorkerMax
	}
	return c, c.validate()
}

// LoadFile reads a dotenv file into the process environment and then calls
// Load. A missing file is not an error. Variables already set win.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return Config{}, errors.Wrapf(err, "load env file %s", path)
			}
		}
	}
	return Load()
}

// MustLoad is Load for tests and tools that cannot recover from bad config.
func MustLoad() Config {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendDocstore:
		if c.DocstoreURL == "" {
			return errors.New("DOCSTORE_URL is required for the docstore backend")
		}
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		return errors.Errorf("unknown TRACING_EXPORTER %q", c.TracingExporter)
	}
	return nil
}
