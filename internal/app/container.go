// Package app wires configuration, storage, services and background workers
// into one process.
package app

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/catalog"
	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/directory"
	httpapi "github.com/fairyhunter13/cafe-inventory/internal/http"
	"github.com/fairyhunter13/cafe-inventory/internal/jobs"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/queue"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
	"github.com/fairyhunter13/cafe-inventory/internal/store/docstore"
	"github.com/fairyhunter13/cafe-inventory/internal/store/postgres"
	"github.com/fairyhunter13/cafe-inventory/internal/store/redisstore"
)

// Container holds the long-lived resources of the process.
type Container struct {
	cfg    config.Config
	store  store.Store
	pinger func(context.Context) error
	tracer obs.Tracer

	journal   *queue.Journal
	kafka     *queue.KafkaSink
	manager   *queue.Manager
	scheduler *jobs.Scheduler

	auth      *auth.Service
	catalog   *catalog.Service
	directory *directory.Service
	api       *httpapi.App

	traceShutdown func(context.Context) error
	cancel        context.CancelFunc
}

// NewContainer opens the configured store and builds every service on top
// of it. Nothing runs until Start.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	st, pinger, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewContainerWithStore(ctx, cfg, st, pinger)
}

// NewContainerWithStore builds every service on top of an open store and
// takes ownership of it: the store is closed on error and on Shutdown.
// pinger may be nil.
func NewContainerWithStore(ctx context.Context, cfg config.Config, st store.Store, pinger func(context.Context) error) (*Container, error) {
	c := &Container{cfg: cfg, store: st, pinger: pinger}

	tracer, shutdown, err := obs.SetupTracing(ctx, cfg.TracingExporter, cfg.OTLPEndpoint)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	c.tracer = tracer
	c.traceShutdown = shutdown

	c.journal = queue.NewJournal(cfg.EventJournalSize)
	var sink queue.Sink = c.journal
	if len(cfg.KafkaBrokers) > 0 {
		c.kafka = queue.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sink = queue.MultiSink{c.journal, c.kafka}
		obs.Logger.Infow("event_sink_kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	c.manager = queue.NewManager(cfg, queue.New(128), sink)

	hasher := auth.NewHasher(bcrypt.DefaultCost)
	c.auth = auth.NewService(st, hasher, cfg.AuthSecret, cfg.AuthTokenTTL)
	c.catalog = catalog.NewService(st, tracer, c.manager)
	c.directory = directory.NewService(st, hasher, tracer, c.manager)

	c.scheduler = jobs.NewScheduler()
	if cfg.StockAuditSchedule != "" {
		audit := jobs.NewStockAudit(c.catalog, cfg.LowStockThreshold)
		if err := c.scheduler.Add("stock_audit", cfg.StockAuditSchedule, audit); err != nil {
			c.closeResources(ctx)
			return nil, err
		}
	}
	if cfg.SessionPruneSchedule != "" {
		if err := c.scheduler.Add("session_prune", cfg.SessionPruneSchedule, jobs.NewSessionPrune(c.auth)); err != nil {
			c.closeResources(ctx)
			return nil, err
		}
	}

	c.api = httpapi.NewApp(cfg, httpapi.Deps{
		Auth:      c.auth,
		Catalog:   c.catalog,
		Directory: c.directory,
		Manager:   c.manager,
		Journal:   c.journal,
		Tracer:    tracer,
		Pinger:    pinger,
	})
	return c, nil
}

// OpenStore returns the store selected by cfg.StoreBackend together with a
// health check for it.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil, nil
	case config.BackendPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Ping, nil
	case config.BackendRedis:
		st, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Ping, nil
	case config.BackendDocstore:
		st, err := docstore.New(docstore.Config{URL: cfg.DocstoreURL, APIKey: cfg.DocstoreAPIKey})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		return nil, nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Start launches the event workers and the job scheduler.
func (c *Container) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.manager.Start(ctx)
	c.scheduler.Start()
	obs.Logger.Infow("container_started",
		"store_backend", c.cfg.StoreBackend,
		"worker_count", c.manager.WorkerCount(),
		"jobs", c.scheduler.Len(),
	)
}

// Handler returns the HTTP handler for the API.
func (c *Container) Handler() http.Handler { return httpapi.NewRouter(c.api) }

// Shutdown stops intake, drains pending events until ctx is done and then
// releases every resource. It is safe to call without Start.
func (c *Container) Shutdown(ctx context.Context) {
	c.api.StartShutdown()
	obs.Logger.Infow("shutdown_drain_begin", "backlog_size", c.manager.BacklogSize(), "worker_count", c.manager.WorkerCount())
	if c.cancel != nil {
		if c.manager.DrainUntil(ctx) {
			obs.Logger.Infow("shutdown_drain_complete")
		} else {
			obs.Logger.Warnw("shutdown_drain_timeout", "backlog_size", c.manager.BacklogSize())
		}
		c.scheduler.Stop(ctx)
		c.manager.Stop()
		c.cancel()
	}
	c.closeResources(ctx)
}

func (c *Container) closeResources(ctx context.Context) {
	if c.kafka != nil {
		if err := c.kafka.Close(); err != nil {
			obs.Logger.Errorw("kafka_close_failed", "error", err)
		}
	}
	if err := c.store.Close(); err != nil {
		obs.Logger.Errorw("store_close_failed", "error", err)
	}
	if c.traceShutdown != nil {
		if err := c.traceShutdown(ctx); err != nil {
			obs.Logger.Errorw("tracing_shutdown_failed", "error", err)
		}
	}
}

// Accessors for the CLI and tests.
func (c *Container) Config() config.Config         { return c.cfg }
func (c *Container) Store() store.Store            { return c.store }
func (c *Container) Auth() *auth.Service           { return c.auth }
func (c *Container) Catalog() *catalog.Service     { return c.catalog }
func (c *Container) Directory() *directory.Service { return c.directory }
func (c *Container) Journal() *queue.Journal       { return c.journal }
func (c *Container) Manager() *queue.Manager       { return c.manager }
