// Package app builds the long-lived services behind the crawl and ingest
// commands and tears them down afterwards.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/extract"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/id/uuid"
	"github.com/JakeFAU/sitecrawler/internal/ingest"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
	httpreporter "github.com/JakeFAU/sitecrawler/internal/reporter/http"
	kafkareporter "github.com/JakeFAU/sitecrawler/internal/reporter/kafka"
	memoryreporter "github.com/JakeFAU/sitecrawler/internal/reporter/memory"
	memorystorage "github.com/JakeFAU/sitecrawler/internal/storage/memory"
	"github.com/JakeFAU/sitecrawler/internal/storage/postgres"
	"github.com/JakeFAU/sitecrawler/internal/store"
	memoryvisited "github.com/JakeFAU/sitecrawler/internal/visited/memory"
	redisvisited "github.com/JakeFAU/sitecrawler/internal/visited/redis"
)

const shutdownTimeout = 5 * time.Second

type closer func(context.Context) error

// App holds the configuration, the logger and every resource that must be
// released when a command finishes.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	closers []closer
	closed  bool
}

// New creates an App. Services are built lazily by the command that needs them.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

func (a *App) onClose(c closer) {
	a.closers = append(a.closers, c)
}

// BuildEngine assembles a crawl engine from the configured fetcher, reporter
// and visited-set backend.
func (a *App) BuildEngine() (*crawler.Engine, error) {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		AllowedDomain:     a.cfg.Crawler.AllowedDomain,
		UserAgent:         a.cfg.Fetch.UserAgent,
		Timeout:           a.cfg.Fetch.Timeout,
		FollowRedirects:   a.cfg.Fetch.FollowRedirects,
		MaxBodyBytes:      a.cfg.Fetch.MaxBodyBytes,
		RequestsPerSecond: a.cfg.Fetch.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	reporter, err := a.buildReporter()
	if err != nil {
		return nil, err
	}
	visited, err := a.buildVisitedSet()
	if err != nil {
		return nil, err
	}
	engine, err := crawler.NewEngine(a.cfg.EngineConfig(), fetcher, extract.New(), reporter, visited, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, nil
}

func (a *App) buildReporter() (crawler.Reporter, error) {
	switch a.cfg.Reporter.Kind {
	case config.ReporterHTTP:
		a.logger.Info("Using HTTP reporter", zap.String("endpoint", a.cfg.Reporter.Endpoint))
		r, err := httpreporter.New(httpreporter.Config{
			Endpoint:  a.cfg.Reporter.Endpoint,
			Timeout:   a.cfg.Reporter.Timeout,
			UserAgent: a.cfg.Fetch.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("init http reporter: %w", err)
		}
		return r, nil
	case config.ReporterKafka:
		a.logger.Info("Using Kafka reporter",
			zap.Strings("brokers", a.cfg.Reporter.KafkaBrokers),
			zap.String("topic", a.cfg.Reporter.KafkaTopic),
		)
		r, err := kafkareporter.New(kafkareporter.Config{
			Brokers: a.cfg.Reporter.KafkaBrokers,
			Topic:   a.cfg.Reporter.KafkaTopic,
			Timeout: a.cfg.Reporter.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init kafka reporter: %w", err)
		}
		a.onClose(func(context.Context) error { return r.Close() })
		return r, nil
	case config.ReporterMemory:
		a.logger.Info("Using in-memory reporter. Pages will be discarded on exit.")
		return memoryreporter.New(a.logger.Named("reporter")), nil
	default:
		return nil, fmt.Errorf("unknown reporter kind: %s", a.cfg.Reporter.Kind)
	}
}

func (a *App) buildVisitedSet() (crawler.VisitedSet, error) {
	switch a.cfg.Visited.Backend {
	case config.BackendMemory:
		return memoryvisited.New(), nil
	case config.BackendRedis:
		set, err := redisvisited.New(redisvisited.Config{
			Addr:      a.cfg.Visited.RedisAddr,
			Password:  a.cfg.Visited.RedisPassword,
			DB:        a.cfg.Visited.RedisDB,
			KeyPrefix: a.cfg.Visited.KeyPrefix,
			TTL:       a.cfg.Visited.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis visited set: %w", err)
		}
		a.logger.Info("Using Redis visited set", zap.String("key", set.Key()))
		a.onClose(set.Close)
		return set, nil
	default:
		return nil, fmt.Errorf("unknown visited backend: %s", a.cfg.Visited.Backend)
	}
}

// BuildIngestServer assembles the ingest API over the configured page store.
func (a *App) BuildIngestServer(ctx context.Context) (*ingest.Server, error) {
	repo, err := a.buildPageStore(ctx)
	if err != nil {
		return nil, err
	}
	srv, err := ingest.NewServer(ingest.Options{
		Store:       repo,
		IDGen:       uuid.New(),
		Clock:       system.New(),
		Logger:      a.logger.Named("ingest"),
		RecentLimit: a.cfg.Ingest.RecentLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("init ingest server: %w", err)
	}
	return srv, nil
}

func (a *App) buildPageStore(ctx context.Context) (store.PageRepository, error) {
	switch a.cfg.Ingest.Store {
	case config.BackendMemory:
		a.logger.Info("Using in-memory page store.")
		return memorystorage.NewPageStore(), nil
	case config.BackendPostgres:
		a.logger.Info("Connecting to PostgreSQL...", zap.String("table", a.cfg.Ingest.Table))
		pages, err := postgres.NewPageStore(ctx, postgres.PageStoreConfig{
			DSN:      a.cfg.Ingest.DatabaseURL,
			Table:    a.cfg.Ingest.Table,
			MaxConns: a.cfg.Ingest.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres page store: %w", err)
		}
		a.onClose(func(context.Context) error {
			pages.Close()
			return nil
		})
		if err := pages.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pages, nil
	default:
		return nil, fmt.Errorf("unknown ingest store: %s", a.cfg.Ingest.Store)
	}
}

// MetricsRouter serves /metrics and /healthz for the duration of a crawl.
func MetricsRouter() http.Handler {
	metrics.Init()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})
	return r
}

// StartMetricsServer serves MetricsRouter on metrics.addr until Close.
// It does nothing when the address is empty.
func (a *App) StartMetricsServer() {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	a.onClose(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})
}

// Closed reports whether Close has run.
func (a *App) Closed() bool {
	return a.closed
}

// Close releases resources in reverse order of acquisition and flushes the
// logger. Calls after the first are no-ops.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Error releasing resource", zap.Error(err))
		}
	}
	a.closers = nil
	// Sync fails on stdout/stderr for some platforms; nothing useful to do about it.
	_ = a.logger.Sync()
}
