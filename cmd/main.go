// Command nilcore serves the compliance, FMV and reconsideration API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/adapters/http/api"
	"github.com/okian/nilcore/internal/adapters/http/swagger"
	"github.com/okian/nilcore/internal/adapters/repository"
	app "github.com/okian/nilcore/internal/app"
	"github.com/okian/nilcore/internal/config"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

const (
	readHeaderTimeout      = 5 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "nilcore exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, serves until ctx ends and shuts down gracefully.
func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	configureMetrics(cfg)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	svc := buildService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return eris.Wrap(err, "start service")
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := buildHTTPServer(ctx, cfg, svc, log)
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = svc.Stop(context.Background())
			return eris.Wrap(err, "http server")
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout; in-flight requests first, then queued recomputes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildStore opens the configured persistence backend.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		store, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return store, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func buildService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	opts := []app.Option{
		app.WithStore(store),
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithCohortSampleSize(cfg.CohortSampleSize),
		app.WithScoreVersion(cfg.ScoreVersion),
		app.WithDailyLimit(cfg.DailyLimit),
		app.WithRefreshInterval(cfg.RefreshInterval),
		app.WithStaleAfter(cfg.StaleAfter),
	}
	if !cfg.AnalysisEnabled {
		opts = append(opts, app.WithAnalyzer(nil))
	}
	return app.New(opts...)
}

// configureMetrics applies the metrics settings to the global manager.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithRefreshInterval(cfg.MetricsRefreshInterval),
		metrics.WithHistogramBuckets(cfg.MetricsHistogramBuckets),
		metrics.WithCustomLabels(cfg.MetricsLabels),
	)
}

func buildHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *http.Server {
	apiServer := api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithCORSOrigins(cfg.CORSAllowedOrigins),
		api.WithRateLimit(cfg.APIRatePerSecond, cfg.APIRateBurst),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithMount(func(r chi.Router) { swagger.Register(ctx, r) }),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(ctx),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes process gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and cohort gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemory(m.Alloc)
	metrics.UpdateSystemGoroutines(runtime.NumGoroutine())
}

// updateServiceMetrics reads Stats, which refreshes the queue and worker gauges itself.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.Stats(ctx)
	if n, ok := stats["cohortSize"].(int); ok {
		metrics.UpdateCohortSize(n)
	}
}
