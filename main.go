// main.go: product catalog HTTP server
// ============================================================
//  1. Load configuration (.env + environment)
//  2. Open the database chosen by DATABASE_URL, with hooks
//  3. Ensure the schema; failures flip readiness off and are retried
//  4. Serve the JSON API until SIGINT/SIGTERM, then drain
//
// ============================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Blank-import the drivers so they self-register with database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/product-catalog/api"
	"github.com/Skryldev/product-catalog/config"
	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/repo"
	"github.com/Skryldev/product-catalog/telemetry"
)

// schemaRetryInterval is how often a failed schema initialisation is retried
// while the server keeps answering 503.
const schemaRetryInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Configuration + logger ────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ── 2. Database ──────────────────────────────────────────────────────
	// The engine, and with it the dialect, is fixed here for the lifetime
	// of the process.
	driverName, _, err := db.ParseURL(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}

	dbCfg := cfg.DB()
	dbCfg.Hooks = []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQuery,
			LogArgs:            !cfg.Production(),
		}),
		db.NewMetricsHook(telemetry.QueryMetrics{}),
		db.NewTracingHook(telemetry.NewQueryTracer(nil, driverName)),
	}
	if otelMetrics, err := telemetry.NewOTelQueryMetrics(nil, driverName); err != nil {
		logger.Warn("otel query metrics disabled", "error", err)
	} else {
		dbCfg.Hooks = append(dbCfg.Hooks, db.NewMetricsHook(otelMetrics))
	}

	// An unreachable server is not fatal: the schema loop keeps product
	// routes answering 503 and retries until the database comes up.
	dbCfg.LazyConnect = true
	database, err := db.OpenURL(cfg.DatabaseURL, cfg.SQLitePath, dbCfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	dialect := database.Dialect().Name()
	if err := telemetry.RegisterDBStats(database.Raw(), dialect); err != nil {
		logger.Warn("pool metrics disabled", "error", err)
	}
	if err := database.Ping(context.Background()); err != nil {
		logger.Error("database unreachable at startup", "dialect", dialect, "error", err)
	} else {
		logger.Info("database connected", "dialect", dialect)
	}

	// ── 3. Schema ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := api.NewReadiness()
	go ensureSchema(ctx, database, ready, logger, schemaRetryInterval)

	// ── 4. HTTP ──────────────────────────────────────────────────────────
	cors := api.DefaultCORSOptions()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(api.Options{
			Repo:      repo.NewProductRepo(database),
			Readiness: ready,
			Logger:    logger,
			CORS:      cors,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureSchema creates the products table, retrying every interval until it
// succeeds or ctx ends. Each outcome is published through ready.
func ensureSchema(ctx context.Context, pool repo.Pool, ready *api.Readiness, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := repo.EnsureSchema(ctx, pool)
		ready.Set(err)
		if err == nil {
			logger.Info("schema ready")
			return
		}
		logger.Error("schema initialisation failed; product routes unavailable",
			"error", err, "retry_in", interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
