package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-booking/internal/api/router"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/sandbox"
	appmigrations "github.com/wolfman30/clinic-booking/migrations"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "sandbox-api",
		Short: "Local clinic booking backend",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(appconfig.Load())
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run sandbox database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(appconfig.Load().SandboxDatabaseURL, func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migrate up: %w", err)
				}
				fmt.Println("migrations complete")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version: %w", err)
			}
			return withMigrator(appconfig.Load().SandboxDatabaseURL, func(m *migrate.Migrate) error {
				if err := m.Force(version); err != nil {
					return fmt.Errorf("force version: %w", err)
				}
				fmt.Printf("forced version to %d\n", version)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(databaseURL string, fn func(*migrate.Migrate) error) error {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return errors.New("SANDBOX_DATABASE_URL is required")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	return fn(m)
}

func runServer(cfg *appconfig.Config) error {
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic booking sandbox",
		"env", cfg.Env,
		"port", cfg.SandboxPort,
	)

	ctx := context.Background()
	pool := connectPostgresPool(ctx, cfg.SandboxDatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	metricsHandler, bookingMetrics := setupMetrics()
	handler := sandbox.NewHandler(sandboxConfig(cfg, pool, bookingMetrics, logger))

	r := router.New(&router.Config{
		Logger:             logger,
		Sandbox:            handler,
		Metrics:            bookingMetrics,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		JWTSecret:          cfg.SandboxJWTSecret,
		RateLimit:          cfg.SandboxRateLimit,
		RateBurst:          cfg.SandboxRateBurst,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.SandboxPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// sandboxConfig picks the store and order source from configuration: Postgres when a pool
// is available, live Razorpay orders when keys are set.
func sandboxConfig(cfg *appconfig.Config, pool *pgxpool.Pool, m *metrics.BookingMetrics, logger *logging.Logger) sandbox.Config {
	now := time.Now()
	sc := sandbox.Config{
		Store: sandbox.NewMemoryStore(),
		Fixtures: sandbox.DefaultFixtures(now, catalog.PaymentConfig{
			TaxPercentage: cfg.SandboxTaxPercentage,
			CreditCardFee: cfg.SandboxCardFeePercentage,
		}),
		Orders:    sandbox.LocalOrders{},
		JWTSecret: cfg.SandboxJWTSecret,
		Currency:  cfg.Currency,
		EchoOTP:   cfg.IsDevelopment(),
		Metrics:   m,
		Logger:    logger,
	}
	if pool != nil {
		sc.Store = sandbox.NewPostgresStore(pool)
	}
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		sc.Orders = sandbox.NewRazorpayOrders(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
		sc.KeyID = cfg.RazorpayKeyID
		sc.KeySecret = cfg.RazorpayKeySecret
		logger.Info("razorpay orders enabled", "key_id", cfg.RazorpayKeyID)
	}
	return sc
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// connectPostgresPool returns nil when no URL is configured or the database is
// unreachable; the sandbox then runs on the in-memory store.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool, using memory store", "error", err)
		return nil
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Error("failed to reach postgres, using memory store", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("connected to postgres")
	return pool
}
