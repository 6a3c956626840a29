package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/sandbox"
	"github.com/wolfman30/clinic-booking/internal/screens"
	"github.com/wolfman30/clinic-booking/internal/session"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// app is the per-invocation wiring shared by every command.
type app struct {
	cfg      *appconfig.Config
	logger   *logging.Logger
	api      *backend.Client
	session  *session.Provider
	catalog  *catalog.Reader
	metrics  *metrics.BookingMetrics
	registry *prometheus.Registry
	close    func()
}

func openSessionStore(cfg *appconfig.Config) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case "", "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		return session.NewRedisStore(client, ""), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q (want memory or redis)", cfg.SessionStore)
	}
}

func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	store, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(registry)
	api := backend.NewClient(cfg.APIBaseURL(), cfg.RequestTimeout, logger).WithMetrics(m)
	provider := session.NewProvider(store, api, logger)
	api.WithTokenSource(provider)

	if err := provider.Restore(ctx); err != nil {
		logger.Warn("session restore failed", "error", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		api:      api,
		session:  provider,
		catalog:  catalog.NewReader(api),
		metrics:  m,
		registry: registry,
		close:    closeStore,
	}, nil
}

// bookingRun is one wizard instance wired to the sandbox gateway.
type bookingRun struct {
	wizard  *screens.Wizard
	auditor *payments.Auditor
	gateway *payments.SandboxGateway
}

func (a *app) newBookingRun(outcome payments.Outcome, notes io.Writer) *bookingRun {
	notifier := availability.NotifierFunc(func(msg string) { fmt.Fprintf(notes, "• %s\n", msg) })
	workflow := booking.NewWorkflow(booking.Defaults{
		SessionPrice: a.cfg.SessionPrice,
		SessionMRP:   a.cfg.SessionMRP,
	}, a.logger)

	secret := a.cfg.RazorpayKeySecret
	if secret == "" {
		secret = sandbox.DefaultKeySecret
	}
	gateway := payments.NewSandboxGateway(secret, a.logger).SetOutcome(outcome)
	auditor := payments.NewAuditor(a.api, a.metrics, a.logger)
	checkout := payments.DefaultCheckoutConfig
	checkout.Currency = a.cfg.Currency
	if a.cfg.MerchantName != "" {
		checkout.MerchantName = a.cfg.MerchantName
	}
	if a.cfg.CheckoutThemeHex != "" {
		checkout.ThemeColor = a.cfg.CheckoutThemeHex
	}
	handoff := payments.NewHandoff(workflow, a.api, gateway, auditor, a.logger,
		payments.WithAuthState(a.session),
		payments.WithCheckoutConfig(checkout),
		payments.WithMetrics(a.metrics),
	)
	wizard := screens.NewWizard(screens.Deps{
		Workflow: workflow,
		Catalog:  a.catalog,
		Loader:   availability.NewLoader(a.api, workflow, notifier, a.logger),
		Identity: a.session,
		Handoff:  handoff,
		Notifier: notifier,
		Now:      time.Now,
		Logger:   a.logger,
	})
	return &bookingRun{wizard: wizard, auditor: auditor, gateway: gateway}
}
