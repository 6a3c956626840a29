package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/sandbox"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// APIPrefix is where the backend endpoints are mounted.
const APIPrefix = "/api/v1"

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sandbox            *sandbox.Handler
	Metrics            *metrics.BookingMetrics
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	JWTSecret          string

	// Requests per second per client; zero disables rate limiting.
	RateLimit float64
	RateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Sandbox == nil {
		panic("router: sandbox handler required")
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(httpmiddleware.Metrics(cfg.Metrics))
	}

	// Public endpoints (health checks, scraping)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	api := chi.NewRouter()
	if cfg.RateLimit > 0 {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	api.Mount("/", cfg.Sandbox.Routes(httpmiddleware.PatientJWT(cfg.JWTSecret)))
	r.Mount(APIPrefix, api)

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
