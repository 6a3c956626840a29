// Package sandbox is a local implementation of the clinic backend API. It serves fixture
// clinics, issues patient tokens and takes bookings through to payment verification, so
// the booking flow can run end to end without the hosted backend.
package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.sandbox")

const maxBodyBytes = 1 << 20

// Config wires a Handler. Store and JWTSecret are required.
type Config struct {
	Store     Store
	Fixtures  Fixtures
	Orders    OrderCreator
	KeyID     string
	KeySecret string
	JWTSecret string
	Currency  string
	// EchoOTP returns issued codes in responses. Development only.
	EchoOTP bool
	Metrics *metrics.BookingMetrics
	Logger  *logging.Logger
	Now     func() time.Time
}

// Handler serves the sandbox backend endpoints.
type Handler struct {
	store     Store
	fixtures  Fixtures
	orders    OrderCreator
	keyID     string
	keySecret string
	currency  string
	echoOTP   bool
	tokens    tokenIssuer
	otps      *otpBook
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(cfg Config) *Handler {
	if cfg.Store == nil {
		panic("sandbox: store required")
	}
	if cfg.JWTSecret == "" {
		panic("sandbox: jwt secret required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Orders == nil {
		cfg.Orders = LocalOrders{}
	}
	if cfg.KeyID == "" {
		cfg.KeyID = DefaultKeyID
	}
	if cfg.KeySecret == "" {
		cfg.KeySecret = DefaultKeySecret
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Handler{
		store:     cfg.Store,
		fixtures:  cfg.Fixtures,
		orders:    cfg.Orders,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		currency:  cfg.Currency,
		echoOTP:   cfg.EchoOTP,
		tokens:    tokenIssuer{secret: []byte(cfg.JWTSecret), now: cfg.Now},
		otps:      newOTPBook(cfg.Now),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Routes mounts every endpoint. auth guards the signed-in patient routes.
func (h *Handler) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/get-all-clinic", h.handleClinics)
	r.Get("/get-available-date", h.handleAvailableDates)
	r.Get("/get-all-service", h.handleServices)
	r.Get("/get-service-slug/{slug}", h.handleServiceBySlug)
	r.Get("/get-setting", h.handleSettings)

	r.Post("/user/register-via-number", h.handleRegisterViaNumber)
	r.Post("/user/verify-email-otp", h.handleVerifyOTP)
	r.Post("/user/resend-email-otp", h.handleResendOTP)
	r.Post("/user/register", h.handleRegister)
	r.Post("/user/login-user", h.handleLogin)
	r.Post("/user/verify-token-google-auth", h.handleGoogleAuth)

	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Get("/user/profile", h.handleProfile)
		r.Post("/user/bookings/sessions", h.handleCreateBooking)
		r.Post("/user/bookings/verify-payment", h.handleVerifyPayment)
		r.Post("/user/bookings/payment-failed", h.handlePaymentFailed)
		r.Post("/user/bookings/payment-cancelled", h.handlePaymentCancelled)
		r.Post("/user/bookings/availability", h.handleAvailability)
		r.Get("/user/found-bookings", h.handleListBookings)
		r.Get("/user/found-booking/{id}", h.handleGetBooking)
	})
	return r
}

func (h *Handler) handleClinics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"clinics": h.fixtures.Clinics},
	})
}

func (h *Handler) handleAvailableDates(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.fixtures.Clinic(r.URL.Query().Get("_id"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "Clinic not found")
		return
	}
	counts, err := h.store.SlotCounts(r.Context(), clinic.ID)
	if err != nil {
		h.logger.Error("slot counts failed", "clinic_id", clinic.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to load availability")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"availableDates":    buildCalendar(clinic, h.now(), counts),
		"BookingAvailabeAt": clinic.BookingWindow,
	})
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	services := h.fixtures.Services
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(services) {
		services = services[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": services})
}

func (h *Handler) handleServiceBySlug(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.fixtures.Service(chi.URLParam(r, "slug"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "Service not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": svc})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.fixtures.Settings})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": status < 300, "message": message})
}
