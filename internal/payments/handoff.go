package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.payments")

// Status is the hand-off state.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusBooking           Status = "booking"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaymentSuccess    Status = "payment_success"
	StatusPaymentFailed     Status = "payment_failed"
	StatusPaymentCancelled  Status = "payment_cancelled"
	StatusBookingConfirmed  Status = "booking_confirmed"
)

// Severity ranks how alarming a terminal failure is to the patient.
type Severity int

const (
	SeverityNone Severity = iota
	// SeverityCancelled: patient closed the checkout; booking kept, nothing charged.
	SeverityCancelled
	// SeverityFailed: booking or gateway failure; no amount deducted.
	SeverityFailed
	// SeverityVerificationFailed: the gateway took the payment but the backend did not
	// confirm the booking.
	SeverityVerificationFailed
)

func (s Severity) String() string {
	switch s {
	case SeverityCancelled:
		return "cancelled"
	case SeverityFailed:
		return "failed"
	case SeverityVerificationFailed:
		return "verification_failed"
	default:
		return "none"
	}
}

var (
	ErrClinicNotSelected = errors.New("payments: clinic not selected")
	ErrPatientIncomplete = errors.New("payments: patient information incomplete")
	ErrPhoneNotVerified  = errors.New("payments: phone number not verified")
	ErrInvalidMethod     = errors.New("payments: unknown payment method")
	ErrInvalidTransition = errors.New("payments: invalid transition")
	// ErrSuperseded means the hand-off was reset while a call was in flight; its result was
	// discarded.
	ErrSuperseded = errors.New("payments: superseded by reset")
)

// AlertMessage maps precondition errors to the alert shown to the patient.
func AlertMessage(err error) string {
	switch {
	case errors.Is(err, ErrClinicNotSelected):
		return "Invalid clinic selection. Please try again."
	case errors.Is(err, ErrPatientIncomplete):
		return "Patient information is incomplete. Please go back and fill all details."
	case errors.Is(err, ErrPhoneNotVerified):
		return "Please verify your phone number before proceeding to payment."
	case errors.Is(err, ErrInvalidMethod):
		return "Please choose a payment method."
	case err == nil:
		return ""
	default:
		return "Something went wrong. Please try again."
	}
}

// BookingAPI creates and confirms bookings on the backend.
type BookingAPI interface {
	CreateSessionBooking(ctx context.Context, in backend.CreateBookingRequest) (*backend.CreateBookingResult, error)
	VerifyPayment(ctx context.Context, in backend.VerifyPaymentRequest) (*backend.VerifyPaymentResult, error)
}

// AuthState reports whether a patient is signed in.
type AuthState interface {
	IsAuthenticated() bool
}

// CheckoutConfig brands the checkout sheet.
type CheckoutConfig struct {
	Currency     string
	MerchantName string
	Image        string
	ThemeColor   string
}

// DefaultCheckoutConfig mirrors the clinic's production checkout.
var DefaultCheckoutConfig = CheckoutConfig{
	Currency:     "INR",
	MerchantName: "Dr. Rajneesh Kant Clinic",
	ThemeColor:   "#84C3FF",
}

// PayRequest is the input to Pay.
type PayRequest struct {
	Method        booking.PaymentMethod
	Payment       catalog.PaymentConfig
	PhoneVerified bool
}

// Snapshot is a consistent view of the hand-off.
type Snapshot struct {
	Status        Status
	BookingID     string
	PaymentID     string
	OrderID       string
	TransactionID string
	Message       string
	Severity      Severity
	Method        booking.PaymentMethod
	Quote         booking.Quote
}

// Handoff drives the summary step: create the booking, open the checkout, verify the result.
type Handoff struct {
	mu         sync.Mutex
	snap       Snapshot
	generation uint64
	listeners  map[int]func(Snapshot)
	nextID     int

	workflow *booking.Workflow
	api      BookingAPI
	gateway  Gateway
	auditor  *Auditor
	auth     AuthState
	checkout CheckoutConfig
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// HandoffOption customizes a Handoff.
type HandoffOption func(*Handoff)

func WithAuthState(a AuthState) HandoffOption { return func(h *Handoff) { h.auth = a } }

func WithCheckoutConfig(c CheckoutConfig) HandoffOption {
	return func(h *Handoff) { h.checkout = c }
}

func WithMetrics(m *metrics.BookingMetrics) HandoffOption { return func(h *Handoff) { h.metrics = m } }

func WithClock(now func() time.Time) HandoffOption {
	return func(h *Handoff) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandoff(workflow *booking.Workflow, api BookingAPI, gateway Gateway, auditor *Auditor, logger *logging.Logger, opts ...HandoffOption) *Handoff {
	if workflow == nil || api == nil || gateway == nil {
		panic("payments: workflow, api and gateway are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handoff{
		snap:      Snapshot{Status: StatusIdle, Method: booking.MethodOnline},
		listeners: make(map[int]func(Snapshot)),
		workflow:  workflow,
		api:       api,
		gateway:   gateway,
		auditor:   auditor,
		checkout:  DefaultCheckoutConfig,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Snapshot returns the current view.
func (h *Handoff) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Status returns the current status.
func (h *Handoff) Status() Status {
	return h.Snapshot().Status
}

// Subscribe registers fn for status changes.
func (h *Handoff) Subscribe(fn func(Snapshot)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// InterceptBack reports whether the back action must be suppressed. Only an in-flight
// checkout is protected.
func (h *Handoff) InterceptBack() bool {
	return h.Status() == StatusPaymentProcessing
}

// Pay runs the whole hand-off. Precondition failures return an error and change nothing;
// every other outcome is reported through the resulting Snapshot.
func (h *Handoff) Pay(ctx context.Context, req PayRequest) (Snapshot, error) {
	if req.Method == "" {
		req.Method = booking.MethodOnline
	}
	if !req.Method.Valid() {
		return h.Snapshot(), ErrInvalidMethod
	}
	state := h.workflow.State()
	if err := h.checkPreconditions(state, req); err != nil {
		return h.Snapshot(), err
	}
	quote := booking.NewQuote(state, req.Payment, req.Method)

	gen, err := h.begin(req.Method, quote)
	if err != nil {
		return h.Snapshot(), err
	}

	ctx, span := tracer.Start(ctx, "handoff.pay")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicbook.clinic_id", state.ClinicID()),
		attribute.Int("clinicbook.sessions", state.SelectedSessions),
		attribute.Int64("clinicbook.amount", quote.Final),
		attribute.String("clinicbook.method", string(req.Method)),
	)

	patient := state.PatientInfo
	created, err := h.api.CreateSessionBooking(ctx, backend.CreateBookingRequest{
		ClinicID:       state.ClinicID(),
		PatientDetails: backend.PatientDetails{Name: patient.Name, Phone: patient.Phone, Email: patient.Email},
		Date:           state.SelectedDate,
		Time:           state.SelectedTime,
		Sessions:       state.SelectedSessions,
		PaymentMethod:  string(req.Method),
		Amount:         quote.Final,
	})
	if err != nil {
		h.logger.Error("booking creation failed", "clinic_id", state.ClinicID(), "error", err)
		span.RecordError(err)
		return h.finish(gen, func(s *Snapshot) {
			s.Status = StatusPaymentFailed
			s.Severity = SeverityFailed
			s.Message = serverMessage(err, "Booking creation failed")
		})
	}

	// The backend keys payment verification and audit records by booking id.
	paymentID := created.Booking.ID
	span.SetAttributes(attribute.String("clinicbook.booking_id", created.Booking.ID))
	if !h.update(gen, func(s *Snapshot) {
		s.Status = StatusPaymentProcessing
		s.BookingID = created.Booking.ID
		s.PaymentID = paymentID
		s.OrderID = created.Payment.OrderID
	}) {
		return h.Snapshot(), ErrSuperseded
	}

	opts := h.checkoutOptions(state, created.Payment, req.Method, quote)
	result, gwErr := h.gateway.Open(ctx, opts)
	if gwErr != nil {
		return h.gatewayFailed(gen, created.Booking.ID, paymentID, asGatewayError(gwErr))
	}
	if result == nil {
		return h.gatewayFailed(gen, created.Booking.ID, paymentID, &GatewayError{
			Code:        CodeEmptyResult,
			Description: "Payment could not be completed. No amount has been deducted.",
			Source:      "gateway",
			Step:        "payment_authorization",
			Reason:      "empty_result",
		})
	}

	if !h.update(gen, func(s *Snapshot) { s.Status = StatusPaymentSuccess }) {
		return h.Snapshot(), ErrSuperseded
	}

	verified, err := h.api.VerifyPayment(ctx, backend.VerifyPaymentRequest{
		Platform:          "app",
		BookingID:         created.Booking.ID,
		PaymentID:         paymentID,
		RazorpayPaymentID: result.RazorpayPaymentID,
		RazorpayOrderID:   result.RazorpayOrderID,
		RazorpaySignature: result.RazorpaySignature,
	})
	if err != nil || verified == nil || !verified.Success {
		msg := "Payment verification failed"
		if err != nil {
			msg = serverMessage(err, msg)
			span.RecordError(err)
		} else if verified != nil && strings.TrimSpace(verified.Message) != "" {
			msg = verified.Message
		}
		h.logger.Error("payment verification failed", "booking_id", created.Booking.ID, "message", msg, "error", err)
		return h.finish(gen, func(s *Snapshot) {
			s.Status = StatusPaymentFailed
			s.Severity = SeverityVerificationFailed
			s.Message = msg
		})
	}

	txID := verified.TransactionID
	if txID == "" {
		txID = result.RazorpayPaymentID
	}
	h.logger.Info("booking confirmed", "booking_id", created.Booking.ID, "transaction_id", txID)
	return h.finish(gen, func(s *Snapshot) {
		s.Status = StatusBookingConfirmed
		s.TransactionID = txID
	})
}

// begin moves idle to booking atomically so concurrent Pay calls cannot both start.
func (h *Handoff) begin(method booking.PaymentMethod, quote booking.Quote) (uint64, error) {
	h.mu.Lock()
	if h.snap.Status != StatusIdle {
		status := h.snap.Status
		h.mu.Unlock()
		return 0, fmt.Errorf("%w: pay from %s", ErrInvalidTransition, status)
	}
	h.snap.Status = StatusBooking
	h.snap.Message = ""
	h.snap.Severity = SeverityNone
	h.snap.Method = method
	h.snap.Quote = quote
	snap := h.snap
	gen := h.generation
	listeners := h.listenersLocked()
	h.mu.Unlock()

	h.metrics.ObservePaymentStatus(string(snap.Status))
	for _, l := range listeners {
		l(snap)
	}
	return gen, nil
}

func (h *Handoff) checkPreconditions(state booking.State, req PayRequest) error {
	if state.ClinicID() == "" {
		return ErrClinicNotSelected
	}
	p := state.PatientInfo
	if p.Name == "" || p.Phone == "" || p.Email == "" {
		return ErrPatientIncomplete
	}
	if h.auth != nil && h.auth.IsAuthenticated() && !req.PhoneVerified {
		return ErrPhoneNotVerified
	}
	return nil
}

func (h *Handoff) checkoutOptions(state booking.State, order backend.PaymentOrder, method booking.PaymentMethod, quote booking.Quote) CheckoutOptions {
	amount := int64(math.Round(order.Amount * 100))
	if order.Amount <= 0 {
		amount = quote.MinorUnits()
	}
	currency := order.Currency
	if currency == "" {
		currency = h.checkout.Currency
	}
	methods := map[string]bool{}
	if method == booking.MethodCard {
		methods["card"] = true
	}
	return CheckoutOptions{
		Description: fmt.Sprintf("Consultation - %d Session(s)", state.SelectedSessions),
		Image:       h.checkout.Image,
		Currency:    currency,
		Key:         order.Key,
		Amount:      amount,
		OrderID:     order.OrderID,
		Name:        h.checkout.MerchantName,
		Prefill: Prefill{
			Email:   state.PatientInfo.Email,
			Contact: state.PatientInfo.Phone,
			Name:    state.PatientInfo.Name,
		},
		Theme:  Theme{Color: h.checkout.ThemeColor},
		Method: methods,
	}
}

func (h *Handoff) gatewayFailed(gen uint64, bookingID, paymentID string, gwErr *GatewayError) (Snapshot, error) {
	ts := h.now().UTC()
	if gwErr.Cancelled() {
		h.logger.Info("checkout cancelled", "booking_id", bookingID)
		snap, err := h.finish(gen, func(s *Snapshot) {
			s.Status = StatusPaymentCancelled
			s.Severity = SeverityCancelled
			s.Message = "Payment was cancelled by user"
		})
		h.auditor.PaymentCancelled(backend.PaymentCancellation{
			BookingID:          bookingID,
			PaymentID:          paymentID,
			CancellationReason: "user_cancelled",
			Timestamp:          ts,
		})
		return snap, err
	}

	h.logger.Warn("checkout failed", "booking_id", bookingID, "code", gwErr.Code, "reason", gwErr.Reason)
	msg := gwErr.Description
	if strings.TrimSpace(msg) == "" {
		msg = "Payment failed"
	}
	snap, err := h.finish(gen, func(s *Snapshot) {
		s.Status = StatusPaymentFailed
		s.Severity = SeverityFailed
		s.Message = msg
	})
	h.auditor.PaymentFailed(backend.PaymentFailure{
		BookingID:        bookingID,
		PaymentID:        paymentID,
		ErrorCode:        gwErr.Code,
		ErrorDescription: gwErr.Description,
		ErrorSource:      gwErr.Source,
		ErrorStep:        gwErr.Step,
		ErrorReason:      gwErr.Reason,
		Timestamp:        ts,
	})
	return snap, err
}

// Retry returns a failed or cancelled hand-off to idle. Booking and payment ids are kept.
func (h *Handoff) Retry() error {
	return h.transition("retry", []Status{StatusPaymentFailed, StatusPaymentCancelled}, false)
}

// CancelBooking abandons a failed or cancelled booking and resets the whole workflow.
func (h *Handoff) CancelBooking() error {
	return h.transition("cancel booking", []Status{StatusIdle, StatusPaymentFailed, StatusPaymentCancelled}, true)
}

// BookAnother starts a fresh workflow after a confirmed booking.
func (h *Handoff) BookAnother() error {
	return h.transition("book another", []Status{StatusBookingConfirmed}, true)
}

// GoHome leaves a confirmed booking; the workflow is reset the same way.
func (h *Handoff) GoHome() error {
	return h.transition("go home", []Status{StatusBookingConfirmed}, true)
}

// Abandon detaches the hand-off from any in-flight call, e.g. when the summary screen is
// torn down. Late results are dropped; the workflow is left untouched. A confirmed booking
// is kept until BookAnother or GoHome resets it.
func (h *Handoff) Abandon() {
	h.mu.Lock()
	if h.snap.Status == StatusBookingConfirmed {
		h.mu.Unlock()
		return
	}
	h.generation++
	h.snap = Snapshot{Status: StatusIdle, Method: h.snap.Method}
	h.mu.Unlock()
}

func (h *Handoff) transition(op string, from []Status, reset bool) error {
	h.mu.Lock()
	current := h.snap.Status
	allowed := false
	for _, s := range from {
		if current == s {
			allowed = true
			break
		}
	}
	if !allowed {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, current)
	}
	h.generation++
	next := Snapshot{Status: StatusIdle, Method: h.snap.Method}
	if !reset {
		next.BookingID = h.snap.BookingID
		next.PaymentID = h.snap.PaymentID
		next.OrderID = h.snap.OrderID
		next.Quote = h.snap.Quote
	}
	h.snap = next
	listeners := h.listenersLocked()
	h.mu.Unlock()

	if reset {
		h.workflow.ResetBooking()
	}
	h.metrics.ObservePaymentStatus(string(StatusIdle))
	for _, l := range listeners {
		l(next)
	}
	return nil
}

// update applies fn when gen is still current and notifies listeners. It reports whether
// the update was applied.
func (h *Handoff) update(gen uint64, fn func(*Snapshot)) bool {
	h.mu.Lock()
	if gen != h.generation {
		h.mu.Unlock()
		return false
	}
	fn(&h.snap)
	snap := h.snap
	listeners := h.listenersLocked()
	h.mu.Unlock()

	h.metrics.ObservePaymentStatus(string(snap.Status))
	for _, l := range listeners {
		l(snap)
	}
	return true
}

func (h *Handoff) finish(gen uint64, fn func(*Snapshot)) (Snapshot, error) {
	if !h.update(gen, fn) {
		h.logger.Debug("hand-off result dropped after reset")
		return h.Snapshot(), ErrSuperseded
	}
	return h.Snapshot(), nil
}

func (h *Handoff) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}
	return out
}

func serverMessage(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
