package payments

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const testSecret = "rzp_secret"

type fakeBookingAPI struct {
	mu         sync.Mutex
	createErr  error
	verifyErr  error
	verifyOK   bool
	verifyMsg  string
	created    []backend.CreateBookingRequest
	verified   []backend.VerifyPaymentRequest
	paymentAmt float64
}

func (f *fakeBookingAPI) CreateSessionBooking(ctx context.Context, in backend.CreateBookingRequest) (*backend.CreateBookingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	amount := f.paymentAmt
	if amount == 0 {
		amount = float64(in.Amount)
	}
	return &backend.CreateBookingResult{
		Booking: backend.Booking{ID: "b1"},
		Payment: backend.PaymentOrder{ID: "p1", Key: "rzp_test_key", Amount: amount, OrderID: "order_1", Currency: "INR"},
	}, nil
}

func (f *fakeBookingAPI) VerifyPayment(ctx context.Context, in backend.VerifyPaymentRequest) (*backend.VerifyPaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, in)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &backend.VerifyPaymentResult{Success: f.verifyOK, Message: f.verifyMsg}, nil
}

type recordingSink struct {
	mu            sync.Mutex
	failures      []backend.PaymentFailure
	cancellations []backend.PaymentCancellation
	err           error
}

func (r *recordingSink) LogPaymentFailed(ctx context.Context, in backend.PaymentFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, in)
	return r.err
}

func (r *recordingSink) LogPaymentCancelled(ctx context.Context, in backend.PaymentCancellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations = append(r.cancellations, in)
	return r.err
}

type authFlag bool

func (a authFlag) IsAuthenticated() bool { return bool(a) }

type fixture struct {
	workflow *booking.Workflow
	api      *fakeBookingAPI
	gateway  *SandboxGateway
	sink     *recordingSink
	auditor  *Auditor
	handoff  *Handoff
}

func readyWorkflow() *booking.Workflow {
	w := booking.NewWorkflow(booking.Defaults{SessionPrice: 1000, SessionMRP: 1200}, logging.Discard())
	w.SetClinic(catalog.Clinic{ID: "c1", ClinicName: "Central"})
	w.SetSessions(1)
	w.SetDateTime("2024-06-01", "10:00")
	name, phone, email := "Asha", "9876543210", "asha@example.com"
	w.SetPatientInfo(booking.PatientPatch{Name: &name, Phone: &phone, Email: &email})
	return w
}

func newFixture(t *testing.T, opts ...HandoffOption) *fixture {
	t.Helper()
	f := &fixture{
		workflow: readyWorkflow(),
		api:      &fakeBookingAPI{verifyOK: true},
		gateway:  NewSandboxGateway(testSecret, logging.Discard()),
		sink:     &recordingSink{},
	}
	f.auditor = NewAuditor(f.sink, nil, logging.Discard())
	opts = append([]HandoffOption{WithClock(func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) })}, opts...)
	f.handoff = NewHandoff(f.workflow, f.api, f.gateway, f.auditor, logging.Discard(), opts...)
	return f
}

var cardFees = catalog.PaymentConfig{TaxPercentage: 18, CreditCardFee: 2}

func TestPayConfirmsBooking(t *testing.T) {
	f := newFixture(t)

	snap, err := f.handoff.Pay(context.Background(), PayRequest{Method: booking.MethodCard, Payment: cardFees})
	require.NoError(t, err)

	assert.Equal(t, StatusBookingConfirmed, snap.Status)
	assert.Equal(t, "b1", snap.BookingID)
	assert.NotEmpty(t, snap.TransactionID)
	assert.Equal(t, int64(1204), snap.Quote.Final)

	require.Len(t, f.api.created, 1)
	assert.Equal(t, int64(1204), f.api.created[0].Amount)
	assert.Equal(t, "card", f.api.created[0].PaymentMethod)

	opened := f.gateway.Opened()
	require.Len(t, opened, 1)
	assert.Equal(t, int64(120400), opened[0].Amount)
	assert.Equal(t, "Consultation - 1 Session(s)", opened[0].Description)
	assert.Equal(t, "order_1", opened[0].OrderID)
	assert.Equal(t, map[string]bool{"card": true}, opened[0].Method)
	assert.Equal(t, "9876543210", opened[0].Prefill.Contact)

	require.Len(t, f.api.verified, 1)
	v := f.api.verified[0]
	assert.Equal(t, "app", v.Platform)
	assert.True(t, VerifySignature(testSecret, v.RazorpayOrderID, v.RazorpayPaymentID, v.RazorpaySignature))
}

func TestPayCancelledLogsOnceAndKeepsBooking(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetOutcome(OutcomeCancel)

	snap, err := f.handoff.Pay(context.Background(), PayRequest{Method: booking.MethodOnline})
	require.NoError(t, err)
	f.auditor.Wait()

	assert.Equal(t, StatusPaymentCancelled, snap.Status)
	assert.Equal(t, "b1", snap.BookingID)
	assert.Equal(t, "Payment was cancelled by user", snap.Message)
	assert.Equal(t, SeverityCancelled, snap.Severity)

	require.Len(t, f.sink.cancellations, 1)
	assert.Equal(t, "b1", f.sink.cancellations[0].BookingID)
	assert.Equal(t, "user_cancelled", f.sink.cancellations[0].CancellationReason)
	assert.Empty(t, f.sink.failures)
	assert.Empty(t, f.api.verified)
}

func TestPayVerificationRejected(t *testing.T) {
	f := newFixture(t)
	f.api.verifyOK = false

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, SeverityVerificationFailed, snap.Severity)
	assert.Equal(t, "Payment verification failed", snap.Message)
	f.auditor.Wait()
	assert.Empty(t, f.sink.failures)
}

func TestPayVerificationErrorUsesServerMessage(t *testing.T) {
	f := newFixture(t)
	f.api.verifyErr = &backend.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid signature"}

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, SeverityVerificationFailed, snap.Severity)
	assert.Equal(t, "Invalid signature", snap.Message)
}

func TestPayGatewayFailureAudited(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetOutcome(OutcomeFail)

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	f.auditor.Wait()

	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, SeverityFailed, snap.Severity)
	assert.Equal(t, "Your payment has been declined by the bank", snap.Message)
	require.Len(t, f.sink.failures, 1)
	assert.Equal(t, "BAD_REQUEST_ERROR", f.sink.failures[0].ErrorCode)
	assert.Equal(t, "bank", f.sink.failures[0].ErrorSource)
	assert.Equal(t, "b1", f.sink.failures[0].PaymentID)
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("backend down")
	f.gateway.SetOutcome(OutcomeCancel)

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	f.auditor.Wait()
	assert.Equal(t, StatusPaymentCancelled, snap.Status)
}

func TestBookingCreationFailureSkipsProcessing(t *testing.T) {
	f := newFixture(t)
	f.api.createErr = &backend.APIError{StatusCode: http.StatusConflict, Message: "Slot already full"}

	var seen []Status
	f.handoff.Subscribe(func(s Snapshot) { seen = append(seen, s.Status) })

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, "Slot already full", snap.Message)
	assert.Equal(t, []Status{StatusBooking, StatusPaymentFailed}, seen)
	assert.Empty(t, f.gateway.Opened())
}

func TestBookingCreationNetworkFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.api.createErr = backend.ErrNetwork

	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Booking creation failed", snap.Message)
}

func TestPayPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *booking.Workflow)
		auth    AuthState
		req     PayRequest
		wantErr error
	}{
		{
			name:    "no clinic",
			mutate:  func(w *booking.Workflow) { w.ResetBooking() },
			wantErr: ErrClinicNotSelected,
		},
		{
			name:    "missing email",
			mutate:  func(w *booking.Workflow) { w.UpdatePatientField(booking.FieldEmail, "") },
			wantErr: ErrPatientIncomplete,
		},
		{
			name:    "authenticated without phone verification",
			auth:    authFlag(true),
			wantErr: ErrPhoneNotVerified,
		},
		{
			name:    "unknown method",
			req:     PayRequest{Method: "upi"},
			wantErr: ErrInvalidMethod,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []HandoffOption
			if tt.auth != nil {
				opts = append(opts, WithAuthState(tt.auth))
			}
			f := newFixture(t, opts...)
			if tt.mutate != nil {
				tt.mutate(f.workflow)
			}
			snap, err := f.handoff.Pay(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StatusIdle, snap.Status)
			assert.Empty(t, f.api.created)
			assert.NotEmpty(t, AlertMessage(err))
		})
	}
}

func TestAuthenticatedWithVerifiedPhonePays(t *testing.T) {
	f := newFixture(t, WithAuthState(authFlag(true)))
	snap, err := f.handoff.Pay(context.Background(), PayRequest{PhoneVerified: true})
	require.NoError(t, err)
	assert.Equal(t, StatusBookingConfirmed, snap.Status)
}

func TestRetryKeepsIdentifiers(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetOutcome(OutcomeFail)
	_, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	require.NoError(t, f.handoff.Retry())
	snap := f.handoff.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, "b1", snap.BookingID)
	assert.Equal(t, "b1", snap.PaymentID)
	assert.Empty(t, snap.Message)
	assert.Equal(t, "c1", f.workflow.State().ClinicID(), "retry keeps the workflow")

	f.gateway.SetOutcome(OutcomeSucceed)
	snap, err = f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusBookingConfirmed, snap.Status)
}

func TestCancelBookingResetsWorkflow(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetOutcome(OutcomeCancel)
	_, _ = f.handoff.Pay(context.Background(), PayRequest{})

	require.NoError(t, f.handoff.CancelBooking())
	assert.Equal(t, StatusIdle, f.handoff.Status())
	assert.Empty(t, f.handoff.Snapshot().BookingID)
	assert.Equal(t, booking.InitialState(booking.Defaults{SessionPrice: 1000, SessionMRP: 1200}), f.workflow.State())
}

func TestConfirmedIsTerminalUntilReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.handoff.Retry(), ErrInvalidTransition)
	assert.ErrorIs(t, f.handoff.CancelBooking(), ErrInvalidTransition)
	_, err = f.handoff.Pay(context.Background(), PayRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.handoff.BookAnother())
	assert.Equal(t, StatusIdle, f.handoff.Status())
	assert.Nil(t, f.workflow.State().SelectedClinic)
}

func TestGoHomeResets(t *testing.T) {
	f := newFixture(t)
	_, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	require.NoError(t, f.handoff.GoHome())
	assert.Equal(t, booking.StepClinic, f.workflow.State().CurrentStep)
}

func TestBackInterceptedOnlyWhileProcessing(t *testing.T) {
	f := newFixture(t)
	var duringCheckout bool
	gw := GatewayFunc(func(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
		duringCheckout = f.handoff.InterceptBack()
		return f.gateway.Open(ctx, opts)
	})
	h := NewHandoff(f.workflow, f.api, gw, f.auditor, logging.Discard())

	assert.False(t, h.InterceptBack())
	f.handoff = h
	_, err := h.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	assert.True(t, duringCheckout)
	assert.False(t, h.InterceptBack())
}

func TestAbandonDropsLateResult(t *testing.T) {
	f := newFixture(t)
	var h *Handoff
	gw := GatewayFunc(func(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
		h.Abandon()
		return f.gateway.Open(ctx, opts)
	})
	h = NewHandoff(f.workflow, f.api, gw, f.auditor, logging.Discard())

	_, err := h.Pay(context.Background(), PayRequest{})
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, StatusIdle, h.Status())
	assert.Empty(t, f.api.verified)
}

func TestGatewayContextCancelIsCancellation(t *testing.T) {
	f := newFixture(t)
	gw := GatewayFunc(func(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
		return nil, context.Canceled
	})
	h := NewHandoff(f.workflow, f.api, gw, f.auditor, logging.Discard())

	snap, err := h.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	f.auditor.Wait()
	assert.Equal(t, StatusPaymentCancelled, snap.Status)
	assert.Len(t, f.sink.cancellations, 1)
}

func TestAbandonKeepsConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	snap, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusBookingConfirmed, snap.Status)

	f.handoff.Abandon()
	assert.Equal(t, StatusBookingConfirmed, f.handoff.Status())
	assert.Equal(t, "b1", f.handoff.Snapshot().BookingID)
	assert.Equal(t, "c1", f.workflow.State().ClinicID())

	require.NoError(t, f.handoff.GoHome())
	assert.Equal(t, StatusIdle, f.handoff.Status())
	assert.Empty(t, f.workflow.State().ClinicID())
}

func TestPayTreatsEmptyGatewayResultAsFailure(t *testing.T) {
	f := newFixture(t)
	empty := GatewayFunc(func(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
		return nil, nil
	})
	h := NewHandoff(f.workflow, f.api, empty, f.auditor, logging.Discard())

	snap, err := h.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)
	f.auditor.Wait()

	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, SeverityFailed, snap.Severity)
	assert.Empty(t, f.api.verified)
	require.Len(t, f.sink.failures, 1)
	assert.Equal(t, CodeEmptyResult, f.sink.failures[0].ErrorCode)

	require.NoError(t, h.Retry())
	assert.Equal(t, StatusIdle, h.Status())
}

type emptyVerdictAPI struct{ *fakeBookingAPI }

func (emptyVerdictAPI) VerifyPayment(ctx context.Context, in backend.VerifyPaymentRequest) (*backend.VerifyPaymentResult, error) {
	return nil, nil
}

func TestPayTreatsEmptyVerdictAsVerificationFailure(t *testing.T) {
	f := newFixture(t)
	h := NewHandoff(f.workflow, emptyVerdictAPI{f.api}, f.gateway, f.auditor, logging.Discard())

	snap, err := h.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusPaymentFailed, snap.Status)
	assert.Equal(t, SeverityVerificationFailed, snap.Severity)
	assert.Equal(t, "Payment verification failed", snap.Message)
}

func TestPaySendsBookingIDAsPaymentID(t *testing.T) {
	f := newFixture(t)
	_, err := f.handoff.Pay(context.Background(), PayRequest{})
	require.NoError(t, err)

	require.Len(t, f.api.verified, 1)
	assert.Equal(t, "b1", f.api.verified[0].PaymentID)
	assert.Equal(t, "b1", f.api.verified[0].BookingID)
}
