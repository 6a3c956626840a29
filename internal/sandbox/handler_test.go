package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const testJWTSecret = "test-secret"

// Monday, before the first slot of the day.
var sandboxNow = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

type sandboxEnv struct {
	store  *MemoryStore
	server *httptest.Server
	anon   *backend.Client
}

func newSandboxEnv(t *testing.T) *sandboxEnv {
	t.Helper()
	store := NewMemoryStore()
	now := func() time.Time { return sandboxNow }
	h := NewHandler(Config{
		Store:     store,
		Fixtures:  DefaultFixtures(sandboxNow, catalog.PaymentConfig{TaxPercentage: 18, CreditCardFee: 2}),
		JWTSecret: testJWTSecret,
		EchoOTP:   true,
		Logger:    logging.Discard(),
		Now:       now,
	})
	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes(middleware.PatientJWT(testJWTSecret)))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &sandboxEnv{
		store:  store,
		server: srv,
		anon:   backend.NewClient(srv.URL+"/api/v1", 0, logging.Discard()),
	}
}

func (e *sandboxEnv) clientWithToken(token string) *backend.Client {
	return backend.NewClient(e.server.URL+"/api/v1", 0, logging.Discard()).WithTokenSource(backend.StaticToken(token))
}

// signIn registers a patient by phone and returns an authenticated client.
func (e *sandboxEnv) signIn(t *testing.T, phone, name string) *backend.Client {
	t.Helper()
	ctx := context.Background()
	sent, err := e.anon.RegisterViaNumber(ctx, phone, name)
	require.NoError(t, err)
	require.Len(t, sent.OTP, 6)
	verified, err := e.anon.VerifyEmailOTP(ctx, backend.OTPTarget{Number: phone}, sent.OTP)
	require.NoError(t, err)
	require.NotEmpty(t, verified.Token)
	return e.clientWithToken(verified.Token)
}

func bookingRequest(date, t string) backend.CreateBookingRequest {
	return backend.CreateBookingRequest{
		ClinicID:       "clinic-andheri",
		PatientDetails: backend.PatientDetails{Name: "Asha", Phone: "9876543210", Email: "asha@example.com"},
		Date:           date,
		Time:           t,
		Sessions:       2,
		PaymentMethod:  "online",
		Amount:         23600,
	}
}

func TestCatalogEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)

	clinics, err := env.anon.ListClinics(ctx)
	require.NoError(t, err)
	require.Len(t, clinics, 4)
	assert.Equal(t, catalog.StatusAvailable, clinics[0].Status(sandboxNow))

	services, err := env.anon.ListServices(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, services, 2)

	svc, err := env.anon.GetServiceBySlug(ctx, "chemical-peel")
	require.NoError(t, err)
	assert.Equal(t, "svc-peel", svc.ID)
	_, err = env.anon.GetServiceBySlug(ctx, "nope")
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))

	settings, err := env.anon.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18.0, settings.PaymentConfig.TaxPercentage)
	assert.Equal(t, "support@clinicbook.test", settings.ContactDetails.SupportEmail)

	cal, err := env.anon.GetAvailableDates(ctx, "clinic-andheri")
	require.NoError(t, err)
	require.NotNil(t, cal.Window)
	require.NotEmpty(t, cal.Dates)
	assert.Equal(t, "2024-06-03", cal.Dates[0].Date)
	for _, d := range cal.Dates {
		day, err := time.Parse(catalog.DateLayout, d.Date)
		require.NoError(t, err)
		assert.NotEqual(t, time.Sunday, day.Weekday(), d.Date)
	}

	_, err = env.anon.GetAvailableDates(ctx, "missing")
	assert.Equal(t, "Clinic not found", backend.UserMessage(err))
}

func TestBuildCalendarMarksPastAndFullSlots(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 30, 0, 0, time.UTC)
	clinic := DefaultFixtures(now, catalog.PaymentConfig{}).Clinics[0]
	dates := buildCalendar(clinic, now, map[string]int{"2024-06-04 15:00": SlotCapacity})

	require.NotEmpty(t, dates)
	today := dates[0]
	assert.Equal(t, "2024-06-03", today.Date)
	assert.Equal(t, slotPast, today.Slots[2].Status)
	assert.True(t, today.Slots[3].Selectable())
	assert.Equal(t, 2, today.Slots[3].Available)

	tomorrow := dates[1]
	assert.Equal(t, slotBooked, tomorrow.Slots[5].Status)
	assert.Zero(t, tomorrow.Slots[5].Available)

	assert.Equal(t, "2024-06-10", dates[6].Date)
}

func TestBookingAndPaymentVerification(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)
	client := env.signIn(t, "9876543210", "Asha")

	profile, err := client.Profile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.Name)
	assert.Equal(t, "active", profile.Status)

	created, err := client.CreateSessionBooking(ctx, bookingRequest("2024-06-04", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Booking.Status)
	assert.Len(t, created.Booking.SessionDates, 2)
	assert.Equal(t, "2024-06-11", created.Booking.SessionDates[1].Date)
	assert.Equal(t, 23600.0, created.Payment.Amount)
	assert.Equal(t, DefaultKeyID, created.Payment.Key)
	require.NotEmpty(t, created.Payment.OrderID)

	capacity, err := client.CheckAvailability(ctx, backend.AvailabilityCheck{ClinicID: "clinic-andheri", Date: "2024-06-04", Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.BookedCount)
	assert.True(t, capacity.Available)

	orderID := created.Payment.OrderID
	result, err := client.VerifyPayment(ctx, backend.VerifyPaymentRequest{
		BookingID:         created.Booking.ID,
		PaymentID:         created.Payment.ID,
		RazorpayPaymentID: "pay_1",
		RazorpayOrderID:   orderID,
		RazorpaySignature: payments.Sign(DefaultKeySecret, orderID, "pay_1"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pay_1", result.TransactionID)

	got, err := client.GetBooking(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, "paid", got.PaymentStatus)

	history, err := client.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, history.Current, 1)
	assert.Empty(t, history.History)
	assert.Equal(t, 1, history.Summary.Upcoming)

	other := env.signIn(t, "9000000000", "Ravi")
	_, err = other.GetBooking(ctx, created.Booking.ID)
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)
	client := env.signIn(t, "9876543210", "Asha")

	created, err := client.CreateSessionBooking(ctx, bookingRequest("2024-06-04", "11:00"))
	require.NoError(t, err)

	_, err = client.VerifyPayment(ctx, backend.VerifyPaymentRequest{
		BookingID:         created.Booking.ID,
		RazorpayPaymentID: "pay_1",
		RazorpayOrderID:   created.Payment.OrderID,
		RazorpaySignature: "forged",
	})
	require.Error(t, err)
	assert.Equal(t, "Payment verification failed", backend.UserMessage(err))

	stored, err := env.store.GetBooking(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingFailed, stored.Status)
}

func TestSlotCapacityAndCancellationReleasesSlot(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)
	client := env.signIn(t, "9876543210", "Asha")

	first, err := client.CreateSessionBooking(ctx, bookingRequest("2024-06-05", "12:00"))
	require.NoError(t, err)
	_, err = client.CreateSessionBooking(ctx, bookingRequest("2024-06-05", "12:00"))
	require.NoError(t, err)

	_, err = client.CreateSessionBooking(ctx, bookingRequest("2024-06-05", "12:00"))
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusConflict))
	assert.Equal(t, "Selected time slot is no longer available", backend.UserMessage(err))

	require.NoError(t, client.LogPaymentCancelled(ctx, backend.PaymentCancellation{BookingID: first.Booking.ID, Timestamp: sandboxNow}))
	audit := env.store.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, "payment_cancelled", audit[0].Kind)
	assert.Contains(t, string(audit[0].Payload), "user_cancelled")

	stored, err := env.store.GetBooking(ctx, first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingCancelled, stored.Status)

	_, err = client.CreateSessionBooking(ctx, bookingRequest("2024-06-05", "12:00"))
	assert.NoError(t, err)
}

func TestCreateBookingValidation(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)
	client := env.signIn(t, "9876543210", "Asha")

	req := bookingRequest("2024-06-04", "10:00")
	req.ClinicID = "clinic-bandra"
	_, err := client.CreateSessionBooking(ctx, req)
	assert.True(t, backend.IsStatus(err, http.StatusBadRequest))

	req = bookingRequest("2024-06-04", "10:00")
	req.PaymentMethod = "upi"
	req.PatientDetails.Phone = "123"
	_, err = client.CreateSessionBooking(ctx, req)
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, []string{"patient_details.phone", "payment_method"}, apiErr.Fields())

	_, err = client.CreateSessionBooking(ctx, bookingRequest("2024-06-09", "10:00"))
	assert.True(t, backend.IsStatus(err, http.StatusConflict))

	_, err = env.anon.ListBookings(ctx)
	assert.True(t, backend.IsUnauthorized(err))
}

func TestEmailRegistrationAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)
	reg := backend.Registration{Name: "Asha", Email: "asha@example.com", Phone: "9876543210", Password: "secret1"}

	_, err := env.anon.Register(ctx, reg)
	assert.True(t, backend.IsStatus(err, http.StatusBadRequest))

	reg.TermsAccepted = true
	registered, err := env.anon.Register(ctx, reg)
	require.NoError(t, err)
	require.Len(t, registered.OTP, 6)

	_, err = env.anon.Register(ctx, reg)
	assert.Equal(t, "User already exists", backend.UserMessage(err))

	pending, err := env.anon.LoginUser(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "verify-otp", pending.Case)
	assert.Empty(t, pending.Token)

	_, err = env.anon.VerifyEmailOTP(ctx, backend.OTPTarget{Email: "asha@example.com"}, "000000x")
	assert.Equal(t, "Invalid or expired OTP", backend.UserMessage(err))

	resent, err := env.anon.ResendEmailOTP(ctx, "ASHA@example.com")
	require.NoError(t, err)
	verified, err := env.anon.VerifyEmailOTP(ctx, backend.OTPTarget{Email: "asha@example.com"}, resent.OTP)
	require.NoError(t, err)
	assert.NotEmpty(t, verified.Token)

	login, err := env.anon.LoginUser(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	_, err = env.anon.LoginUser(ctx, "asha@example.com", "wrong")
	assert.True(t, backend.IsUnauthorized(err))
	assert.Equal(t, "Invalid email or password", backend.UserMessage(err))
}

func TestGoogleAuthCreatesVerifiedUser(t *testing.T) {
	ctx := context.Background()
	env := newSandboxEnv(t)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, googleClaims{Email: "g@example.com", Name: "Gita"}).SignedString([]byte("google"))
	require.NoError(t, err)

	res, err := env.anon.VerifyGoogleToken(ctx, raw)
	require.NoError(t, err)
	profile, err := env.clientWithToken(res.Token).Profile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Gita", profile.Name)
	assert.True(t, profile.IsGoogleAuth)

	_, err = env.anon.VerifyGoogleToken(ctx, "not-a-token")
	assert.Equal(t, "Invalid Google token", backend.UserMessage(err))
}

func TestOTPBookExpiresCodes(t *testing.T) {
	now := sandboxNow
	book := newOTPBook(func() time.Time { return now })

	code, err := book.issue("9876543210", "u1")
	require.NoError(t, err)
	_, ok := book.redeem("9876543210", "999999x")
	assert.False(t, ok)

	now = now.Add(otpTTL + time.Second)
	_, ok = book.redeem("9876543210", code)
	assert.False(t, ok)

	code, err = book.issue("9876543210", "u1")
	require.NoError(t, err)
	userID, ok := book.redeem("9876543210", code)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	_, ok = book.redeem("9876543210", code)
	assert.False(t, ok)
}
