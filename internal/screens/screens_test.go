package screens

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/session"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

var window2024 = &catalog.BookingWindow{StartDate: "2024-01-01", EndDate: "2024-12-31"}

type catalogStub struct {
	clinics  []catalog.Clinic
	settings *catalog.Settings
	err      error
}

func (s *catalogStub) ListClinics(ctx context.Context) ([]catalog.Clinic, error) {
	return append([]catalog.Clinic(nil), s.clinics...), s.err
}

func (s *catalogStub) ListServices(ctx context.Context, limit int) ([]catalog.Service, error) {
	return nil, s.err
}

func (s *catalogStub) GetServiceBySlug(ctx context.Context, slug string) (*catalog.Service, error) {
	return nil, s.err
}

func (s *catalogStub) GetSettings(ctx context.Context) (*catalog.Settings, error) {
	return s.settings, s.err
}

func testCatalog() *catalogStub {
	return &catalogStub{
		clinics: []catalog.Clinic{
			{ID: "c3", ClinicName: "Colaba", IsActive: true},
			{ID: "c1", ClinicName: "Andheri", IsActive: true, BookingWindow: window2024},
			{ID: "c2", ClinicName: "Bandra", IsActive: true, BookingWindow: &catalog.BookingWindow{StartDate: "2025-01-01", EndDate: "2025-12-31"}},
		},
		settings: &catalog.Settings{PaymentConfig: catalog.PaymentConfig{TaxPercentage: 18, CreditCardFee: 2}},
	}
}

type calendarStub struct {
	cal *availability.Calendar
	err error
}

func (s *calendarStub) GetAvailableDates(ctx context.Context, clinicID string) (*availability.Calendar, error) {
	return s.cal, s.err
}

func slot(t, status string) availability.TimeSlot {
	return availability.TimeSlot{Time: t, Status: status, Available: 1}
}

func testCalendar() *availability.Calendar {
	return &availability.Calendar{
		Window: window2024,
		Dates: []availability.AvailableDate{
			{Date: "2024-06-02", Slots: []availability.TimeSlot{slot("10:00", availability.SlotAvailable)}},
			{Date: "2024-05-30", Slots: []availability.TimeSlot{slot("10:00", availability.SlotAvailable)}},
			{Date: "2024-06-01", Slots: []availability.TimeSlot{
				slot("10:00", availability.SlotAvailable),
				slot("11:00", availability.SlotAvailable),
				slot("12:00", "Booked"),
			}},
		},
	}
}

type fakeIdentity struct {
	mu            sync.Mutex
	authenticated bool
	profile       *session.Profile
	hint          string
	sendErr       error
	verifyErr     error
	sent          []string
	verified      []backend.OTPTarget
}

func (f *fakeIdentity) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeIdentity) Profile() *session.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

func (f *fakeIdentity) RegisterViaNumber(ctx context.Context, phone, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.hint, nil
}

func (f *fakeIdentity) VerifyOTP(ctx context.Context, target backend.OTPTarget, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, target)
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.authenticated = true
	return nil
}

type bookingAPIStub struct{}

func (bookingAPIStub) CreateSessionBooking(ctx context.Context, in backend.CreateBookingRequest) (*backend.CreateBookingResult, error) {
	return &backend.CreateBookingResult{
		Booking: backend.Booking{ID: "b1"},
		Payment: backend.PaymentOrder{ID: "p1", Key: "rzp_test", Amount: float64(in.Amount), OrderID: "order_1", Currency: "INR"},
	}, nil
}

func (bookingAPIStub) VerifyPayment(ctx context.Context, in backend.VerifyPaymentRequest) (*backend.VerifyPaymentResult, error) {
	return &backend.VerifyPaymentResult{Success: true, TransactionID: "txn_1"}, nil
}

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *notes) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type fixture struct {
	wizard   *Wizard
	workflow *booking.Workflow
	identity *fakeIdentity
	notes    *notes
	catalog  *catalogStub
}

func newFixture(gateway payments.Gateway) *fixture {
	logger := logging.Discard()
	cat := testCatalog()
	id := &fakeIdentity{hint: "123456"}
	n := &notes{}
	wf := booking.NewWorkflow(booking.DefaultPricing, logger)
	loader := availability.NewLoader(&calendarStub{cal: testCalendar()}, wf, n, logger).WithClock(clock)
	handoff := payments.NewHandoff(wf, bookingAPIStub{}, gateway, nil, logger, payments.WithAuthState(id))
	w := NewWizard(Deps{
		Workflow: wf,
		Catalog:  catalog.NewReader(cat),
		Loader:   loader,
		Identity: id,
		Handoff:  handoff,
		Notifier: n,
		Now:      clock,
		Logger:   logger,
	})
	return &fixture{wizard: w, workflow: wf, identity: id, notes: n, catalog: cat}
}

func (f *fixture) selectClinic(ctx context.Context) error {
	if err := f.wizard.Clinic().Load(ctx); err != nil {
		return err
	}
	return f.wizard.Clinic().Select("c1")
}

func (f *fixture) fillPatient() {
	p := f.wizard.PatientInfo()
	p.SetName("Asha")
	p.SetEmail("asha@example.com")
	p.SetPhone("9876543210")
}
