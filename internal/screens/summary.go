package screens

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/payments"
)

// SummaryScreen shows the price breakdown and starts payment.
type SummaryScreen struct {
	mu       sync.Mutex
	workflow *booking.Workflow
	reader   *catalog.Reader
	handoff  *payments.Handoff
	patient  *PatientInfoScreen
	notifier Notifier

	method   booking.PaymentMethod
	settings catalog.Settings
	loaded   bool
}

func NewSummaryScreen(workflow *booking.Workflow, reader *catalog.Reader, handoff *payments.Handoff, patient *PatientInfoScreen, notifier Notifier) *SummaryScreen {
	return &SummaryScreen{
		workflow: workflow,
		reader:   reader,
		handoff:  handoff,
		patient:  patient,
		notifier: notifierOrDiscard(notifier),
		method:   booking.MethodOnline,
	}
}

func (s *SummaryScreen) Step() booking.Step { return booking.StepSummary }

// LoadSettings fetches tax and card-fee percentages. Until it succeeds quotes carry
// neither.
func (s *SummaryScreen) LoadSettings(ctx context.Context) error {
	settings, err := s.reader.Settings(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.settings, s.loaded = settings, true
	s.mu.Unlock()
	return nil
}

func (s *SummaryScreen) SettingsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Support returns the clinic support contact, if settings published one.
func (s *SummaryScreen) Support() *catalog.SupportContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.ContactDetails
}

func (s *SummaryScreen) SetMethod(m booking.PaymentMethod) error {
	if !m.Valid() {
		return payments.ErrInvalidMethod
	}
	s.mu.Lock()
	s.method = m
	s.mu.Unlock()
	return nil
}

func (s *SummaryScreen) Method() booking.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// Quote prices the current booking with the selected method.
func (s *SummaryScreen) Quote() booking.Quote {
	s.mu.Lock()
	cfg, method := s.settings.PaymentConfig, s.method
	s.mu.Unlock()
	return booking.NewQuote(s.workflow.State(), cfg, method)
}

// Pay runs the payment hand-off. Precondition failures are surfaced as alerts.
func (s *SummaryScreen) Pay(ctx context.Context) (payments.Snapshot, error) {
	s.mu.Lock()
	req := payments.PayRequest{Method: s.method, Payment: s.settings.PaymentConfig}
	s.mu.Unlock()
	if s.patient != nil {
		req.PhoneVerified = s.patient.PhoneVerified()
	}
	snap, err := s.handoff.Pay(ctx, req)
	if isPrecondition(err) {
		s.notifier.Notify(payments.AlertMessage(err))
	}
	return snap, err
}

func isPrecondition(err error) bool {
	return errors.Is(err, payments.ErrClinicNotSelected) ||
		errors.Is(err, payments.ErrPatientIncomplete) ||
		errors.Is(err, payments.ErrPhoneNotVerified) ||
		errors.Is(err, payments.ErrInvalidMethod)
}

func (s *SummaryScreen) Handoff() *payments.Handoff { return s.handoff }

func (s *SummaryScreen) Validate() error { return nil }
