package screens

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Deps wires a Wizard. Workflow, Catalog, Loader and Handoff are required; Loader and
// Handoff must share Workflow.
type Deps struct {
	Workflow *booking.Workflow
	Catalog  *catalog.Reader
	Loader   *availability.Loader
	Identity Identity
	Handoff  *payments.Handoff
	Notifier Notifier
	Now      func() time.Time
	Logger   *logging.Logger
}

// Wizard sequences the five booking screens over one workflow.
type Wizard struct {
	workflow *booking.Workflow
	handoff  *payments.Handoff
	logger   *logging.Logger

	clinic   *ClinicScreen
	sessions *SessionsScreen
	datetime *DateTimeScreen
	patient  *PatientInfoScreen
	summary  *SummaryScreen
}

func NewWizard(d Deps) *Wizard {
	if d.Workflow == nil || d.Catalog == nil || d.Loader == nil || d.Handoff == nil {
		panic("screens: workflow, catalog, loader and handoff are required")
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	patient := NewPatientInfoScreen(d.Workflow, d.Identity, d.Notifier)
	return &Wizard{
		workflow: d.Workflow,
		handoff:  d.Handoff,
		logger:   d.Logger,
		clinic:   NewClinicScreen(d.Catalog, d.Workflow, d.Notifier, d.Now),
		sessions: NewSessionsScreen(d.Workflow),
		datetime: NewDateTimeScreen(d.Workflow, d.Loader, d.Notifier),
		patient:  patient,
		summary:  NewSummaryScreen(d.Workflow, d.Catalog, d.Handoff, patient, d.Notifier),
	}
}

func (w *Wizard) Clinic() *ClinicScreen           { return w.clinic }
func (w *Wizard) Sessions() *SessionsScreen       { return w.sessions }
func (w *Wizard) DateTime() *DateTimeScreen       { return w.datetime }
func (w *Wizard) PatientInfo() *PatientInfoScreen { return w.patient }
func (w *Wizard) Summary() *SummaryScreen         { return w.summary }

// Start loads the first screen.
func (w *Wizard) Start(ctx context.Context) error {
	return w.clinic.Load(ctx)
}

func (w *Wizard) Step() booking.Step { return w.workflow.State().CurrentStep }

// Screen returns the view-model for the current step.
func (w *Wizard) Screen() Screen {
	switch w.Step() {
	case booking.StepSessions:
		return w.sessions
	case booking.StepDateTime:
		return w.datetime
	case booking.StepPatientInfo:
		return w.patient
	case booking.StepSummary:
		return w.summary
	default:
		return w.clinic
	}
}

// Next moves forward without validating the current screen.
func (w *Wizard) Next(ctx context.Context) error {
	if !w.workflow.CanGoNext() {
		return nil
	}
	w.leave(w.Step())
	w.workflow.NextStep()
	return w.enter(ctx, w.Step())
}

// Back moves one step back. It is a no-op on the first step. After a confirmed booking
// it leaves the booking and starts over from the first step.
func (w *Wizard) Back() {
	if w.leaveConfirmed() {
		return
	}
	if !w.workflow.CanGoPrev() {
		return
	}
	w.leave(w.Step())
	w.workflow.PrevStep()
}

// Advance moves forward when the current screen validates. An error from loading the next
// screen is returned after the step has already changed.
func (w *Wizard) Advance(ctx context.Context) error {
	current := w.Screen()
	if err := current.Validate(); err != nil {
		return err
	}
	return w.Next(ctx)
}

// HandleBack processes a hardware or header back press. It reports false when the press
// should leave the wizard. While checkout is open the press is swallowed.
func (w *Wizard) HandleBack() bool {
	if w.handoff.InterceptBack() {
		w.logger.Debug("back press suppressed during payment")
		return true
	}
	if w.leaveConfirmed() {
		return true
	}
	if !w.workflow.CanGoPrev() {
		return false
	}
	w.Back()
	return true
}

// leaveConfirmed resets the workflow when the hand-off holds a confirmed booking, so the
// same selection cannot be paid for again.
func (w *Wizard) leaveConfirmed() bool {
	if w.handoff.Status() != payments.StatusBookingConfirmed {
		return false
	}
	if err := w.handoff.GoHome(); err != nil {
		w.logger.Warn("leaving confirmed booking failed", "error", err)
	}
	return true
}

func (w *Wizard) enter(ctx context.Context, step booking.Step) error {
	switch step {
	case booking.StepDateTime:
		return w.datetime.Enter(ctx)
	case booking.StepPatientInfo:
		w.patient.Enter()
	case booking.StepSummary:
		if err := w.summary.LoadSettings(ctx); err != nil {
			w.logger.Warn("payment settings unavailable", "error", err)
		}
	}
	return nil
}

func (w *Wizard) leave(step booking.Step) {
	switch step {
	case booking.StepDateTime:
		w.datetime.Leave()
	case booking.StepSummary:
		w.handoff.Abandon()
	}
}
