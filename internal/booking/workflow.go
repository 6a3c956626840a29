package booking

import (
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var (
	// ErrClinicRequired is returned when a clinic without an identity is selected.
	ErrClinicRequired = errors.New("booking: clinic id required")
	// ErrClinicUnavailable is returned when a clinic is outside its booking window.
	ErrClinicUnavailable = errors.New("booking: clinic is not accepting bookings")
)

// Listener is notified with a copy of the new state after every effective dispatch.
type Listener func(State)

// Workflow is the booking wizard controller. One instance is shared by every step of a
// booking session and passed to the screens by reference.
type Workflow struct {
	mu        sync.Mutex
	state     State
	defaults  Defaults
	listeners map[int]Listener
	nextID    int
	logger    *logging.Logger
}

// NewWorkflow creates a workflow in its initial state.
func NewWorkflow(defaults Defaults, logger *logging.Logger) *Workflow {
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		state:     InitialState(defaults),
		defaults:  defaults,
		listeners: map[int]Listener{},
		logger:    logger,
	}
}

// Dispatch applies an action and notifies listeners.
func (w *Workflow) Dispatch(a Action) State {
	w.mu.Lock()
	prev := w.state
	w.state = Reduce(w.state, a, w.defaults)
	next := w.state.Clone()
	listeners := make([]Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	w.logger.Debug("booking action applied",
		"action", a.Name(),
		"from_step", int(prev.CurrentStep),
		"to_step", int(next.CurrentStep),
	)
	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers a listener and returns its unsubscribe func.
func (w *Workflow) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// State returns a copy of the current state with normalized patient info.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

func (w *Workflow) SetStep(n int) { w.Dispatch(SetStep{N: n}) }

func (w *Workflow) NextStep() { w.Dispatch(NextStep{}) }

func (w *Workflow) PrevStep() { w.Dispatch(PrevStep{}) }

// SetClinic replaces the selected clinic. Clinics without an id are ignored.
func (w *Workflow) SetClinic(c catalog.Clinic) {
	w.Dispatch(SetClinic{Clinic: c})
}

// SelectClinic is SetClinic guarded by the clinic's booking window.
func (w *Workflow) SelectClinic(c catalog.Clinic, now time.Time) error {
	if c.ID == "" {
		return ErrClinicRequired
	}
	if !c.Available(now) {
		return ErrClinicUnavailable
	}
	w.SetClinic(c)
	return nil
}

// SetSessions replaces the session count; n <= 0 is silently dropped.
func (w *Workflow) SetSessions(n int) { w.Dispatch(SetSessions{N: n}) }

// SetDate replaces the date and clears the time.
func (w *Workflow) SetDate(date string) { w.Dispatch(SetDate{Date: date}) }

func (w *Workflow) SetTime(t string) { w.Dispatch(SetTime{Time: t}) }

// SetDateTime sets both fields in order.
func (w *Workflow) SetDateTime(date, t string) {
	w.Dispatch(SetDate{Date: date})
	w.Dispatch(SetTime{Time: t})
}

func (w *Workflow) SetPatientInfo(p PatientPatch) { w.Dispatch(SetPatientInfo{Patch: p}) }

// UpdatePatientField sets one patient field; unknown fields are ignored.
func (w *Workflow) UpdatePatientField(field PatientField, value string) {
	w.SetPatientInfo(PatchField(field, value))
}

func (w *Workflow) SetSessionPricing(price, mrp int64) {
	w.Dispatch(SetSessionPricing{Price: price, MRP: mrp})
}

// ResetBooking restores the initial state.
func (w *Workflow) ResetBooking() { w.Dispatch(ResetBooking{}) }

// PatientInfo returns the normalized patient record.
func (w *Workflow) PatientInfo() PatientInfo {
	return w.State().PatientInfo
}

// IsPatientInfoValid reports whether name, email and phone are filled in.
func (w *Workflow) IsPatientInfoValid() bool {
	return w.PatientInfo().Complete()
}

func (w *Workflow) CanGoNext() bool { return w.State().CurrentStep < LastStep }

func (w *Workflow) CanGoPrev() bool { return w.State().CurrentStep > FirstStep }
