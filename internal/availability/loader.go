package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ErrStale is returned when a response arrives after the loader moved on.
var ErrStale = errors.New("availability: response superseded")

// Source fetches one clinic's availability from the backend.
type Source interface {
	GetAvailableDates(ctx context.Context, clinicID string) (*Calendar, error)
}

// Notifier shows a transient message to the patient.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Loader keeps the date step's calendar in sync with the selected clinic. Every Refresh takes
// a generation; results whose generation is no longer current are dropped, so a reset or a
// newer refresh can never be overwritten by a slow response.
type Loader struct {
	mu         sync.Mutex
	source     Source
	workflow   *booking.Workflow
	notifier   Notifier
	now        func() time.Time
	logger     *logging.Logger
	generation uint64
	calendar   Calendar
	clinicID   string
	loading    bool
}

// NewLoader wires a loader to the workflow it preselects dates on.
func NewLoader(source Source, workflow *booking.Workflow, notifier Notifier, logger *logging.Logger) *Loader {
	if source == nil {
		panic("availability: source required")
	}
	if workflow == nil {
		panic("availability: workflow required")
	}
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		source:   source,
		workflow: workflow,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the time source.
func (l *Loader) WithClock(now func() time.Time) *Loader {
	if now != nil {
		l.now = now
	}
	return l
}

// Refresh loads availability for clinicID and preselects the default date. On failure the
// patient is notified and the previous calendar and selection stay as they were.
func (l *Loader) Refresh(ctx context.Context, clinicID string) (Calendar, error) {
	if clinicID == "" {
		return Calendar{}, fmt.Errorf("availability: clinic id required")
	}
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.loading = true
	l.mu.Unlock()

	cal, err := l.source.GetAvailableDates(ctx, clinicID)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		l.logger.Debug("availability response dropped", "clinic_id", clinicID, "generation", gen)
		return Calendar{}, ErrStale
	}
	l.loading = false
	if err != nil {
		l.mu.Unlock()
		l.logger.Warn("availability fetch failed", "clinic_id", clinicID, "error", err)
		l.notifier.Notify("Failed to load available dates")
		return Calendar{}, fmt.Errorf("availability: load %s: %w", clinicID, err)
	}
	if cal == nil {
		cal = &Calendar{}
	}
	l.calendar = *cal
	l.clinicID = clinicID
	now := l.now()
	l.mu.Unlock()

	if date := DefaultDate(*cal, now); date != "" {
		l.workflow.SetDate(date)
		l.logger.Debug("default date selected", "clinic_id", clinicID, "date", date)
	}
	return *cal, nil
}

// Invalidate drops any in-flight response, e.g. when the date step is left.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.generation++
	l.loading = false
	l.mu.Unlock()
}

// Calendar returns the last successfully loaded calendar.
func (l *Loader) Calendar() Calendar {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calendar
}

// ClinicID returns the clinic the current calendar belongs to.
func (l *Loader) ClinicID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clinicID
}

// Loading reports whether a refresh is in flight.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Now returns the loader's notion of the current time.
func (l *Loader) Now() time.Time {
	return l.now()
}
