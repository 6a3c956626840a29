package screens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// ClinicRow is one clinic as listed on the first step.
type ClinicRow struct {
	Clinic        catalog.Clinic
	Status        catalog.AvailabilityStatus
	StatusMessage string
	WindowLabel   string
	Selectable    bool
	Selected      bool
}

// ClinicScreen lists clinics and records the patient's choice.
type ClinicScreen struct {
	mu       sync.Mutex
	reader   *catalog.Reader
	workflow *booking.Workflow
	notifier Notifier
	now      func() time.Time
	clinics  []catalog.Clinic
}

func NewClinicScreen(reader *catalog.Reader, workflow *booking.Workflow, notifier Notifier, now func() time.Time) *ClinicScreen {
	if now == nil {
		now = time.Now
	}
	return &ClinicScreen{reader: reader, workflow: workflow, notifier: notifierOrDiscard(notifier), now: now}
}

func (s *ClinicScreen) Step() booking.Step { return booking.StepClinic }

// Load fetches the clinic list.
func (s *ClinicScreen) Load(ctx context.Context) error {
	clinics, err := s.reader.Clinics(ctx)
	if err != nil {
		s.notifier.Notify("Failed to load clinics")
		return err
	}
	s.mu.Lock()
	s.clinics = clinics
	s.mu.Unlock()
	return nil
}

// Rows derives the listing at the current time.
func (s *ClinicScreen) Rows() []ClinicRow {
	s.mu.Lock()
	clinics := append([]catalog.Clinic(nil), s.clinics...)
	s.mu.Unlock()

	now := s.now()
	selected := s.workflow.State().ClinicID()
	rows := make([]ClinicRow, 0, len(clinics))
	for _, c := range clinics {
		status := c.Status(now)
		row := ClinicRow{
			Clinic:        c,
			Status:        status,
			StatusMessage: status.Message(),
			Selectable:    status == catalog.StatusAvailable,
			Selected:      c.ID == selected,
		}
		if c.BookingWindow != nil {
			row.WindowLabel = c.BookingWindow.Label()
		}
		rows = append(rows, row)
	}
	return rows
}

// Select picks a loaded clinic by id. Clinics outside their booking window are refused.
func (s *ClinicScreen) Select(id string) error {
	s.mu.Lock()
	var found *catalog.Clinic
	for i := range s.clinics {
		if s.clinics[i].ID == id {
			c := s.clinics[i].Clone()
			found = &c
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return ErrUnknownClinic
	}
	if err := s.workflow.SelectClinic(*found, s.now()); err != nil {
		if errors.Is(err, booking.ErrClinicUnavailable) {
			s.notifier.Notify("This clinic is not available for booking at the moment. " + found.Status(s.now()).Message())
		}
		return err
	}
	return nil
}

func (s *ClinicScreen) Validate() error {
	if s.workflow.State().ClinicID() == "" {
		return ErrSelectClinic
	}
	return nil
}
