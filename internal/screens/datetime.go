package screens

import (
	"context"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/booking"
)

// DateTimeScreen shows the selected clinic's calendar and slots.
type DateTimeScreen struct {
	workflow *booking.Workflow
	loader   *availability.Loader
	notifier Notifier
}

func NewDateTimeScreen(workflow *booking.Workflow, loader *availability.Loader, notifier Notifier) *DateTimeScreen {
	return &DateTimeScreen{workflow: workflow, loader: loader, notifier: notifierOrDiscard(notifier)}
}

func (s *DateTimeScreen) Step() booking.Step { return booking.StepDateTime }

// Enter loads availability for the selected clinic and preselects a date.
func (s *DateTimeScreen) Enter(ctx context.Context) error {
	clinicID := s.workflow.State().ClinicID()
	if clinicID == "" {
		return ErrSelectClinic
	}
	_, err := s.loader.Refresh(ctx, clinicID)
	return err
}

// Leave drops any availability response still in flight.
func (s *DateTimeScreen) Leave() {
	s.loader.Invalidate()
}

func (s *DateTimeScreen) Loading() bool { return s.loader.Loading() }

func (s *DateTimeScreen) Calendar() availability.Calendar { return s.loader.Calendar() }

// MarkedDates lists the dates highlighted on the calendar.
func (s *DateTimeScreen) MarkedDates() []string {
	return availability.MarkedDates(s.loader.Calendar(), s.loader.Now())
}

// SelectDate validates and applies a date pick. Any selected time is cleared.
func (s *DateTimeScreen) SelectDate(date string) error {
	if err := availability.ValidateDate(s.loader.Calendar(), date, s.loader.Now()); err != nil {
		s.notifier.Notify(availability.UserMessage(err))
		return err
	}
	s.workflow.SetDate(date)
	return nil
}

// Slots returns the selected date's slots in published order.
func (s *DateTimeScreen) Slots() []availability.TimeSlot {
	d, ok := s.loader.Calendar().Find(s.workflow.State().SelectedDate)
	if !ok {
		return nil
	}
	return append([]availability.TimeSlot(nil), d.Slots...)
}

// SelectTime applies a slot on the selected date. notice is "Time updated" when an
// existing choice was replaced.
func (s *DateTimeScreen) SelectTime(t string) (notice string, err error) {
	state := s.workflow.State()
	if state.SelectedDate == "" {
		return "", ErrSelectDateTime
	}
	if err := availability.ValidateTime(s.loader.Calendar(), state.SelectedDate, t); err != nil {
		s.notifier.Notify(availability.UserMessage(err))
		return "", err
	}
	s.workflow.SetTime(t)
	if state.SelectedTime != "" && state.SelectedTime != t {
		notice = "Time updated"
		s.notifier.Notify(notice)
	}
	return notice, nil
}

func (s *DateTimeScreen) Validate() error {
	state := s.workflow.State()
	if state.SelectedDate == "" || state.SelectedTime == "" {
		return ErrSelectDateTime
	}
	return nil
}
