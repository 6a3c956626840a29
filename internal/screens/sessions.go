package screens

import "github.com/wolfman30/clinic-booking/internal/booking"

// MaxSessionOption is the largest count offered on the sessions step.
const MaxSessionOption = 6

// SessionOption is one selectable session count with its pricing.
type SessionOption struct {
	Count    int
	Total    int64
	MRPTotal int64
	Savings  int64
	Selected bool
}

// SessionsScreen offers 1 to 6 sessions.
type SessionsScreen struct {
	workflow *booking.Workflow
}

func NewSessionsScreen(workflow *booking.Workflow) *SessionsScreen {
	return &SessionsScreen{workflow: workflow}
}

func (s *SessionsScreen) Step() booking.Step { return booking.StepSessions }

// Options prices every offered count against the current session pricing.
func (s *SessionsScreen) Options() []SessionOption {
	state := s.workflow.State()
	out := make([]SessionOption, 0, MaxSessionOption)
	for n := 1; n <= MaxSessionOption; n++ {
		out = append(out, SessionOption{
			Count:    n,
			Total:    state.SessionPrice * int64(n),
			MRPTotal: state.SessionMRP * int64(n),
			Savings:  (state.SessionMRP - state.SessionPrice) * int64(n),
			Selected: state.SelectedSessions == n,
		})
	}
	return out
}

func (s *SessionsScreen) Select(n int) error {
	if n < 1 || n > MaxSessionOption {
		return ErrInvalidSessions
	}
	s.workflow.SetSessions(n)
	return nil
}

func (s *SessionsScreen) Validate() error {
	if s.workflow.State().SelectedSessions < 1 {
		return ErrInvalidSessions
	}
	return nil
}
