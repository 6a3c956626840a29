package booking

import (
	"strings"

	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// Action is a closed set of state mutations. Each reducer case owns its invalidations.
type Action interface {
	reduce(State, Defaults) State
	Name() string
}

type SetStep struct{ N int }
type NextStep struct{}
type PrevStep struct{}
type SetClinic struct{ Clinic catalog.Clinic }
type SetSessions struct{ N int }
type SetDate struct{ Date string }
type SetTime struct{ Time string }
type SetPatientInfo struct{ Patch PatientPatch }
type SetSessionPricing struct{ Price, MRP int64 }
type ResetBooking struct{}

func (SetStep) Name() string           { return "SET_STEP" }
func (NextStep) Name() string          { return "NEXT_STEP" }
func (PrevStep) Name() string          { return "PREV_STEP" }
func (SetClinic) Name() string         { return "SET_CLINIC" }
func (SetSessions) Name() string       { return "SET_SESSIONS" }
func (SetDate) Name() string           { return "SET_DATE" }
func (SetTime) Name() string           { return "SET_TIME" }
func (SetPatientInfo) Name() string    { return "SET_PATIENT_INFO" }
func (SetSessionPricing) Name() string { return "SET_SESSION_PRICING" }
func (ResetBooking) Name() string      { return "RESET_BOOKING" }

func (a SetStep) reduce(s State, _ Defaults) State {
	s.CurrentStep = ClampStep(a.N)
	return s
}

func (NextStep) reduce(s State, _ Defaults) State {
	s.CurrentStep = ClampStep(int(s.CurrentStep) + 1)
	return s
}

func (PrevStep) reduce(s State, _ Defaults) State {
	s.CurrentStep = ClampStep(int(s.CurrentStep) - 1)
	return s
}

// A clinic change invalidates the date and time picked against the previous clinic.
func (a SetClinic) reduce(s State, _ Defaults) State {
	if strings.TrimSpace(a.Clinic.ID) == "" {
		return s
	}
	if s.SelectedClinic == nil || s.SelectedClinic.ID != a.Clinic.ID {
		s.SelectedDate = ""
		s.SelectedTime = ""
	}
	c := a.Clinic.Clone()
	s.SelectedClinic = &c
	return s
}

func (a SetSessions) reduce(s State, _ Defaults) State {
	if a.N <= 0 {
		return s
	}
	s.SelectedSessions = a.N
	return s
}

// A new date always clears the time chosen for the previous date.
func (a SetDate) reduce(s State, _ Defaults) State {
	s.SelectedDate = a.Date
	s.SelectedTime = ""
	return s
}

func (a SetTime) reduce(s State, _ Defaults) State {
	s.SelectedTime = a.Time
	return s
}

func (a SetPatientInfo) reduce(s State, _ Defaults) State {
	if a.Patch.Empty() {
		return s
	}
	s.PatientInfo = a.Patch.Apply(s.PatientInfo)
	return s
}

func (a SetSessionPricing) reduce(s State, _ Defaults) State {
	s.SessionPrice = max(0, a.Price)
	s.SessionMRP = max(0, a.MRP)
	return s
}

func (ResetBooking) reduce(_ State, d Defaults) State {
	return InitialState(d)
}

// Reduce applies one action to a state and returns the next state. It never mutates s.
func Reduce(s State, a Action, d Defaults) State {
	if a == nil {
		return s
	}
	next := a.reduce(s.Clone(), d)
	next.PatientInfo = NormalizePatientInfo(next.PatientInfo)
	return next
}
