package booking

import (
	"strings"

	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// Step is a position in the five-step booking wizard.
type Step int

const (
	StepClinic Step = iota + 1
	StepSessions
	StepDateTime
	StepPatientInfo
	StepSummary
)

const (
	FirstStep = StepClinic
	LastStep  = StepSummary
)

// ClampStep forces n into [FirstStep, LastStep].
func ClampStep(n int) Step {
	if n < int(FirstStep) {
		return FirstStep
	}
	if n > int(LastStep) {
		return LastStep
	}
	return Step(n)
}

// Title is the header shown for the step.
func (s Step) Title() string {
	switch s {
	case StepClinic:
		return "Select Clinic"
	case StepSessions:
		return "Choose Sessions"
	case StepDateTime:
		return "Date & Time"
	case StepPatientInfo:
		return "Patient Information"
	case StepSummary:
		return "Booking Summary"
	default:
		return "Booking"
	}
}

func (s Step) String() string {
	return s.Title()
}

// PatientInfo is the contact record attached to the booking. Fields are never absent;
// unset means "".
type PatientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PatientPatch is a partial PatientInfo; nil fields are left untouched on merge.
type PatientPatch struct {
	Name  *string
	Email *string
	Phone *string
}

// PatientField names one PatientInfo field.
type PatientField string

const (
	FieldName  PatientField = "name"
	FieldEmail PatientField = "email"
	FieldPhone PatientField = "phone"
)

// PatchField builds a single-field patch. Unknown fields produce an empty patch.
func PatchField(field PatientField, value string) PatientPatch {
	switch field {
	case FieldName:
		return PatientPatch{Name: &value}
	case FieldEmail:
		return PatientPatch{Email: &value}
	case FieldPhone:
		return PatientPatch{Phone: &value}
	default:
		return PatientPatch{}
	}
}

// Empty reports whether the patch carries no fields.
func (p PatientPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

// Apply shallow-merges the patch over info.
func (p PatientPatch) Apply(info PatientInfo) PatientInfo {
	if p.Name != nil {
		info.Name = *p.Name
	}
	if p.Email != nil {
		info.Email = *p.Email
	}
	if p.Phone != nil {
		info.Phone = *p.Phone
	}
	return NormalizePatientInfo(info)
}

// NormalizePatientInfo is the safe-defaults constructor applied on every read and write.
func NormalizePatientInfo(info PatientInfo) PatientInfo {
	return PatientInfo{
		Name:  info.Name,
		Email: info.Email,
		Phone: info.Phone,
	}
}

// Complete reports whether name, email and phone are all non-blank.
func (p PatientInfo) Complete() bool {
	return strings.TrimSpace(p.Name) != "" &&
		strings.TrimSpace(p.Email) != "" &&
		strings.TrimSpace(p.Phone) != ""
}

// Defaults are the configurable parts of the initial state.
type Defaults struct {
	SessionPrice int64
	SessionMRP   int64
}

// DefaultPricing is the unit pricing used when none is configured.
var DefaultPricing = Defaults{SessionPrice: 10000, SessionMRP: 12000}

// State is the booking wizard aggregate. It is owned by a Workflow; consumers get copies.
type State struct {
	CurrentStep      Step
	SelectedClinic   *catalog.Clinic
	SelectedSessions int
	SelectedDate     string
	SelectedTime     string
	PatientInfo      PatientInfo
	SessionPrice     int64
	SessionMRP       int64
}

// InitialState returns the documented starting state.
func InitialState(d Defaults) State {
	return State{
		CurrentStep:      FirstStep,
		SelectedClinic:   nil,
		SelectedSessions: 1,
		SelectedDate:     "",
		SelectedTime:     "",
		PatientInfo:      NormalizePatientInfo(PatientInfo{}),
		SessionPrice:     d.SessionPrice,
		SessionMRP:       d.SessionMRP,
	}
}

// Clone deep-copies the state, including the selected clinic.
func (s State) Clone() State {
	out := s
	if s.SelectedClinic != nil {
		c := s.SelectedClinic.Clone()
		out.SelectedClinic = &c
	}
	out.PatientInfo = NormalizePatientInfo(s.PatientInfo)
	return out
}

// ClinicID returns the selected clinic's id or "".
func (s State) ClinicID() string {
	if s.SelectedClinic == nil {
		return ""
	}
	return s.SelectedClinic.ID
}
