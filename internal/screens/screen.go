// Package screens holds headless view-models for the five booking steps and the wizard
// that sequences them. Rendering is left to the caller (the CLI, or any other front-end).
package screens

import (
	"errors"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/booking"
)

var (
	ErrSelectClinic    = errors.New("screens: no clinic selected")
	ErrUnknownClinic   = errors.New("screens: unknown clinic")
	ErrInvalidSessions = errors.New("screens: session count out of range")
	ErrSelectDateTime  = errors.New("screens: date or time not selected")
	ErrInvalidPhone    = errors.New("screens: phone number must be 10 digits")
	ErrNameRequired    = errors.New("screens: name required")
	ErrInvalidOTP      = errors.New("screens: otp must be 6 digits")
	ErrOTPNotSent      = errors.New("screens: otp not requested")
	ErrPatientForm     = errors.New("screens: patient form incomplete")
	ErrPhoneUnverified = errors.New("screens: phone number not verified")
)

var validationErrors = []error{
	ErrSelectClinic, ErrUnknownClinic, ErrInvalidSessions, ErrSelectDateTime, ErrInvalidPhone,
	ErrNameRequired, ErrInvalidOTP, ErrOTPNotSent, ErrPatientForm, ErrPhoneUnverified,
}

// IsValidation reports whether err is one of this package's step validation errors.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// UserMessage maps screen validation errors to the text shown to the patient.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSelectClinic):
		return "Please select a clinic"
	case errors.Is(err, ErrUnknownClinic):
		return "Clinic not found"
	case errors.Is(err, ErrInvalidSessions):
		return "Please choose between 1 and 6 sessions"
	case errors.Is(err, ErrSelectDateTime):
		return "Please select date and time"
	case errors.Is(err, ErrInvalidPhone):
		return "Please enter a valid 10-digit phone number"
	case errors.Is(err, ErrNameRequired):
		return "Please enter your name"
	case errors.Is(err, ErrInvalidOTP):
		return "Please enter a valid 6-digit OTP"
	case errors.Is(err, ErrOTPNotSent):
		return "Please request an OTP first"
	case errors.Is(err, ErrPatientForm):
		return "Please fill all required fields"
	case errors.Is(err, ErrPhoneUnverified):
		return "Please verify your phone number"
	default:
		return "Something went wrong. Please try again."
	}
}

// Screen is one wizard step.
type Screen interface {
	Step() booking.Step
	// Validate reports why the patient cannot leave this step yet, or nil.
	Validate() error
}

// Notifier shows transient messages; shared with the availability loader.
type Notifier = availability.Notifier

type discardNotifier struct{}

func (discardNotifier) Notify(string) {}

func notifierOrDiscard(n Notifier) Notifier {
	if n == nil {
		return discardNotifier{}
	}
	return n
}
