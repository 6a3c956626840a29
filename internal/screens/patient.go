package screens

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/session"
)

const (
	phoneDigits = 10
	otpDigits   = 6
)

// Identity is the part of the session provider the patient step needs.
type Identity interface {
	IsAuthenticated() bool
	Profile() *session.Profile
	RegisterViaNumber(ctx context.Context, phone, name string) (string, error)
	VerifyOTP(ctx context.Context, target backend.OTPTarget, otp string) error
}

// PatientInfoScreen collects contact details and verifies the phone number by OTP.
type PatientInfoScreen struct {
	mu       sync.Mutex
	workflow *booking.Workflow
	identity Identity
	notifier Notifier

	otpSent     bool
	otpVerified bool
	otpHint     string
}

func NewPatientInfoScreen(workflow *booking.Workflow, identity Identity, notifier Notifier) *PatientInfoScreen {
	return &PatientInfoScreen{workflow: workflow, identity: identity, notifier: notifierOrDiscard(notifier)}
}

func (s *PatientInfoScreen) Step() booking.Step { return booking.StepPatientInfo }

// Enter prefills from the signed-in profile.
func (s *PatientInfoScreen) Enter() {
	if s.identity == nil || !s.identity.IsAuthenticated() {
		return
	}
	s.Prefill(s.identity.Profile())
}

// Prefill copies profile fields into patient info, leaving fields the patient already
// filled in untouched.
func (s *PatientInfoScreen) Prefill(p *session.Profile) {
	if p == nil {
		return
	}
	info := s.workflow.PatientInfo()
	var patch booking.PatientPatch
	if p.Name != "" && info.Name == "" {
		patch.Name = &p.Name
	}
	if p.Email != "" && info.Email == "" {
		patch.Email = &p.Email
	}
	if p.Phone != "" && info.Phone == "" {
		phone := digitsOnly(p.Phone, phoneDigits)
		patch.Phone = &phone
	}
	if !patch.Empty() {
		s.workflow.SetPatientInfo(patch)
	}
}

func (s *PatientInfoScreen) SetName(v string) {
	s.workflow.UpdatePatientField(booking.FieldName, v)
}

func (s *PatientInfoScreen) SetEmail(v string) {
	s.workflow.UpdatePatientField(booking.FieldEmail, v)
}

// SetPhone keeps digits only, at most ten. Changing the number drops any OTP progress.
func (s *PatientInfoScreen) SetPhone(v string) {
	phone := digitsOnly(v, phoneDigits)
	if phone == s.workflow.PatientInfo().Phone {
		return
	}
	s.workflow.UpdatePatientField(booking.FieldPhone, phone)
	s.mu.Lock()
	s.otpSent, s.otpVerified, s.otpHint = false, false, ""
	s.mu.Unlock()
}

// SendOTP registers the phone number and triggers an OTP. The hint is the code the
// backend echoes outside production.
func (s *PatientInfoScreen) SendOTP(ctx context.Context) (hint string, err error) {
	info := s.workflow.PatientInfo()
	if len(info.Phone) != phoneDigits {
		s.notifier.Notify(UserMessage(ErrInvalidPhone))
		return "", ErrInvalidPhone
	}
	if strings.TrimSpace(info.Name) == "" {
		s.notifier.Notify(UserMessage(ErrNameRequired))
		return "", ErrNameRequired
	}
	hint, err = s.identity.RegisterViaNumber(ctx, info.Phone, info.Name)
	if err != nil {
		s.notifier.Notify(failureMessage(err, "Failed to send OTP"))
		return "", err
	}
	s.mu.Lock()
	s.otpSent, s.otpHint = true, hint
	s.mu.Unlock()
	s.notifier.Notify("OTP sent to +91-" + info.Phone)
	return hint, nil
}

// ResendOTP repeats SendOTP.
func (s *PatientInfoScreen) ResendOTP(ctx context.Context) (string, error) {
	return s.SendOTP(ctx)
}

// VerifyOTP checks the code against the phone number. Success signs the patient in.
func (s *PatientInfoScreen) VerifyOTP(ctx context.Context, otp string) error {
	otp = strings.TrimSpace(otp)
	if len(otp) != otpDigits || digitsOnly(otp, otpDigits) != otp {
		s.notifier.Notify(UserMessage(ErrInvalidOTP))
		return ErrInvalidOTP
	}
	if !s.OTPSent() {
		return ErrOTPNotSent
	}
	phone := s.workflow.PatientInfo().Phone
	if err := s.identity.VerifyOTP(ctx, backend.OTPTarget{Number: phone}, otp); err != nil {
		s.notifier.Notify(failureMessage(err, "Invalid OTP"))
		return err
	}
	s.mu.Lock()
	s.otpVerified = true
	s.mu.Unlock()
	s.notifier.Notify("Phone number verified successfully!")
	return nil
}

func (s *PatientInfoScreen) OTPSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otpSent
}

func (s *PatientInfoScreen) PhoneVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otpVerified
}

// OTPHint is the development OTP echoed by the backend, if any.
func (s *PatientInfoScreen) OTPHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otpHint
}

// FormValid reports whether the patient may continue: all fields filled, a ten digit
// phone, and a verified phone for signed-in patients.
func (s *PatientInfoScreen) FormValid() bool {
	return s.Validate() == nil
}

func (s *PatientInfoScreen) Validate() error {
	info := s.workflow.PatientInfo()
	if strings.TrimSpace(info.Name) == "" || strings.TrimSpace(info.Email) == "" || len(info.Phone) != phoneDigits {
		return ErrPatientForm
	}
	if s.identity != nil && s.identity.IsAuthenticated() && !s.PhoneVerified() {
		return ErrPhoneUnverified
	}
	return nil
}

func digitsOnly(v string, limit int) string {
	var b strings.Builder
	for _, r := range v {
		if r < '0' || r > '9' {
			continue
		}
		if b.Len() == limit {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// failureMessage prefers a message the server or session layer supplied.
func failureMessage(err error, fallback string) string {
	var rejected *session.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
