package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-booking/internal/backend"
)

func (p *Provider) requireBackend() error {
	if p.api == nil {
		return fmt.Errorf("session: no backend configured")
	}
	return nil
}

// RegisterViaNumber sends an OTP to phone. The returned hint is the OTP the backend echoes
// in non-production environments, or "".
func (p *Provider) RegisterViaNumber(ctx context.Context, phone, name string) (string, error) {
	if err := p.requireBackend(); err != nil {
		return "", err
	}
	res, err := p.api.RegisterViaNumber(ctx, phone, strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("session: send otp: %w", err)
	}
	if !res.Success && res.Message != "" {
		return "", &RejectedError{Op: "send otp", Message: res.Message}
	}
	return res.OTP, nil
}

// VerifyOTP checks otp for target. On success the returned token is saved and the profile
// fetched, which leaves the session authenticated.
func (p *Provider) VerifyOTP(ctx context.Context, target backend.OTPTarget, otp string) error {
	if err := p.requireBackend(); err != nil {
		return err
	}
	res, err := p.api.VerifyEmailOTP(ctx, target, otp)
	if err != nil {
		return fmt.Errorf("session: verify otp: %w", err)
	}
	if !res.Success || res.Token == "" {
		return &RejectedError{Op: "verify otp", Message: orDefault(res.Message, "OTP verification failed")}
	}
	return p.establish(ctx, res.Token)
}

// ResendOTP asks the backend to send a fresh OTP to email.
func (p *Provider) ResendOTP(ctx context.Context, email string) error {
	if err := p.requireBackend(); err != nil {
		return err
	}
	res, err := p.api.ResendEmailOTP(ctx, email)
	if err != nil {
		return fmt.Errorf("session: resend otp: %w", err)
	}
	if !res.Success {
		return &RejectedError{Op: "resend otp", Message: orDefault(res.Message, "Failed to resend OTP")}
	}
	return nil
}

// Login signs in with email and password. ErrOTPRequired means the caller must run the
// OTP flow for email before a token is issued.
func (p *Provider) Login(ctx context.Context, email, password string) error {
	if err := p.requireBackend(); err != nil {
		return err
	}
	res, err := p.api.LoginUser(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	if !res.Success {
		return &RejectedError{Op: "login", Message: orDefault(res.Message, "Login failed")}
	}
	if res.Case == "verify-otp" {
		return ErrOTPRequired
	}
	return p.establish(ctx, res.Token)
}

// Register creates an account. The backend then emails an OTP; no token is issued yet.
func (p *Provider) Register(ctx context.Context, in backend.Registration) error {
	if err := p.requireBackend(); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	res, err := p.api.Register(ctx, in)
	if err != nil {
		return fmt.Errorf("session: register: %w", err)
	}
	if !res.Success {
		return &RejectedError{Op: "register", Message: orDefault(res.Message, "Registration failed")}
	}
	return nil
}

// GoogleSignIn exchanges a Google ID token for a session.
func (p *Provider) GoogleSignIn(ctx context.Context, idToken string) error {
	if err := p.requireBackend(); err != nil {
		return err
	}
	res, err := p.api.VerifyGoogleToken(ctx, idToken)
	if err != nil {
		return fmt.Errorf("session: google sign-in: %w", err)
	}
	if res.Token == "" {
		return &RejectedError{Op: "google sign-in", Message: "Authentication failed. No token received."}
	}
	return p.establish(ctx, res.Token)
}

func (p *Provider) establish(ctx context.Context, token string) error {
	if token == "" {
		return &RejectedError{Op: "sign-in", Message: "Authentication failed. No token received."}
	}
	if err := p.SaveToken(ctx, token); err != nil {
		return err
	}
	if _, err := p.FetchProfile(ctx); err != nil {
		p.logger.Warn("profile fetch after sign-in failed", "error", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
