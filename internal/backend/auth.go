package backend

import (
	"context"
	"net/http"
)

// Profile is the signed-in patient as returned by GET /user/profile.
type Profile struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	ProfileImage *string `json:"profileImage"`
	IsGoogleAuth bool    `json:"isGoogleAuth"`
	Status       string  `json:"status"`
	Role         string  `json:"role"`
	CreatedAt    string  `json:"createdAt"`
}

// AuthResult is the common shape of the auth endpoints. Case is set by login when the
// account still needs OTP verification ("verify-otp").
type AuthResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Case    string `json:"case,omitempty"`
	Message string `json:"message,omitempty"`
	OTP     string `json:"otp,omitempty"`
}

// Profile calls GET /user/profile with the given token, or the client's token source when
// token is empty. The body is the profile itself, not an envelope.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	err := c.do(ctx, request{
		name:   "user_profile",
		method: http.MethodGet,
		path:   "/user/profile",
		auth:   true,
		token:  token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterViaNumber calls POST /user/register-via-number, which sends an OTP to phone.
func (c *Client) RegisterViaNumber(ctx context.Context, phone, name string) (*AuthResult, error) {
	body := map[string]string{"phone": phone, "name": name}
	return c.auth(ctx, "register_via_number", "/user/register-via-number", body)
}

// OTPTarget identifies who an OTP was sent to: an email address or a phone number.
type OTPTarget struct {
	Email  string `json:"email,omitempty"`
	Number string `json:"number,omitempty"`
}

// VerifyEmailOTP calls POST /user/verify-email-otp.
func (c *Client) VerifyEmailOTP(ctx context.Context, target OTPTarget, otp string) (*AuthResult, error) {
	body := struct {
		OTPTarget
		OTP string `json:"otp"`
	}{target, otp}
	return c.auth(ctx, "verify_email_otp", "/user/verify-email-otp", body)
}

// ResendEmailOTP calls POST /user/resend-email-otp.
func (c *Client) ResendEmailOTP(ctx context.Context, email string) (*AuthResult, error) {
	return c.auth(ctx, "resend_email_otp", "/user/resend-email-otp", map[string]string{"email": email})
}

// LoginUser calls POST /user/login-user.
func (c *Client) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return c.auth(ctx, "login_user", "/user/login-user", body)
}

// Registration is the body of POST /user/register.
type Registration struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	TermsAccepted bool   `json:"termsAccepted"`
}

// Register calls POST /user/register.
func (c *Client) Register(ctx context.Context, in Registration) (*AuthResult, error) {
	return c.auth(ctx, "register", "/user/register", in)
}

// VerifyGoogleToken calls POST /user/verify-token-google-auth with a Google ID token.
func (c *Client) VerifyGoogleToken(ctx context.Context, idToken string) (*AuthResult, error) {
	return c.auth(ctx, "verify_google_token", "/user/verify-token-google-auth", map[string]string{"token": idToken})
}

func (c *Client) auth(ctx context.Context, name, path string, body any) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, request{name: name, method: http.MethodPost, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
