package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var (
	// ErrNoToken is returned by calls that need a signed-in patient.
	ErrNoToken = errors.New("session: no auth token")
	// ErrOTPRequired is returned by Login when the account must verify an OTP first.
	ErrOTPRequired = errors.New("session: otp verification required")
)

// RejectedError is a 2xx auth response whose success flag was false, or that lacked a token.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("session: %s: %s", e.Op, e.Message)
}

// UserMessage maps provider errors to patient-facing text.
func UserMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	if errors.Is(err, ErrNoToken) {
		return "Please sign in to continue."
	}
	return backend.UserMessage(err)
}

// Profile is the cached patient profile.
type Profile = backend.Profile

// Backend is the subset of the REST client the provider calls.
type Backend interface {
	Profile(ctx context.Context, token string) (*backend.Profile, error)
	RegisterViaNumber(ctx context.Context, phone, name string) (*backend.AuthResult, error)
	VerifyEmailOTP(ctx context.Context, target backend.OTPTarget, otp string) (*backend.AuthResult, error)
	ResendEmailOTP(ctx context.Context, email string) (*backend.AuthResult, error)
	LoginUser(ctx context.Context, email, password string) (*backend.AuthResult, error)
	Register(ctx context.Context, in backend.Registration) (*backend.AuthResult, error)
	VerifyGoogleToken(ctx context.Context, idToken string) (*backend.AuthResult, error)
}

type storedToken struct {
	Token string `json:"token"`
}

// Provider owns the patient's identity: the bearer token, the cached profile and the
// guest flag. It is safe for concurrent use and satisfies backend.TokenSource.
type Provider struct {
	mu            sync.RWMutex
	store         Store
	api           Backend
	logger        *logging.Logger
	now           func() time.Time
	token         string
	profile       *Profile
	guest         bool
	authenticated bool
	lastError     string
}

func NewProvider(store Store, api Backend, logger *logging.Logger) *Provider {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Provider{store: store, api: api, logger: logger, now: time.Now}
}

// WithClock overrides the time source used for token expiry.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	if now != nil {
		p.now = now
	}
	return p
}

// Restore loads a persisted session. A corrupt token entry is deleted; an expired JWT
// clears the whole session. A missing session is not an error.
func (p *Provider) Restore(ctx context.Context) error {
	raw, err := p.store.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		p.setError("Failed to initialize authentication")
		return fmt.Errorf("session: restore: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal([]byte(raw), &st); err != nil || strings.TrimSpace(st.Token) == "" {
		p.logger.Warn("discarding corrupt session token")
		if delErr := p.store.Delete(ctx, TokenKey); delErr != nil {
			return fmt.Errorf("session: drop corrupt token: %w", delErr)
		}
		return nil
	}
	if p.expired(st.Token) {
		p.logger.Info("persisted session token expired")
		return p.store.Delete(ctx, TokenKey, UserDataKey)
	}

	var cached *Profile
	if data, err := p.store.Get(ctx, UserDataKey); err == nil {
		var prof Profile
		if json.Unmarshal([]byte(data), &prof) == nil {
			cached = &prof
		}
	}

	p.mu.Lock()
	p.token = st.Token
	p.authenticated = true
	p.profile = cached
	p.mu.Unlock()
	return nil
}

// expired reports whether token is a JWT whose exp has passed. Opaque tokens never expire
// client side.
func (p *Provider) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(p.now())
}

// SaveToken persists token and marks the session authenticated.
func (p *Provider) SaveToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	payload, err := json.Marshal(storedToken{Token: token})
	if err != nil {
		return fmt.Errorf("session: encode token: %w", err)
	}
	if err := p.store.Set(ctx, TokenKey, string(payload)); err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	p.mu.Lock()
	p.token = token
	p.authenticated = true
	p.guest = false
	p.mu.Unlock()
	return nil
}

// FetchProfile refreshes the profile from GET /user/profile and caches it. A 401 logs the
// patient out.
func (p *Provider) FetchProfile(ctx context.Context) (*Profile, error) {
	token := p.Token()
	if token == "" {
		return nil, ErrNoToken
	}
	if p.api == nil {
		return nil, fmt.Errorf("session: no backend configured")
	}
	prof, err := p.api.Profile(ctx, token)
	if err != nil {
		p.setError(profileErrorMessage(err))
		if backend.IsUnauthorized(err) {
			p.logger.Info("profile fetch unauthorized, logging out")
			if logoutErr := p.Logout(ctx); logoutErr != nil {
				p.logger.Warn("logout after 401 failed", "error", logoutErr)
			}
		}
		return nil, fmt.Errorf("session: fetch profile: %w", err)
	}
	if data, err := json.Marshal(prof); err == nil {
		if err := p.store.Set(ctx, UserDataKey, string(data)); err != nil {
			p.logger.Warn("caching profile failed", "error", err)
		}
	}
	p.mu.Lock()
	p.profile = prof
	p.lastError = ""
	p.mu.Unlock()
	return prof, nil
}

func profileErrorMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to fetch user profile"
}

// SetGuestMode switches between guest and signed-out. Either way the in-memory token and
// profile are dropped; persisted state is left alone.
func (p *Provider) SetGuestMode(guest bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guest = guest
	p.authenticated = false
	p.token = ""
	p.profile = nil
}

// Logout clears persisted and in-memory session state.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	p.token = ""
	p.profile = nil
	p.authenticated = false
	p.guest = false
	p.mu.Unlock()
	if err := p.store.Delete(ctx, TokenKey, UserDataKey); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authenticated
}

func (p *Provider) IsGuest() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.guest
}

// Profile returns a copy of the cached profile, or nil.
func (p *Provider) Profile() *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile == nil {
		return nil
	}
	out := *p.profile
	return &out
}

// LastError is the most recent user-facing session error.
func (p *Provider) LastError() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError
}

func (p *Provider) setError(msg string) {
	p.mu.Lock()
	p.lastError = msg
	p.mu.Unlock()
}

var _ backend.TokenSource = (*Provider)(nil)
