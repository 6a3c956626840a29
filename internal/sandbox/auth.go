package sandbox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL = 7 * 24 * time.Hour
	otpTTL   = 10 * time.Minute
)

// tokenIssuer signs HS256 patient tokens whose subject is the user id.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func (t tokenIssuer) issue(userID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		Issuer:    "clinicbook-sandbox",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sandbox: sign token: %w", err)
	}
	return signed, nil
}

type pendingOTP struct {
	code    string
	userID  string
	expires time.Time
}

// otpBook holds one outstanding code per email or phone.
type otpBook struct {
	mu    sync.Mutex
	codes map[string]pendingOTP
	now   func() time.Time
}

func newOTPBook(now func() time.Time) *otpBook {
	return &otpBook{codes: make(map[string]pendingOTP), now: now}
}

func otpKey(target string) string {
	return strings.ToLower(strings.TrimSpace(target))
}

// issue replaces any outstanding code for target.
func (b *otpBook) issue(target, userID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("sandbox: otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[otpKey(target)] = pendingOTP{code: code, userID: userID, expires: b.now().Add(otpTTL)}
	return code, nil
}

// redeem consumes a matching, unexpired code and returns the user it was issued for.
func (b *otpBook) redeem(target, code string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := otpKey(target)
	pending, ok := b.codes[key]
	if !ok {
		return "", false
	}
	if b.now().After(pending.expires) {
		delete(b.codes, key)
		return "", false
	}
	if pending.code != code {
		return "", false
	}
	delete(b.codes, key)
	return pending.userID, true
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sandbox: hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// parseGoogleToken reads the identity claims of a Google ID token. The sandbox does not
// verify Google's signature.
func parseGoogleToken(raw string) (*googleClaims, error) {
	claims := &googleClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("sandbox: google token: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("sandbox: google token: missing email")
	}
	return claims, nil
}
