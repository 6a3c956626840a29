package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Outcome scripts how the sandbox gateway resolves the next checkout.
type Outcome string

const (
	OutcomeSucceed Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
	OutcomeFail    Outcome = "fail"
)

// ParseOutcome accepts success|cancel|fail; anything else is success.
func ParseOutcome(v string) Outcome {
	switch Outcome(strings.ToLower(strings.TrimSpace(v))) {
	case OutcomeCancel:
		return OutcomeCancel
	case OutcomeFail:
		return OutcomeFail
	default:
		return OutcomeSucceed
	}
}

// SandboxGateway is a dev checkout that resolves immediately with a scripted outcome and
// signs successes the way Razorpay does, so the sandbox backend can verify them.
//
// Never wire this to production keys.
type SandboxGateway struct {
	mu      sync.Mutex
	secret  string
	outcome Outcome
	opened  []CheckoutOptions
	logger  *logging.Logger
}

func NewSandboxGateway(secret string, logger *logging.Logger) *SandboxGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &SandboxGateway{secret: secret, outcome: OutcomeSucceed, logger: logger}
}

// SetOutcome scripts the next checkouts.
func (g *SandboxGateway) SetOutcome(o Outcome) *SandboxGateway {
	g.mu.Lock()
	g.outcome = o
	g.mu.Unlock()
	return g
}

// Opened returns every checkout opened so far.
func (g *SandboxGateway) Opened() []CheckoutOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]CheckoutOptions(nil), g.opened...)
}

func (g *SandboxGateway) Open(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.OrderID == "" {
		return nil, fmt.Errorf("payments: sandbox checkout requires order id")
	}
	if opts.Amount <= 0 {
		return nil, &GatewayError{Code: "BAD_REQUEST_ERROR", Description: "The amount must be at least INR 1.00", Source: "business", Step: "payment_initiation", Reason: "input_validation_failed"}
	}

	g.mu.Lock()
	g.opened = append(g.opened, opts)
	outcome := g.outcome
	g.mu.Unlock()

	g.logger.Debug("sandbox checkout opened", "order_id", opts.OrderID, "amount", opts.Amount, "outcome", string(outcome))

	switch outcome {
	case OutcomeCancel:
		return nil, &GatewayError{
			Code:        CodePaymentCancelled,
			Description: "Payment processing cancelled by user",
			Source:      "customer",
			Step:        "payment_authentication",
			Reason:      "payment_cancelled",
		}
	case OutcomeFail:
		return nil, &GatewayError{
			Code:        "BAD_REQUEST_ERROR",
			Description: "Your payment has been declined by the bank",
			Source:      "bank",
			Step:        "payment_authorization",
			Reason:      "payment_failed",
			Metadata:    map[string]any{"order_id": opts.OrderID},
		}
	}

	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return &GatewayResult{
		RazorpayPaymentID: paymentID,
		RazorpayOrderID:   opts.OrderID,
		RazorpaySignature: Sign(g.secret, opts.OrderID, paymentID),
	}, nil
}

// Sign computes the checkout signature: hex HMAC-SHA256 of "order_id|payment_id".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout signature in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(signature), []byte(expected))
}
