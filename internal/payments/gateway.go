package payments

import (
	"context"
	"errors"
	"fmt"
)

// CodePaymentCancelled is the gateway error code for a checkout the patient dismissed.
const CodePaymentCancelled = "payment_cancelled"

// CodeEmptyResult marks a gateway that reported neither a result nor an error.
const CodeEmptyResult = "EMPTY_GATEWAY_RESULT"

// Prefill seeds the checkout form with the patient's details.
type Prefill struct {
	Email   string `json:"email"`
	Contact string `json:"contact"`
	Name    string `json:"name"`
}

// Theme styles the hosted checkout.
type Theme struct {
	Color string `json:"color"`
}

// CheckoutOptions opens a gateway checkout for one order. Amount is in minor units.
type CheckoutOptions struct {
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	Currency    string          `json:"currency"`
	Key         string          `json:"key"`
	Amount      int64           `json:"amount"`
	OrderID     string          `json:"order_id"`
	Name        string          `json:"name"`
	Prefill     Prefill         `json:"prefill"`
	Theme       Theme           `json:"theme"`
	Method      map[string]bool `json:"method"`
}

// GatewayResult is the signed confirmation returned by a successful checkout.
type GatewayResult struct {
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// GatewayError is a rejected checkout.
type GatewayError struct {
	Code        string         `json:"code"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	Step        string         `json:"step"`
	Reason      string         `json:"reason"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("payments: gateway %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("payments: gateway %s", e.Code)
}

// Cancelled reports whether the patient dismissed the checkout.
func (e *GatewayError) Cancelled() bool {
	return e.Code == CodePaymentCancelled
}

// Gateway opens a checkout and blocks until it resolves.
type Gateway interface {
	Open(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error)

func (f GatewayFunc) Open(ctx context.Context, opts CheckoutOptions) (*GatewayResult, error) {
	return f(ctx, opts)
}

// asGatewayError normalizes any checkout error into a GatewayError.
func asGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, context.Canceled) {
		return &GatewayError{Code: CodePaymentCancelled, Description: "Checkout closed", Source: "client", Reason: "context_canceled"}
	}
	return &GatewayError{Code: "gateway_error", Description: err.Error(), Source: "client"}
}
