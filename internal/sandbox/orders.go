package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Default test-mode credentials used when none are configured. The booking CLI signs
// sandbox checkouts with the same secret.
const (
	DefaultKeyID     = "rzp_test_sandbox"
	DefaultKeySecret = "sandbox_key_secret"
)

// Order is a gateway order for a pending booking. Amount is in minor units.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}

// OrderCreator opens payment orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error)
}

// LocalOrders mints order ids without calling the gateway.
type LocalOrders struct{}

func (LocalOrders) CreateOrder(_ context.Context, amountMinor int64, currency, _ string) (*Order, error) {
	return &Order{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   amountMinor,
		Currency: currency,
	}, nil
}

// RazorpayOrders creates orders through the Razorpay Orders API.
type RazorpayOrders struct {
	client *razorpay.Client
}

func NewRazorpayOrders(keyID, keySecret string) *RazorpayOrders {
	return &RazorpayOrders{client: razorpay.NewClient(keyID, keySecret)}
}

func (r *RazorpayOrders) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := r.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("sandbox: razorpay order: %w", err)
	}
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("sandbox: razorpay order: missing id")
	}
	return &Order{ID: id, Amount: amountMinor, Currency: currency}, nil
}

// verifySignature checks the checkout signature over "order_id|payment_id".
func verifySignature(secret, orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	attrs := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(attrs, signature, secret)
}
