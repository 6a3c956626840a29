package booking

import (
	"math"

	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// PaymentMethod selects how the patient pays at checkout.
type PaymentMethod string

const (
	MethodOnline PaymentMethod = "online"
	MethodCard   PaymentMethod = "card"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == MethodOnline || m == MethodCard
}

// Quote is the price breakdown derived from state and settings. It is recomputed on every
// read and never stored, so late-loading settings are always reflected.
type Quote struct {
	Sessions  int
	UnitPrice int64
	UnitMRP   int64
	Total     int64
	MRPTotal  int64
	Savings   int64
	Tax       int64
	CardFee   int64
	Final     int64
}

// MinorUnits is the final amount in the currency's minor unit (paise).
func (q Quote) MinorUnits() int64 {
	return q.Final * 100
}

// NewQuote derives the price breakdown.
func NewQuote(s State, cfg catalog.PaymentConfig, method PaymentMethod) Quote {
	sessions := max(1, s.SelectedSessions)
	q := Quote{
		Sessions:  sessions,
		UnitPrice: s.SessionPrice,
		UnitMRP:   s.SessionMRP,
	}
	q.Total = s.SessionPrice * int64(sessions)
	q.MRPTotal = s.SessionMRP * int64(sessions)
	q.Savings = int64(sessions) * (s.SessionMRP - s.SessionPrice)
	q.Tax = percentOf(q.Total, cfg.TaxPercentage)
	if method == MethodCard {
		q.CardFee = percentOf(q.Total+q.Tax, cfg.CreditCardFee)
	}
	q.Final = q.Total + q.Tax + q.CardFee
	return q
}

func percentOf(amount int64, pct float64) int64 {
	if pct <= 0 || math.IsNaN(pct) {
		return 0
	}
	return int64(math.Round(float64(amount) * pct / 100))
}
