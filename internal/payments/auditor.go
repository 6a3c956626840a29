package payments

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// AuditSink receives payment audit records.
type AuditSink interface {
	LogPaymentFailed(ctx context.Context, in backend.PaymentFailure) error
	LogPaymentCancelled(ctx context.Context, in backend.PaymentCancellation) error
}

// Auditor dispatches audit records in the background. Failures are logged and dropped;
// they never reach the hand-off's control flow.
type Auditor struct {
	sink    AuditSink
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAuditor(sink AuditSink, m *metrics.BookingMetrics, logger *logging.Logger) *Auditor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Auditor{sink: sink, logger: logger, metrics: m, timeout: backend.DefaultTimeout}
}

// PaymentFailed records a gateway failure.
func (a *Auditor) PaymentFailed(rec backend.PaymentFailure) {
	a.dispatch("payment_failed", rec.BookingID, func(ctx context.Context) error {
		return a.sink.LogPaymentFailed(ctx, rec)
	})
}

// PaymentCancelled records a dismissed checkout.
func (a *Auditor) PaymentCancelled(rec backend.PaymentCancellation) {
	a.dispatch("payment_cancelled", rec.BookingID, func(ctx context.Context) error {
		return a.sink.LogPaymentCancelled(ctx, rec)
	})
}

// Wait blocks until every dispatched record has been delivered or dropped.
func (a *Auditor) Wait() {
	a.wg.Wait()
}

func (a *Auditor) dispatch(kind, bookingID string, send func(context.Context) error) {
	if a == nil || a.sink == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("audit dispatch panicked", "kind", kind, "booking_id", bookingID, "panic", r)
				a.metrics.ObserveAudit(kind, false)
			}
		}()
		// Detached from the caller: the hand-off may be reset before this completes.
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			a.logger.Warn("audit dispatch failed", "kind", kind, "booking_id", bookingID, "error", err)
			a.metrics.ObserveAudit(kind, false)
			return
		}
		a.metrics.ObserveAudit(kind, true)
	}()
}
