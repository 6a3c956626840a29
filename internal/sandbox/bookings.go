package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/http/middleware"
)

// toWire renders a stored booking in the backend's JSON shape. Follow-up sessions are
// scheduled a week apart at the same time.
func toWire(b Booking) backend.Booking {
	out := backend.Booking{
		ID:            b.ID,
		BookingNumber: b.BookingNumber,
		ClinicID:      b.ClinicID,
		ClinicName:    b.ClinicName,
		Patient:       backend.PatientDetails{Name: b.PatientName, Phone: b.PatientPhone, Email: b.PatientEmail},
		Date:          b.Date,
		Time:          b.Time,
		Sessions:      b.Sessions,
		Amount:        b.Amount,
		PaymentMethod: b.PaymentMethod,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	first, err := time.Parse(catalog.DateLayout, b.Date)
	if err != nil {
		return out
	}
	for i := 0; i < b.Sessions; i++ {
		out.SessionDates = append(out.SessionDates, backend.SessionDate{
			SessionNumber: i + 1,
			Date:          first.AddDate(0, 0, 7*i).Format(catalog.DateLayout),
			Time:          b.Time,
			Status:        "scheduled",
		})
	}
	return out
}

func validateBookingRequest(in backend.CreateBookingRequest) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(in.PatientDetails.Name) == "" {
		fields["patient_details.name"] = "Name is required"
	}
	if len(strings.TrimSpace(in.PatientDetails.Phone)) != 10 {
		fields["patient_details.phone"] = "Phone must be 10 digits"
	}
	if !strings.Contains(in.PatientDetails.Email, "@") {
		fields["patient_details.email"] = "A valid email is required"
	}
	if _, err := time.Parse(catalog.DateLayout, in.Date); err != nil {
		fields["date"] = "Date must be YYYY-MM-DD"
	}
	if in.Time == "" {
		fields["time"] = "Time is required"
	}
	if in.Sessions < 1 {
		fields["sessions"] = "At least one session is required"
	}
	if in.Amount <= 0 {
		fields["amount"] = "Amount must be positive"
	}
	switch in.PaymentMethod {
	case "online", "card":
	default:
		fields["payment_method"] = "Payment method must be online or card"
	}
	return fields
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "sandbox.create_booking")
	defer span.End()

	var in backend.CreateBookingRequest
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	clinic, ok := h.fixtures.Clinic(in.ClinicID)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Clinic not found")
		return
	}
	now := h.now()
	if !clinic.Available(now) {
		writeMessage(w, http.StatusBadRequest, "This clinic is not available for booking at the moment")
		return
	}
	if fields := validateBookingRequest(in); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "message": "Validation failed", "errors": fields})
		return
	}
	counts, err := h.store.SlotCounts(ctx, clinic.ID)
	if err != nil {
		h.serverError(w, "slot counts", err)
		return
	}
	if !slotOpen(clinic, now, counts, in.Date, in.Time) {
		writeMessage(w, http.StatusConflict, "Selected time slot is no longer available")
		return
	}

	userID, _ := middleware.PatientFromContext(ctx)
	id := uuid.NewString()
	order, err := h.orders.CreateOrder(ctx, in.Amount*100, h.currency, id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("sandbox order creation failed", "booking_id", id, "error", err)
		writeMessage(w, http.StatusBadGateway, "Failed to create payment order")
		return
	}
	b := Booking{
		ID:            id,
		BookingNumber: fmt.Sprintf("CB-%s-%s", now.Format("20060102"), strings.ToUpper(id[:6])),
		UserID:        userID,
		ClinicID:      clinic.ID,
		ClinicName:    clinic.DisplayName(),
		PatientName:   strings.TrimSpace(in.PatientDetails.Name),
		PatientEmail:  strings.TrimSpace(in.PatientDetails.Email),
		PatientPhone:  strings.TrimSpace(in.PatientDetails.Phone),
		Date:          in.Date,
		Time:          in.Time,
		Sessions:      in.Sessions,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Status:        BookingPending,
		PaymentStatus: PaymentPending,
		OrderID:       order.ID,
		CreatedAt:     now.UTC(),
	}
	if err := h.store.CreateBooking(ctx, b); err != nil {
		h.serverError(w, "create booking", err)
		return
	}
	span.SetAttributes(attribute.String("clinicbook.booking_id", b.ID))
	h.metrics.ObserveBooking(BookingPending)
	h.logger.Info("sandbox booking created", "booking_id", b.ID, "clinic_id", b.ClinicID, "date", b.Date, "time", b.Time, "amount", b.Amount)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Booking created successfully",
		"data": backend.CreateBookingResult{
			Booking: toWire(b),
			Payment: backend.PaymentOrder{
				ID:       b.ID,
				Key:      h.keyID,
				Amount:   float64(order.Amount) / 100,
				OrderID:  order.ID,
				Currency: order.Currency,
			},
		},
	})
}

// ownedBooking loads a booking that belongs to the signed-in patient.
func (h *Handler) ownedBooking(r *http.Request, id string) (*Booking, error) {
	userID, _ := middleware.PatientFromContext(r.Context())
	b, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotFound
	}
	return b, nil
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "sandbox.verify_payment")
	defer span.End()

	var in backend.VerifyPaymentRequest
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b, err := h.ownedBooking(r, in.BookingID)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		h.serverError(w, "load booking", err)
		return
	}
	if b.Status == BookingConfirmed {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Payment already verified",
			"data":    map[string]any{"transaction_id": b.TransactionID, "booking": toWire(*b)},
		})
		return
	}
	if in.RazorpayOrderID != b.OrderID || !verifySignature(h.keySecret, in.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
		if err := h.store.UpdateBookingStatus(ctx, b.ID, BookingFailed, PaymentFailed, ""); err != nil {
			h.serverError(w, "update booking", err)
			return
		}
		h.metrics.ObserveBooking(BookingFailed)
		h.logger.Warn("sandbox payment signature rejected", "booking_id", b.ID, "order_id", in.RazorpayOrderID)
		writeMessage(w, http.StatusBadRequest, "Payment verification failed")
		return
	}
	if err := h.store.UpdateBookingStatus(ctx, b.ID, BookingConfirmed, PaymentPaid, in.RazorpayPaymentID); err != nil {
		h.serverError(w, "update booking", err)
		return
	}
	b.Status, b.PaymentStatus, b.TransactionID = BookingConfirmed, PaymentPaid, in.RazorpayPaymentID
	h.metrics.ObserveBooking(BookingConfirmed)
	h.logger.Info("sandbox booking confirmed", "booking_id", b.ID, "transaction_id", b.TransactionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment verified successfully",
		"data":    map[string]any{"transaction_id": b.TransactionID, "booking": toWire(*b)},
	})
}

func (h *Handler) handlePaymentFailed(w http.ResponseWriter, r *http.Request) {
	h.recordOutcome(w, r, "payment_failed", BookingFailed, PaymentFailed)
}

func (h *Handler) handlePaymentCancelled(w http.ResponseWriter, r *http.Request) {
	h.recordOutcome(w, r, "payment_cancelled", BookingCancelled, PaymentCancelled)
}

// recordOutcome stores the audit payload verbatim and releases a still-pending booking.
func (h *Handler) recordOutcome(w http.ResponseWriter, r *http.Request, kind, status, paymentStatus string) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var in struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx := r.Context()
	if err := h.store.RecordAudit(ctx, AuditEvent{Kind: kind, BookingID: in.BookingID, Payload: raw, CreatedAt: h.now().UTC()}); err != nil {
		h.serverError(w, "record audit", err)
		return
	}
	b, err := h.ownedBooking(r, in.BookingID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		h.serverError(w, "load booking", err)
		return
	case b.Status == BookingPending:
		if err := h.store.UpdateBookingStatus(ctx, b.ID, status, paymentStatus, ""); err != nil {
			h.serverError(w, "update booking", err)
			return
		}
		h.metrics.ObserveBooking(status)
	}
	h.logger.Info("sandbox payment outcome recorded", "kind", kind, "booking_id", in.BookingID)
	writeMessage(w, http.StatusOK, "Recorded")
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var in backend.AvailabilityCheck
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	clinic, ok := h.fixtures.Clinic(in.ClinicID)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Clinic not found")
		return
	}
	counts, err := h.store.SlotCounts(r.Context(), clinic.ID)
	if err != nil {
		h.serverError(w, "slot counts", err)
		return
	}
	writeJSON(w, http.StatusOK, backend.SlotCapacity{
		Success:     true,
		Available:   slotOpen(clinic, h.now(), counts, in.Date, in.Time),
		BookedCount: counts[slotKey(in.Date, in.Time)],
		Limit:       SlotCapacity,
	})
}

func (h *Handler) handleListBookings(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.PatientFromContext(r.Context())
	bookings, err := h.store.ListBookings(r.Context(), userID)
	if err != nil {
		h.serverError(w, "list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Bookings found",
		"bookings": splitHistory(bookings, h.now()),
	})
}

// splitHistory puts held bookings from today onward in Current and everything else in
// History.
func splitHistory(bookings []Booking, now time.Time) backend.BookingHistory {
	today := now.Format(catalog.DateLayout)
	out := backend.BookingHistory{
		Current: []backend.Booking{},
		History: []backend.Booking{},
		Summary: &backend.BookingSummary{Total: len(bookings)},
	}
	for _, b := range bookings {
		if b.Holds() && b.Date >= today {
			out.Current = append(out.Current, toWire(b))
			out.Summary.Upcoming++
			continue
		}
		if b.Status == BookingConfirmed {
			out.Summary.Completed++
		}
		out.History = append(out.History, toWire(b))
	}
	return out
}

func (h *Handler) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.ownedBooking(r, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		h.serverError(w, "load booking", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": toWire(*b)})
}
