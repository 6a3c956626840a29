package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PatientDetails identifies who the sessions are booked for.
type PatientDetails struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// CreateBookingRequest is the body of POST /user/bookings/sessions. Amount is the final
// amount in major currency units.
type CreateBookingRequest struct {
	ClinicID       string         `json:"clinic_id"`
	PatientDetails PatientDetails `json:"patient_details"`
	Date           string         `json:"date"`
	Time           string         `json:"time"`
	Sessions       int            `json:"sessions"`
	PaymentMethod  string         `json:"payment_method"`
	Amount         int64          `json:"amount"`
}

// SessionDate is one scheduled visit inside a multi-session booking.
type SessionDate struct {
	SessionNumber int    `json:"sessionNumber"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// Booking is a booking as returned by the backend.
type Booking struct {
	ID            string         `json:"id"`
	BookingNumber string         `json:"bookingNumber,omitempty"`
	ClinicID      string         `json:"clinic_id,omitempty"`
	ClinicName    string         `json:"clinic_name,omitempty"`
	Patient       PatientDetails `json:"patient_details"`
	Date          string         `json:"date,omitempty"`
	Time          string         `json:"time,omitempty"`
	Sessions      int            `json:"sessions,omitempty"`
	Amount        int64          `json:"amount,omitempty"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	Status        string         `json:"status,omitempty"`
	PaymentStatus string         `json:"payment_status,omitempty"`
	SessionDates  []SessionDate  `json:"SessionDates,omitempty"`
	CreatedAt     string         `json:"createdAt,omitempty"`
}

// PaymentOrder is the gateway order created alongside a pending booking. Amount is in
// major units; the checkout expects minor units.
type PaymentOrder struct {
	ID       string  `json:"id"`
	Key      string  `json:"key"`
	Amount   float64 `json:"amount"`
	OrderID  string  `json:"orderId"`
	Currency string  `json:"currency"`
}

// CreateBookingResult carries the pending booking and its payment order.
type CreateBookingResult struct {
	Booking Booking      `json:"booking"`
	Payment PaymentOrder `json:"payment"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateSessionBooking calls POST /user/bookings/sessions. A 2xx response with
// success:false is reported as an APIError carrying the server message.
func (c *Client) CreateSessionBooking(ctx context.Context, in CreateBookingRequest) (*CreateBookingResult, error) {
	var resp envelope[CreateBookingResult]
	err := c.do(ctx, request{
		name:   "create_session_booking",
		method: http.MethodPost,
		path:   "/user/bookings/sessions",
		body:   in,
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Booking creation failed"
		}
		return nil, &APIError{StatusCode: http.StatusOK, Message: msg}
	}
	return &resp.Data, nil
}

// VerifyPaymentRequest forwards the gateway's signed confirmation.
type VerifyPaymentRequest struct {
	Platform          string `json:"platform"`
	BookingID         string `json:"booking_id"`
	PaymentID         string `json:"payment_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// VerifyPaymentResult is the backend's verdict on a gateway confirmation.
type VerifyPaymentResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// VerifyPayment calls POST /user/bookings/verify-payment. success:false is returned as a
// result, not an error; callers decide how to treat it.
func (c *Client) VerifyPayment(ctx context.Context, in VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	if in.Platform == "" {
		in.Platform = "app"
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			TransactionID string `json:"transaction_id"`
		} `json:"data"`
	}
	err := c.do(ctx, request{
		name:   "verify_payment",
		method: http.MethodPost,
		path:   "/user/bookings/verify-payment",
		body:   in,
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &VerifyPaymentResult{
		Success:       resp.Success,
		Message:       resp.Message,
		TransactionID: resp.Data.TransactionID,
	}, nil
}

// PaymentFailure is the audit record for a gateway failure.
type PaymentFailure struct {
	BookingID        string    `json:"booking_id"`
	PaymentID        string    `json:"payment_id"`
	ErrorCode        string    `json:"error_code"`
	ErrorDescription string    `json:"error_description"`
	ErrorSource      string    `json:"error_source"`
	ErrorStep        string    `json:"error_step"`
	ErrorReason      string    `json:"error_reason"`
	Timestamp        time.Time `json:"timestamp"`
}

// PaymentCancellation is the audit record for a user-cancelled checkout.
type PaymentCancellation struct {
	BookingID          string    `json:"booking_id"`
	PaymentID          string    `json:"payment_id"`
	CancellationReason string    `json:"cancellation_reason"`
	Timestamp          time.Time `json:"timestamp"`
}

// LogPaymentFailed calls POST /user/bookings/payment-failed. The response body is ignored.
func (c *Client) LogPaymentFailed(ctx context.Context, in PaymentFailure) error {
	return c.do(ctx, request{
		name:   "payment_failed",
		method: http.MethodPost,
		path:   "/user/bookings/payment-failed",
		body:   in,
		auth:   true,
	}, nil)
}

// LogPaymentCancelled calls POST /user/bookings/payment-cancelled. The response body is ignored.
func (c *Client) LogPaymentCancelled(ctx context.Context, in PaymentCancellation) error {
	if in.CancellationReason == "" {
		in.CancellationReason = "user_cancelled"
	}
	return c.do(ctx, request{
		name:   "payment_cancelled",
		method: http.MethodPost,
		path:   "/user/bookings/payment-cancelled",
		body:   in,
		auth:   true,
	}, nil)
}

// AvailabilityCheck asks whether a slot still has capacity.
type AvailabilityCheck struct {
	ClinicID  string `json:"clinic_id"`
	ServiceID string `json:"service_id,omitempty"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// SlotCapacity is the answer to an AvailabilityCheck.
type SlotCapacity struct {
	Success            bool `json:"success"`
	Available          bool `json:"available"`
	BookedCount        int  `json:"bookedCount"`
	Limit              int  `json:"limit"`
	SpecialSlotApplied bool `json:"specialSlotApplied"`
}

// CheckAvailability calls POST /user/bookings/availability.
func (c *Client) CheckAvailability(ctx context.Context, in AvailabilityCheck) (*SlotCapacity, error) {
	var resp SlotCapacity
	err := c.do(ctx, request{
		name:   "check_availability",
		method: http.MethodPost,
		path:   "/user/bookings/availability",
		body:   in,
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// BookingSummary counts the patient's bookings.
type BookingSummary struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
}

// BookingHistory splits the patient's bookings into current and past.
type BookingHistory struct {
	Current []Booking       `json:"current"`
	History []Booking       `json:"history"`
	Summary *BookingSummary `json:"summary,omitempty"`
}

// ListBookings calls GET /user/found-bookings.
func (c *Client) ListBookings(ctx context.Context) (*BookingHistory, error) {
	var resp struct {
		Success  bool           `json:"success"`
		Message  string         `json:"message"`
		Bookings BookingHistory `json:"bookings"`
	}
	err := c.do(ctx, request{
		name:   "found_bookings",
		method: http.MethodGet,
		path:   "/user/found-bookings",
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Booking not found"}
	}
	return &resp.Bookings, nil
}

// GetBooking calls GET /user/found-booking/{id}.
func (c *Client) GetBooking(ctx context.Context, id string) (*Booking, error) {
	if id == "" {
		return nil, fmt.Errorf("backend: booking id required")
	}
	var resp envelope[*Booking]
	err := c.do(ctx, request{
		name:   "found_booking",
		method: http.MethodGet,
		path:   "/user/found-booking/" + url.PathEscape(id),
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Booking not found"}
	}
	return resp.Data, nil
}
