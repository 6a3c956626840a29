package catalog

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used throughout the booking API.
const DateLayout = "2006-01-02"

// AvailabilityStatus describes where "now" falls relative to a clinic's booking window.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "available"
	StatusUpcoming  AvailabilityStatus = "upcoming"
	StatusExpired   AvailabilityStatus = "expired"
	StatusNotSet    AvailabilityStatus = "not_set"
)

// Message returns the user-facing label for the status.
func (s AvailabilityStatus) Message() string {
	switch s {
	case StatusAvailable:
		return "Available for booking"
	case StatusUpcoming:
		return "Booking opens soon"
	case StatusExpired:
		return "Booking period ended"
	default:
		return "Booking dates not configured"
	}
}

// BookingWindow is the [start_date, end_date] range during which a clinic accepts bookings.
type BookingWindow struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Bounds resolves the window in loc. A date-only end covers that whole day.
func (w BookingWindow) Bounds(loc *time.Location) (start, end time.Time, err error) {
	start, _, err = ParseDate(w.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("catalog: window start: %w", err)
	}
	end, dateOnly, err := ParseDate(w.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("catalog: window end: %w", err)
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return start, end, nil
}

// Contains reports whether t falls inside the window. Malformed windows contain nothing.
func (w BookingWindow) Contains(t time.Time) bool {
	start, end, err := w.Bounds(t.Location())
	if err != nil {
		return false
	}
	return !t.Before(start) && !t.After(end)
}

// Label renders the window as "Jan 2, 2006 - Jan 2, 2006".
func (w BookingWindow) Label() string {
	start, end, err := w.Bounds(time.UTC)
	if err != nil {
		return ""
	}
	return start.Format("Jan 2, 2006") + " - " + end.Format("Jan 2, 2006")
}

// ContactDetails holds the clinic's published contact information.
type ContactDetails struct {
	ClinicAddress string   `json:"clinic_address,omitempty"`
	PhoneNumbers  []string `json:"phone_numbers,omitempty"`
}

// Clinic is the read-only projection of a clinic returned by the backend.
type Clinic struct {
	ID             string          `json:"_id"`
	ClinicName     string          `json:"clinic_name,omitempty"`
	Name           string          `json:"name,omitempty"`
	Address        string          `json:"address,omitempty"`
	City           string          `json:"city,omitempty"`
	State          string          `json:"state,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	ContactDetails *ContactDetails `json:"clinic_contact_details,omitempty"`
	// The backend spells this key BookingAvailabeAt.
	BookingWindow *BookingWindow `json:"BookingAvailabeAt,omitempty"`
	IsActive      bool           `json:"isActive"`
}

// DisplayName prefers clinic_name, then name.
func (c Clinic) DisplayName() string {
	if name := strings.TrimSpace(c.ClinicName); name != "" {
		return name
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return "Unnamed Clinic"
}

// DisplayAddress prefers the contact-details address.
func (c Clinic) DisplayAddress() string {
	if c.ContactDetails != nil && strings.TrimSpace(c.ContactDetails.ClinicAddress) != "" {
		return c.ContactDetails.ClinicAddress
	}
	if strings.TrimSpace(c.Address) != "" {
		return c.Address
	}
	return "Address not available"
}

// PhoneNumbers returns every known contact number.
func (c Clinic) PhoneNumbers() []string {
	var out []string
	if c.ContactDetails != nil {
		out = append(out, c.ContactDetails.PhoneNumbers...)
	}
	if c.Phone != "" && len(out) == 0 {
		out = append(out, c.Phone)
	}
	return out
}

// Status derives the clinic's booking availability at now.
func (c Clinic) Status(now time.Time) AvailabilityStatus {
	if c.BookingWindow == nil {
		return StatusNotSet
	}
	start, end, err := c.BookingWindow.Bounds(now.Location())
	if err != nil {
		return StatusNotSet
	}
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusExpired
	default:
		return StatusAvailable
	}
}

// Available reports whether now is inside the clinic's booking window.
func (c Clinic) Available(now time.Time) bool {
	return c.Status(now) == StatusAvailable
}

// Clone returns a deep copy so callers can hold the clinic by value.
func (c Clinic) Clone() Clinic {
	out := c
	if c.ContactDetails != nil {
		details := *c.ContactDetails
		details.PhoneNumbers = append([]string(nil), c.ContactDetails.PhoneNumbers...)
		out.ContactDetails = &details
	}
	if c.BookingWindow != nil {
		window := *c.BookingWindow
		out.BookingWindow = &window
	}
	return out
}

// BookableClinics filters clinics to those accepting bookings at now.
func BookableClinics(clinics []Clinic, now time.Time) []Clinic {
	var out []Clinic
	for _, c := range clinics {
		if c.Available(now) {
			out = append(out, c)
		}
	}
	return out
}

// ParseDate parses either a calendar date or an RFC3339 timestamp. dateOnly reports
// which form matched; date-only values are interpreted at midnight in loc.
func ParseDate(value string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("catalog: empty date")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, true, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("catalog: unrecognized date %q", value)
}
