package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// SlotAvailable is the only slot status that can be booked.
const SlotAvailable = "Available"

var (
	// ErrPastDate is returned for dates before today, regardless of slot data.
	ErrPastDate = errors.New("availability: cannot select past dates")
	// ErrDateUnavailable is returned for dates without a bookable slot.
	ErrDateUnavailable = errors.New("availability: date is not available for booking")
	// ErrSlotUnavailable is returned for times that are not an available slot on the date.
	ErrSlotUnavailable = errors.New("availability: time slot is not available")
)

// TimeSlot is one bookable unit on a date.
type TimeSlot struct {
	Time      string `json:"time"`
	Status    string `json:"status"`
	Available int    `json:"available"`
}

// Selectable reports whether the slot can be booked.
func (s TimeSlot) Selectable() bool {
	return s.Status == SlotAvailable
}

// AvailableDate groups the slots published for one calendar date.
type AvailableDate struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

// HasAvailableSlot reports whether at least one slot is selectable.
func (d AvailableDate) HasAvailableSlot() bool {
	for _, s := range d.Slots {
		if s.Selectable() {
			return true
		}
	}
	return false
}

// AvailableSlots returns the selectable slots in published order.
func (d AvailableDate) AvailableSlots() []TimeSlot {
	var out []TimeSlot
	for _, s := range d.Slots {
		if s.Selectable() {
			out = append(out, s)
		}
	}
	return out
}

// Calendar is the availability of one clinic.
type Calendar struct {
	Dates  []AvailableDate
	Window *catalog.BookingWindow
}

// Find returns the entry for date.
func (c Calendar) Find(date string) (AvailableDate, bool) {
	for _, d := range c.Dates {
		if d.Date == date {
			return d, true
		}
	}
	return AvailableDate{}, false
}

// Chronological returns the dates sorted ascending.
func (c Calendar) Chronological() []AvailableDate {
	out := append([]AvailableDate(nil), c.Dates...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func dateKey(t time.Time) string {
	return t.Format(catalog.DateLayout)
}

// DefaultDate picks the date to preselect after availability loads. When today has reached
// the window start it prefers today, otherwise the window start; if the preferred date has no
// available slot it falls back to the first later date that does. Returns "" when none exists.
func DefaultDate(cal Calendar, now time.Time) string {
	today := dateKey(now)
	best := today
	if cal.Window != nil {
		if start, _, err := catalog.ParseDate(cal.Window.StartDate, now.Location()); err == nil {
			if startKey := dateKey(start); startKey > today {
				best = startKey
			}
		}
	}
	if d, ok := cal.Find(best); ok && d.HasAvailableSlot() {
		return best
	}
	for _, d := range cal.Chronological() {
		if d.Date > today && d.HasAvailableSlot() {
			return d.Date
		}
	}
	return ""
}

// Markable reports whether a date is highlighted on the calendar: today or later with at
// least one available slot.
func Markable(d AvailableDate, now time.Time) bool {
	return d.Date >= dateKey(now) && d.HasAvailableSlot()
}

// MarkedDates lists the markable dates in chronological order.
func MarkedDates(cal Calendar, now time.Time) []string {
	var out []string
	for _, d := range cal.Chronological() {
		if Markable(d, now) {
			out = append(out, d.Date)
		}
	}
	return out
}

// ValidateDate checks a user date pick. Past dates are rejected before slot data is consulted.
func ValidateDate(cal Calendar, date string, now time.Time) error {
	if date < dateKey(now) {
		return ErrPastDate
	}
	d, ok := cal.Find(date)
	if !ok || !d.HasAvailableSlot() {
		return ErrDateUnavailable
	}
	return nil
}

// ValidateTime checks that t is an available slot on date.
func ValidateTime(cal Calendar, date, t string) error {
	d, ok := cal.Find(date)
	if !ok {
		return ErrDateUnavailable
	}
	for _, s := range d.Slots {
		if s.Time == t && s.Selectable() {
			return nil
		}
	}
	return ErrSlotUnavailable
}

// UserMessage maps selection errors to the notice shown to the patient.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPastDate):
		return "Cannot select past dates"
	case errors.Is(err, ErrDateUnavailable):
		return "This date is not available for booking"
	case errors.Is(err, ErrSlotUnavailable):
		return "This time slot is not available"
	case err == nil:
		return ""
	default:
		return "Failed to load available dates"
	}
}
