package sandbox

import (
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/catalog"
)

const (
	availabilityDays = 30
	firstSlotHour    = 10
	lastSlotHour     = 17
	// SlotCapacity is how many held bookings a slot accepts.
	SlotCapacity = 2
)

const (
	slotBooked = "Booked"
	slotPast   = "Past"
)

// buildCalendar publishes hourly slots for the next 30 days, skipping Sundays and days
// outside the clinic's booking window. counts is keyed by slotKey.
func buildCalendar(clinic catalog.Clinic, now time.Time, counts map[string]int) []availability.AvailableDate {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var out []availability.AvailableDate
	for i := 0; i < availabilityDays; i++ {
		day := today.AddDate(0, 0, i)
		if day.Weekday() == time.Sunday {
			continue
		}
		if clinic.BookingWindow != nil && !clinic.BookingWindow.Contains(day.Add(12*time.Hour)) {
			continue
		}
		date := day.Format(catalog.DateLayout)
		entry := availability.AvailableDate{Date: date}
		for h := firstSlotHour; h <= lastSlotHour; h++ {
			slot := fmt.Sprintf("%02d:00", h)
			left := SlotCapacity - counts[slotKey(date, slot)]
			status := availability.SlotAvailable
			switch {
			case day.Add(time.Duration(h) * time.Hour).Before(now):
				status, left = slotPast, 0
			case left <= 0:
				status, left = slotBooked, 0
			}
			entry.Slots = append(entry.Slots, availability.TimeSlot{Time: slot, Status: status, Available: left})
		}
		out = append(out, entry)
	}
	return out
}

// slotOpen reports whether date/time is a published, bookable slot with capacity left.
func slotOpen(clinic catalog.Clinic, now time.Time, counts map[string]int, date, t string) bool {
	for _, d := range buildCalendar(clinic, now, counts) {
		if d.Date != date {
			continue
		}
		for _, s := range d.Slots {
			if s.Time == t {
				return s.Selectable()
			}
		}
	}
	return false
}
