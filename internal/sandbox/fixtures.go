package sandbox

import (
	"time"

	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// Fixtures is the read-only catalog the sandbox serves.
type Fixtures struct {
	Clinics  []catalog.Clinic
	Services []catalog.Service
	Settings catalog.Settings
}

// Clinic looks up a fixture clinic by id.
func (f Fixtures) Clinic(id string) (catalog.Clinic, bool) {
	for _, c := range f.Clinics {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return catalog.Clinic{}, false
}

// Service looks up a fixture service by slug.
func (f Fixtures) Service(slug string) (catalog.Service, bool) {
	for _, s := range f.Services {
		if s.Slug == slug {
			return s, true
		}
	}
	return catalog.Service{}, false
}

func window(now time.Time, fromDays, toDays int) *catalog.BookingWindow {
	return &catalog.BookingWindow{
		StartDate: now.AddDate(0, 0, fromDays).Format(catalog.DateLayout),
		EndDate:   now.AddDate(0, 0, toDays).Format(catalog.DateLayout),
	}
}

// DefaultFixtures builds one clinic in each availability state relative to now.
func DefaultFixtures(now time.Time, cfg catalog.PaymentConfig) Fixtures {
	return Fixtures{
		Clinics: []catalog.Clinic{
			{
				ID:         "clinic-andheri",
				ClinicName: "Andheri Skin & Laser",
				City:       "Mumbai",
				State:      "Maharashtra",
				Email:      "andheri@clinicbook.test",
				ContactDetails: &catalog.ContactDetails{
					ClinicAddress: "12 Link Road, Andheri West, Mumbai",
					PhoneNumbers:  []string{"+91 22 4000 1001"},
				},
				BookingWindow: window(now, -30, 90),
				IsActive:      true,
			},
			{
				ID:            "clinic-bandra",
				ClinicName:    "Bandra Hair Studio",
				Address:       "4 Hill Road, Bandra West, Mumbai",
				City:          "Mumbai",
				State:         "Maharashtra",
				Phone:         "+91 22 4000 1002",
				BookingWindow: window(now, 30, 120),
				IsActive:      true,
			},
			{
				ID:            "clinic-colaba",
				ClinicName:    "Colaba Aesthetics",
				Address:       "9 Causeway, Colaba, Mumbai",
				City:          "Mumbai",
				State:         "Maharashtra",
				BookingWindow: window(now, -120, -30),
				IsActive:      true,
			},
			{
				ID:         "clinic-pune",
				ClinicName: "Pune Wellness Clinic",
				Address:    "22 FC Road, Pune",
				City:       "Pune",
				State:      "Maharashtra",
				IsActive:   true,
			},
		},
		Services: []catalog.Service{
			{ID: "svc-laser", Title: "Laser Hair Reduction", Slug: "laser-hair-reduction", Description: "Full-area diode laser session.", Price: 10000, MRP: 12000},
			{ID: "svc-prp", Title: "PRP Hair Therapy", Slug: "prp-hair-therapy", Description: "Platelet-rich plasma scalp treatment.", Price: 8000, MRP: 9500},
			{ID: "svc-peel", Title: "Chemical Peel", Slug: "chemical-peel", Description: "Medium-depth glycolic peel.", Price: 4500, MRP: 5000},
		},
		Settings: catalog.Settings{
			PaymentConfig: cfg,
			ContactDetails: &catalog.SupportContact{
				PhoneNumber:  "+91 22 4000 1000",
				SupportEmail: "support@clinicbook.test",
			},
		},
	}
}
