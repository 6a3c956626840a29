package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Service is a treatment offered by the clinic.
type Service struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title,omitempty"`
	Slug        string  `json:"slug,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	MRP         float64 `json:"mrp,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// PaymentConfig carries the percentages the summary step applies on top of the session total.
type PaymentConfig struct {
	TaxPercentage float64 `json:"tax_percentage"`
	CreditCardFee float64 `json:"credit_card_fee"`
}

// SupportContact is the clinic-wide support channel published in settings.
type SupportContact struct {
	PhoneNumber  string `json:"phone_number,omitempty"`
	SupportEmail string `json:"support_email,omitempty"`
}

// Settings is the subset of /get-setting the booking flow consumes.
type Settings struct {
	PaymentConfig  PaymentConfig   `json:"payment_config"`
	ContactDetails *SupportContact `json:"contact_details,omitempty"`
}

// Source is the backend surface the catalog reads from.
type Source interface {
	ListClinics(ctx context.Context) ([]Clinic, error)
	ListServices(ctx context.Context, limit int) ([]Service, error)
	GetServiceBySlug(ctx context.Context, slug string) (*Service, error)
	GetSettings(ctx context.Context) (*Settings, error)
}

// DefaultServiceLimit matches the page size the service list requests.
const DefaultServiceLimit = 20

// Reader is a read-only projection over the backend catalog endpoints.
type Reader struct {
	source Source
}

// NewReader wraps a backend source.
func NewReader(source Source) *Reader {
	if source == nil {
		panic("catalog: source required")
	}
	return &Reader{source: source}
}

// Clinics returns the clinic list, ordered by display name.
func (r *Reader) Clinics(ctx context.Context) ([]Clinic, error) {
	clinics, err := r.source.ListClinics(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list clinics: %w", err)
	}
	sort.SliceStable(clinics, func(i, j int) bool {
		return strings.ToLower(clinics[i].DisplayName()) < strings.ToLower(clinics[j].DisplayName())
	})
	return clinics, nil
}

// Clinic finds one clinic by id.
func (r *Reader) Clinic(ctx context.Context, id string) (*Clinic, error) {
	clinics, err := r.Clinics(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clinics {
		if c.ID == id {
			found := c.Clone()
			return &found, nil
		}
	}
	return nil, fmt.Errorf("catalog: clinic %q not found", id)
}

// Services returns the first page of services.
func (r *Reader) Services(ctx context.Context) ([]Service, error) {
	services, err := r.source.ListServices(ctx, DefaultServiceLimit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	return services, nil
}

// ServiceBySlug loads a single service.
func (r *Reader) ServiceBySlug(ctx context.Context, slug string) (*Service, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("catalog: slug required")
	}
	svc, err := r.source.GetServiceBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("catalog: service %q: %w", slug, err)
	}
	return svc, nil
}

// Settings loads the payment settings. A missing payment config yields zero percentages.
func (r *Reader) Settings(ctx context.Context) (Settings, error) {
	settings, err := r.source.GetSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("catalog: settings: %w", err)
	}
	if settings == nil {
		return Settings{}, nil
	}
	return *settings, nil
}
