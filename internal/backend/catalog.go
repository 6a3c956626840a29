package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/catalog"
)

// ListClinics calls GET /get-all-clinic.
func (c *Client) ListClinics(ctx context.Context) ([]catalog.Clinic, error) {
	var resp struct {
		Data struct {
			Clinics []catalog.Clinic `json:"clinics"`
		} `json:"data"`
	}
	if err := c.do(ctx, request{name: "get_all_clinic", method: http.MethodGet, path: "/get-all-clinic"}, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Clinics, nil
}

type availabilityResponse struct {
	AvailableDates []availability.AvailableDate `json:"availableDates"`
	Window         *catalog.BookingWindow       `json:"BookingAvailableAt"`
	LegacyWindow   *catalog.BookingWindow       `json:"BookingAvailabeAt"`
}

// GetAvailableDates calls GET /get-available-date?_id=<clinicID>. Both spellings of the
// booking-window key are accepted.
func (c *Client) GetAvailableDates(ctx context.Context, clinicID string) (*availability.Calendar, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("backend: clinic id required")
	}
	var resp availabilityResponse
	err := c.do(ctx, request{
		name:   "get_available_date",
		method: http.MethodGet,
		path:   "/get-available-date",
		query:  url.Values{"_id": {clinicID}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	window := resp.Window
	if window == nil {
		window = resp.LegacyWindow
	}
	return &availability.Calendar{Dates: resp.AvailableDates, Window: window}, nil
}

// ListServices calls GET /get-all-service?limit=<limit>.
func (c *Client) ListServices(ctx context.Context, limit int) ([]catalog.Service, error) {
	if limit <= 0 {
		limit = catalog.DefaultServiceLimit
	}
	var resp struct {
		Success bool              `json:"success"`
		Data    []catalog.Service `json:"data"`
	}
	err := c.do(ctx, request{
		name:   "get_all_service",
		method: http.MethodGet,
		path:   "/get-all-service",
		query:  url.Values{"limit": {strconv.Itoa(limit)}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetServiceBySlug calls GET /get-service-slug/{slug}.
func (c *Client) GetServiceBySlug(ctx context.Context, slug string) (*catalog.Service, error) {
	var resp struct {
		Data *catalog.Service `json:"data"`
	}
	err := c.do(ctx, request{
		name:   "get_service_slug",
		method: http.MethodGet,
		path:   "/get-service-slug/" + url.PathEscape(slug),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "Service not found"}
	}
	return resp.Data, nil
}

// GetSettings calls GET /get-setting.
func (c *Client) GetSettings(ctx context.Context) (*catalog.Settings, error) {
	var resp struct {
		Data *catalog.Settings `json:"data"`
	}
	if err := c.do(ctx, request{name: "get_setting", method: http.MethodGet, path: "/get-setting"}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return &catalog.Settings{}, nil
	}
	return resp.Data, nil
}

var (
	_ catalog.Source      = (*Client)(nil)
	_ availability.Source = (*Client)(nil)
)
