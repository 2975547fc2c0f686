package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// FetchAppointmentSlots returns the bookable intervals for a date
// (YYYY-MM-DD).
func (c *Client) FetchAppointmentSlots(ctx context.Context, date string) ([]models.Slot, error) {
	q := url.Values{}
	q.Set("date", date)
	var out slotsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/appointments/slots?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// CreateAppointment books a slot. Double-booking fails with a conflict
// signal; callers detect it with IsConflict and let the user reselect.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*AppointmentResponse, error) {
	var out AppointmentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/appointments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
