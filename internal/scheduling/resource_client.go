package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// ResourceConfig configures the resource-based scheduling client.
type ResourceConfig struct {
	BaseURL      string
	ProviderID   string // schedule actor used for slot search and booking
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// ResourceClient is the alternate scheduling protocol: free slots are fetched
// with GET /Slot?status=free and a booking is a POST /Appointment referencing
// the chosen slot.
type ResourceClient struct {
	baseURL      string
	providerID   string
	httpClient   *http.Client
	retryBackoff time.Duration
	logger       *logging.Logger
}

var _ Client = (*ResourceClient)(nil)

// NewResourceClient creates a resource-based scheduling client.
func NewResourceClient(cfg ResourceConfig, logger *logging.Logger) (*ResourceClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scheduling: BaseURL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = defaultRetryBackoff
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ResourceClient{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		providerID:   cfg.ProviderID,
		httpClient:   &http.Client{Timeout: timeout},
		retryBackoff: backoff,
		logger:       logger,
	}, nil
}

// FindSlots lists free Slot resources inside the search window.
func (c *ResourceClient) FindSlots(ctx context.Context, req SearchRequest) ([]Slot, error) {
	req.normalizeWindow(time.Now())

	params := url.Values{}
	params.Set("status", "free")
	params.Set("start", fhirDateTime(req.WindowStart))
	params.Set("end", fhirDateTime(req.WindowEnd))
	if c.providerID != "" {
		params.Set("schedule.actor", c.providerID)
	}
	if req.Specialty != "" {
		params.Set("specialty", req.Specialty)
	}
	endpoint := c.baseURL + "/Slot?" + params.Encode()

	status, body, err := c.get(ctx, endpoint, req.AccessToken)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		c.logger.Warn("slot search transient failure, retrying once", "status", status)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryBackoff):
		}
		status, body, err = c.get(ctx, endpoint, req.AccessToken)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, &SlotSearchError{StatusCode: status, Body: string(body)}
	}

	var bundle fhirBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("scheduling: decode slot bundle: %w", err)
	}

	slots := make([]Slot, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		var res fhirSlotEntry
		if err := json.Unmarshal(entry.Resource, &res); err != nil {
			slots = append(slots, Slot{Raw: entry.Resource})
			continue
		}
		start := parseFHIRInstant(res.Start)
		end := parseFHIRInstant(res.End)
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			end = time.Time{}
		}
		slots = append(slots, Slot{
			ID:           res.ID,
			Start:        start,
			End:          end,
			ProviderName: res.Schedule.Display,
			Raw:          entry.Resource,
		})
	}
	return slots, nil
}

// BookSlot creates a booked Appointment referencing the chosen slot.
func (c *ResourceClient) BookSlot(ctx context.Context, patientID string, slot Slot, accessToken string) (*Booking, error) {
	appt := map[string]any{
		"resourceType": "Appointment",
		"status":       "booked",
		"participant": []map[string]any{
			{"actor": map[string]string{"reference": "Patient/" + patientID}, "status": "accepted"},
			{"actor": map[string]string{"reference": "Practitioner/" + c.providerID}, "status": "accepted"},
		},
		"slot":        []map[string]string{{"reference": "Slot/" + slot.ID}},
		"description": "Voice agent booked appointment",
	}

	data, err := json.Marshal(appt)
	if err != nil {
		return nil, fmt.Errorf("scheduling: marshal appointment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Appointment", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("scheduling: build booking request: %w", err)
	}
	setFHIRHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scheduling: booking request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scheduling: read booking response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusGone:
		return nil, &BookingConflictError{SlotID: slot.ID, Body: string(body)}
	case resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK:
		if outcomeSaysConflict(body) {
			return nil, &BookingConflictError{SlotID: slot.ID, Body: string(body)}
		}
		return nil, &BookingError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	booking := bookingFromResponse(body)
	if booking.Start.IsZero() {
		booking.Start = slot.Start
	}
	if booking.ProviderName == "" {
		booking.ProviderName = slot.ProviderName
	}
	c.logger.Info("appointment created", "appointment_id", booking.ID, "slot_id", slot.ID)
	return &booking, nil
}

func (c *ResourceClient) get(ctx context.Context, endpoint, accessToken string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("scheduling: build request: %w", err)
	}
	setFHIRHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("scheduling: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("scheduling: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
