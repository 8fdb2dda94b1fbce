package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxhealth/ivr-platform/pkg/logging"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryBackoff = time.Second
)

// ParametersConfig configures the $find/$book scheduling client.
type ParametersConfig struct {
	BaseURL      string // FHIR base, e.g. ".../api/FHIR/STU3"
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// ParametersClient talks the Epic STU3 Appointment/$find and Appointment/$book
// operations: slot search and booking are both POSTs carrying a Parameters
// resource, and $find returns proposed Appointment resources.
type ParametersClient struct {
	baseURL      string
	httpClient   *http.Client
	retryBackoff time.Duration
	logger       *logging.Logger
}

var _ Client = (*ParametersClient)(nil)

// NewParametersClient creates a Parameters-based scheduling client.
func NewParametersClient(cfg ParametersConfig, logger *logging.Logger) (*ParametersClient, error) {
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
	return &ParametersClient{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		retryBackoff: backoff,
		logger:       logger,
	}, nil
}

// FindSlots searches for proposed appointments via Appointment/$find. A zero
// window defaults to [now, now+14 days]. Transient 5xx responses are retried
// once after a short backoff; an empty result set is an empty list, not an
// error.
func (c *ParametersClient) FindSlots(ctx context.Context, req SearchRequest) ([]Slot, error) {
	req.normalizeWindow(time.Now())

	params := fhirParameters{
		ResourceType: "Parameters",
		Parameter: []fhirParameter{
			{Name: "patient", Resource: patientResource(req.PatientID)},
			{Name: "startTime", ValueDateTime: fhirDateTime(req.WindowStart)},
			{Name: "endTime", ValueDateTime: fhirDateTime(req.WindowEnd)},
		},
	}
	if req.Specialty != "" {
		params.Parameter = append(params.Parameter, fhirParameter{
			Name: "specialty", ValueString: req.Specialty,
		})
	}

	status, body, err := c.post(ctx, "/Appointment/$find", req.AccessToken, params)
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
		status, body, err = c.post(ctx, "/Appointment/$find", req.AccessToken, params)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, &SlotSearchError{StatusCode: status, Body: string(body)}
	}

	var bundle fhirBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("scheduling: decode $find bundle: %w", err)
	}

	slots := make([]Slot, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		slots = append(slots, normalizeProposedAppointment(entry.Resource))
	}
	return slots, nil
}

// BookSlot submits Appointment/$book for a proposed appointment returned by a
// prior FindSlots. A provider-reported race on the slot surfaces as
// *BookingConflictError so the caller can offer alternatives.
func (c *ParametersClient) BookSlot(ctx context.Context, patientID string, slot Slot, accessToken string) (*Booking, error) {
	params := fhirParameters{
		ResourceType: "Parameters",
		Parameter: []fhirParameter{
			{Name: "id", ValueString: slot.ID},
			{Name: "patient", Resource: patientResource(patientID)},
		},
	}

	status, body, err := c.post(ctx, "/Appointment/$book", accessToken, params)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusConflict || status == http.StatusGone:
		return nil, &BookingConflictError{SlotID: slot.ID, Body: string(body)}
	case status < 200 || status >= 300:
		if outcomeSaysConflict(body) {
			return nil, &BookingConflictError{SlotID: slot.ID, Body: string(body)}
		}
		return nil, &BookingError{StatusCode: status, Body: string(body)}
	}

	booking := bookingFromResponse(body)
	if booking.ID == "" {
		booking.ID = slot.ID
	}
	c.logger.Info("appointment booked", "appointment_id", booking.ID)
	return &booking, nil
}

// ReadAppointment fetches a booked appointment by id.
func (c *ParametersClient) ReadAppointment(ctx context.Context, appointmentID, accessToken string) (*Booking, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Appointment/"+appointmentID, nil)
	if err != nil {
		return nil, fmt.Errorf("scheduling: build read request: %w", err)
	}
	setFHIRHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scheduling: read appointment: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scheduling: read appointment body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BookingError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	booking := bookingFromResponse(body)
	return &booking, nil
}

func (c *ParametersClient) post(ctx context.Context, path, accessToken string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("scheduling: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
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

func setFHIRHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/fhir+json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/fhir+json")
	}
}

func patientResource(patientID string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{
		"resourceType": "Patient",
		"id":           patientID,
	})
	return data
}

// normalizeProposedAppointment maps a $find bundle entry to the canonical
// slot. Start/end are taken from the top level first, then from the first
// contained resource; anything else stays unknown.
func normalizeProposedAppointment(raw json.RawMessage) Slot {
	var entry fhirAppointmentEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Slot{Raw: raw}
	}

	start := parseFHIRInstant(entry.Start)
	end := parseFHIRInstant(entry.End)
	if start.IsZero() && len(entry.Contained) > 0 {
		start = parseFHIRInstant(entry.Contained[0].Start)
	}
	if end.IsZero() && len(entry.Contained) > 0 {
		end = parseFHIRInstant(entry.Contained[0].End)
	}
	// A stated end before the stated start is provider garbage; keep the
	// start and demote the end to unknown.
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		end = time.Time{}
	}

	return Slot{
		ID:           entry.ID,
		Start:        start,
		End:          end,
		ProviderName: firstPractitionerDisplay(entry.Participant),
		Raw:          raw,
	}
}

func bookingFromResponse(body []byte) Booking {
	raw := json.RawMessage(body)

	// $book may answer with the Appointment directly or wrapped in a Bundle.
	var bundle fhirBundle
	if err := json.Unmarshal(body, &bundle); err == nil && bundle.ResourceType == "Bundle" && len(bundle.Entry) > 0 {
		raw = bundle.Entry[0].Resource
	}

	var entry fhirAppointmentEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Booking{Raw: raw}
	}
	return Booking{
		ID:           entry.ID,
		Start:        parseFHIRInstant(entry.Start),
		ProviderName: firstPractitionerDisplay(entry.Participant),
		Location:     locationDisplay(entry.Participant),
		Status:       entry.Status,
		Raw:          raw,
	}
}

func firstPractitionerDisplay(participants []fhirParticipant) string {
	for _, p := range participants {
		if strings.HasPrefix(p.Actor.Reference, "Location/") {
			continue
		}
		if p.Actor.Display != "" {
			return p.Actor.Display
		}
	}
	return ""
}

func locationDisplay(participants []fhirParticipant) string {
	for _, p := range participants {
		if strings.HasPrefix(p.Actor.Reference, "Location/") && p.Actor.Display != "" {
			return p.Actor.Display
		}
	}
	return ""
}
