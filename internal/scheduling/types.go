package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slot is the canonical normalized unit returned by slot search. Start/End are
// zero when the provider did not state them; callers must check StartKnown and
// never treat the zero value as a real date. Raw is the provider's original
// resource payload, passed through unmodified to the booking call.
type Slot struct {
	ID           string          `json:"id"`
	Start        time.Time       `json:"start,omitempty"`
	End          time.Time       `json:"end,omitempty"`
	ProviderName string          `json:"provider_name,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// StartKnown reports whether the provider stated a start time for the slot.
func (s Slot) StartKnown() bool { return !s.Start.IsZero() }

// HumanStart renders the start time for spoken prompts.
func (s Slot) HumanStart() string {
	if !s.StartKnown() {
		return "an unknown time"
	}
	return s.Start.UTC().Format("Monday, January 2 at 3:04 PM")
}

// Booking is the confirmed result of reserving a slot. It is terminal: no
// updates after creation.
type Booking struct {
	ID           string          `json:"id"`
	Start        time.Time       `json:"start,omitempty"`
	ProviderName string          `json:"provider_name,omitempty"`
	Location     string          `json:"location,omitempty"`
	Status       string          `json:"status,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// SearchRequest describes a slot search. Zero window bounds default to
// [now, now+14 days].
type SearchRequest struct {
	PatientID   string
	AccessToken string
	Specialty   string
	WindowStart time.Time
	WindowEnd   time.Time
}

// DefaultSearchWindow is applied when a search request leaves the window open.
const DefaultSearchWindow = 14 * 24 * time.Hour

// normalizeWindow fills in the default search window.
func (r *SearchRequest) normalizeWindow(now time.Time) {
	if r.WindowStart.IsZero() {
		r.WindowStart = now
	}
	if r.WindowEnd.IsZero() {
		r.WindowEnd = r.WindowStart.Add(DefaultSearchWindow)
	}
}

// Client is the scheduling capability the call flow depends on. Two provider
// protocols implement it: the Parameters-based $find/$book operations and the
// resource-based Slot search + Appointment create.
type Client interface {
	FindSlots(ctx context.Context, req SearchRequest) ([]Slot, error)
	BookSlot(ctx context.Context, patientID string, slot Slot, accessToken string) (*Booking, error)
}

// SlotSearchError is returned when slot search fails at the transport or
// provider level. Auth failures are distinguished from transient errors so
// the caller can decide between re-authorization and retry.
type SlotSearchError struct {
	StatusCode int
	Body       string
}

func (e *SlotSearchError) Error() string {
	return fmt.Sprintf("scheduling: slot search failed with status %d: %s", e.StatusCode, e.Body)
}

// AuthFailure reports whether the search failed because the access token was
// rejected, requiring re-authorization rather than a retry.
func (e *SlotSearchError) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Transient reports whether the failure is worth one retry.
func (e *SlotSearchError) Transient() bool {
	return e.StatusCode >= 500
}

// BookingConflictError indicates the provider reports the slot as no longer
// available — expected under races with other callers and recoverable: the
// orchestrator re-offers alternatives instead of aborting the call.
type BookingConflictError struct {
	SlotID string
	Body   string
}

func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("scheduling: slot %s no longer available: %s", e.SlotID, e.Body)
}

// BookingError is a generic, non-recoverable booking failure for this call.
type BookingError struct {
	StatusCode int
	Body       string
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("scheduling: booking failed with status %d: %s", e.StatusCode, e.Body)
}
