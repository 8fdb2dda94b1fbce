package scheduling

import (
	"encoding/json"
	"time"
)

// FHIR STU3 wire types, limited to the fields the scheduling flows touch.
// Resources are otherwise kept as raw JSON and passed through untouched.

type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Type         string `json:"type"`
	Total        int    `json:"total"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

type fhirReference struct {
	Reference string `json:"reference"`
	Display   string `json:"display,omitempty"`
}

type fhirParticipant struct {
	Actor  fhirReference `json:"actor"`
	Status string        `json:"status,omitempty"`
}

// fhirAppointmentEntry covers both the proposed appointments returned by
// Appointment/$find and the booked appointment returned by $book. Start/end
// may be stated at the top level or inside the first contained resource.
type fhirAppointmentEntry struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Status       string            `json:"status,omitempty"`
	Start        string            `json:"start,omitempty"`
	End          string            `json:"end,omitempty"`
	Description  string            `json:"description,omitempty"`
	Participant  []fhirParticipant `json:"participant,omitempty"`
	Contained    []struct {
		ResourceType string `json:"resourceType"`
		Start        string `json:"start,omitempty"`
		End          string `json:"end,omitempty"`
	} `json:"contained,omitempty"`
}

type fhirSlotEntry struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id"`
	Status       string        `json:"status,omitempty"`
	Start        string        `json:"start,omitempty"`
	End          string        `json:"end,omitempty"`
	Schedule     fhirReference `json:"schedule,omitempty"`
}

type fhirParameters struct {
	ResourceType string          `json:"resourceType"`
	Parameter    []fhirParameter `json:"parameter"`
}

type fhirParameter struct {
	Name          string          `json:"name"`
	ValueString   string          `json:"valueString,omitempty"`
	ValueDateTime string          `json:"valueDateTime,omitempty"`
	Resource      json.RawMessage `json:"resource,omitempty"`
}

type fhirOperationOutcome struct {
	ResourceType string `json:"resourceType"`
	Issue        []struct {
		Severity    string `json:"severity,omitempty"`
		Code        string `json:"code,omitempty"`
		Diagnostics string `json:"diagnostics,omitempty"`
	} `json:"issue,omitempty"`
}

// parseFHIRInstant parses a FHIR instant/dateTime, returning the zero time for
// absent or malformed values. Unknown stays unknown, never a default date.
func parseFHIRInstant(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// fhirDateTime formats a timestamp the way the provider expects.
func fhirDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// outcomeSaysConflict inspects an OperationOutcome body for a conflict issue.
func outcomeSaysConflict(body []byte) bool {
	var outcome fhirOperationOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return false
	}
	for _, issue := range outcome.Issue {
		if issue.Code == "conflict" {
			return true
		}
	}
	return false
}
