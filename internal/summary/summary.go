// Package summary turns a call transcript into a short structured note for
// clinic staff.
package summary

import (
	"context"
	"strings"

	"github.com/voxhealth/ivr-platform/internal/transcript"
)

const systemPrompt = `You are a call-summary generator for a clinic's phone system.
You will receive a raw call transcript. Produce a clean structured summary.

RULES:
- Short, clear, clinic-friendly.
- No hallucination: only infer what is obvious from the transcript.
- Extract patient info when present.
- Always include "intent", "action_required", and "confidence".

Output format (MUST FOLLOW):

{
  "summary": "...",
  "patient": {"name": "...", "dob": "...", "phone": "..."},
  "intent": "...",
  "requested_appointment_date": "...",
  "action_required": "...",
  "confidence": 0.0
}`

// Summarizer produces a summary of a finished (or abandoned) call.
type Summarizer interface {
	Summarize(ctx context.Context, entries []transcript.Entry) (string, error)
}

// buildPrompt renders the transcript one line per entry, oldest first.
func buildPrompt(entries []transcript.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.UTC().Format("2006-01-02 15:04:05")
		}
		lines = append(lines, "["+ts+"] "+strings.ToUpper(e.Role)+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// StaticSummarizer returns a fixed summary. Used when no model provider is
// configured and in tests.
type StaticSummarizer struct {
	Text string
}

// Summarize returns the configured text, or a single generic line.
func (s StaticSummarizer) Summarize(_ context.Context, entries []transcript.Entry) (string, error) {
	if s.Text != "" {
		return s.Text, nil
	}
	if len(entries) == 0 {
		return "No conversation was recorded for this call.", nil
	}
	return "Call completed. See transcript for details.", nil
}
