// Package transcript records every spoken exchange of a call in order, so a
// summary can be produced even when the call ends abnormally.
package transcript

import (
	"context"
	"time"
)

// Roles used in transcript entries.
const (
	RoleAgent  = "agent"
	RoleCaller = "caller"
	RoleSystem = "system"
)

// Entry is one spoken prompt or response.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Role      string            `json:"role"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recorder is an append-only transcript per call. Entries returns exactly
// what was appended, in insertion order.
type Recorder interface {
	Append(ctx context.Context, callID string, entry Entry) error
	Entries(ctx context.Context, callID string) ([]Entry, error)
}
