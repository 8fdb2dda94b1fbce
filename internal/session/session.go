package session

import (
	"context"
	"errors"
	"time"
)

// Typed failures surfaced by the store. Callers branch with errors.Is.
var (
	// ErrUnknownSession indicates the session id was never created or has expired.
	ErrUnknownSession = errors.New("session: unknown session")
	// ErrVerifierAlreadySet indicates a second attempt to record a PKCE verifier
	// for the same session. A verifier is set exactly once per session.
	ErrVerifierAlreadySet = errors.New("session: pkce verifier already set")
)

// Token is the OAuth token material for one session. A token is either fully
// present or absent; the store never holds a partially-populated token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Fresh reports whether the access token is still usable at the given instant,
// leaving a safety margin against server-side clock skew.
func (t *Token) Fresh(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// Session is the per-call authorization state for one external hand-off.
type Session struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	PKCEVerifier      string    `json:"pkce_verifier,omitempty"`
	Token             *Token    `json:"token,omitempty"`
	ExternalPatientID string    `json:"external_patient_id,omitempty"`
}

// Store manages authorization sessions keyed by an unguessable session id.
// Implementations must be safe for concurrent use across sessions and must
// make a token written by SetToken visible to the next read for that session.
type Store interface {
	// Create allocates a new session with an empty token and returns its id.
	Create(ctx context.Context) (string, error)

	// Get returns a copy of the session, or ErrUnknownSession.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// SetVerifier records the PKCE verifier. Fails with ErrVerifierAlreadySet
	// if one was already recorded; re-assignment is forbidden.
	SetVerifier(ctx context.Context, sessionID, verifier string) error

	// SetToken replaces the session token wholesale.
	SetToken(ctx context.Context, sessionID string, tok Token) error

	// SetPatientID records the linked external patient id.
	SetPatientID(ctx context.Context, sessionID, patientID string) error

	// HasToken reports whether the session carries a non-empty access token.
	// This is the "authorization complete" signal; it performs no freshness
	// check and never mutates the session.
	HasToken(ctx context.Context, sessionID string) (bool, error)

	// PatientID returns the linked external patient id, or "" if unresolved.
	PatientID(ctx context.Context, sessionID string) (string, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
