package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxhealth/ivr-platform/pkg/logging"
)

const (
	// DefaultTTL bounds how long an inactive session survives.
	DefaultTTL = 30 * time.Minute

	janitorInterval = time.Minute
)

type memoryEntry struct {
	session   Session
	touchedAt time.Time
}

// MemoryStore is an in-memory session store with TTL-based expiry. It has an
// explicit lifecycle: construct with NewMemoryStore, stop with Close.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	logger   *logging.Logger

	done chan struct{}
	once sync.Once

	// now is swappable for tests.
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store and starts its expiry janitor.
func NewMemoryStore(ttl time.Duration, logger *logging.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		logger:   logger,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.runJanitor()
	return s
}

// Close stops the expiry janitor. The store remains usable afterwards but no
// longer garbage-collects expired sessions.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) runJanitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

func (s *MemoryStore) expire() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if now.Sub(entry.touchedAt) > s.ttl {
			delete(s.sessions, id)
			s.logger.Debug("session expired", "session_id", id)
		}
	}
}

// Create allocates a new session with an empty token.
func (s *MemoryStore) Create(_ context.Context) (string, error) {
	id := uuid.NewString()
	now := s.now()
	s.mu.Lock()
	s.sessions[id] = &memoryEntry{
		session:   Session{ID: id, CreatedAt: now},
		touchedAt: now,
	}
	s.mu.Unlock()
	return id, nil
}

// live returns the entry if present and not past TTL. Caller holds the lock.
func (s *MemoryStore) live(sessionID string) (*memoryEntry, bool) {
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.touchedAt) > s.ttl {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return entry, true
}

// Get returns a copy of the session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	cp := entry.session
	if entry.session.Token != nil {
		tok := *entry.session.Token
		cp.Token = &tok
	}
	return &cp, nil
}

// SetVerifier records the PKCE verifier exactly once.
func (s *MemoryStore) SetVerifier(_ context.Context, sessionID, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	if entry.session.PKCEVerifier != "" {
		return ErrVerifierAlreadySet
	}
	entry.session.PKCEVerifier = verifier
	entry.touchedAt = s.now()
	return nil
}

// SetToken replaces the session token wholesale.
func (s *MemoryStore) SetToken(_ context.Context, sessionID string, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	entry.session.Token = &tok
	entry.touchedAt = s.now()
	return nil
}

// SetPatientID records the linked external patient id.
func (s *MemoryStore) SetPatientID(_ context.Context, sessionID, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	entry.session.ExternalPatientID = patientID
	entry.touchedAt = s.now()
	return nil
}

// HasToken reports presence of a non-empty access token without mutating state.
func (s *MemoryStore) HasToken(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return false, ErrUnknownSession
	}
	return entry.session.Token != nil && entry.session.Token.AccessToken != "", nil
}

// PatientID returns the linked external patient id.
func (s *MemoryStore) PatientID(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return "", ErrUnknownSession
	}
	return entry.session.ExternalPatientID, nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
