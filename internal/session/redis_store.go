package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxhealth/ivr-platform/pkg/logging"
)

const sessionKeyPrefix = "ivr:session:"

// RedisStore keeps session snapshots in Redis so authorization state survives
// a process restart mid-call. Each session is a JSON document under
// ivr:session:<id> with a TTL refreshed on every write.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Create allocates a new session with an empty token.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	sess := &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := s.save(ctx, sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Get returns the stored session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	return s.load(ctx, sessionID)
}

// SetVerifier records the PKCE verifier exactly once.
func (s *RedisStore) SetVerifier(ctx context.Context, sessionID, verifier string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.PKCEVerifier != "" {
		return ErrVerifierAlreadySet
	}
	sess.PKCEVerifier = verifier
	return s.save(ctx, sess)
}

// SetToken replaces the session token wholesale.
func (s *RedisStore) SetToken(ctx context.Context, sessionID string, tok Token) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Token = &tok
	return s.save(ctx, sess)
}

// SetPatientID records the linked external patient id.
func (s *RedisStore) SetPatientID(ctx context.Context, sessionID, patientID string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.ExternalPatientID = patientID
	return s.save(ctx, sess)
}

// HasToken reports presence of a non-empty access token.
func (s *RedisStore) HasToken(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.Token != nil && sess.Token.AccessToken != "", nil
}

// PatientID returns the linked external patient id.
func (s *RedisStore) PatientID(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.ExternalPatientID, nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
