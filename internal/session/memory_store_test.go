package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(time.Minute, nil)
	t.Cleanup(s.Close)
	return s
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Nil(t, sess.Token)
	assert.Empty(t, sess.PKCEVerifier)

	has, err := s.HasToken(ctx, id)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownSession)

	err = s.SetVerifier(ctx, "nope", "v")
	assert.ErrorIs(t, err, ErrUnknownSession)

	err = s.SetToken(ctx, "nope", Token{AccessToken: "tok"})
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, err = s.HasToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestMemoryStoreVerifierSetOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetVerifier(ctx, id, "first"))
	err = s.SetVerifier(ctx, id, "second")
	assert.ErrorIs(t, err, ErrVerifierAlreadySet)

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", sess.PKCEVerifier)
}

func TestMemoryStoreTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	tok := Token{
		AccessToken:  "tok1",
		RefreshToken: "ref1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, s.SetToken(ctx, id, tok))

	has, err := s.HasToken(ctx, id)
	require.NoError(t, err)
	assert.True(t, has)

	// HasToken is read-only: repeated calls never change the answer.
	for i := 0; i < 3; i++ {
		again, err := s.HasToken(ctx, id)
		require.NoError(t, err)
		assert.True(t, again)
	}

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess.Token)
	assert.Equal(t, "tok1", sess.Token.AccessToken)
	assert.Equal(t, "ref1", sess.Token.RefreshToken)
}

func TestMemoryStorePatientID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	pid, err := s.PatientID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, pid)

	require.NoError(t, s.SetPatientID(ctx, id, "eXYZ123"))
	pid, err = s.PatientID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "eXYZ123", pid)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	// Jump the clock past the TTL; the session must be gone on next access.
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownSession)

	// Deleting twice is fine.
	assert.NoError(t, s.Delete(ctx, id))
}

func TestTokenFresh(t *testing.T) {
	now := time.Now()
	tok := &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}

	assert.True(t, tok.Fresh(now, 10*time.Second))
	assert.False(t, tok.Fresh(now.Add(time.Hour), 10*time.Second))
	// Within the safety margin counts as stale.
	assert.False(t, tok.Fresh(now.Add(time.Hour-5*time.Second), 10*time.Second))

	var nilTok *Token
	assert.False(t, nilTok.Fresh(now, 10*time.Second))
	assert.False(t, (&Token{}).Fresh(now, 10*time.Second))
}
