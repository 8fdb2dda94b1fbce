package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCEPair(t *testing.T) {
	pair, err := GeneratePKCEPair()
	require.NoError(t, err)

	// 32 random bytes base64url-encode to exactly 43 characters, no padding.
	assert.Len(t, pair.Verifier, 43)
	assert.NotContains(t, pair.Verifier, "=")
	assert.NotContains(t, pair.Verifier, "+")
	assert.NotContains(t, pair.Verifier, "/")

	digest := sha256.Sum256([]byte(pair.Verifier))
	want := base64.RawURLEncoding.EncodeToString(digest[:])
	assert.Equal(t, want, pair.Challenge)
}

func TestGeneratePKCEPairUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		pair, err := GeneratePKCEPair()
		require.NoError(t, err)
		require.False(t, seen[pair.Verifier], "verifier repeated")
		seen[pair.Verifier] = true
	}
}

func TestPKCEVerifierDecodable(t *testing.T) {
	pair, err := GeneratePKCEPair()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(pair.Verifier)
	require.NoError(t, err)
	assert.Len(t, raw, pkceVerifierBytes)
	assert.False(t, strings.ContainsAny(pair.Challenge, "=+/"))
}
