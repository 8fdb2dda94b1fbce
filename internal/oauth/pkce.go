package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// pkceVerifierBytes is the entropy of the code verifier. 32 bytes encode to a
// 43-character base64url string, the RFC 7636 minimum verifier length.
const pkceVerifierBytes = 32

// PKCEPair is an RFC 7636 code verifier and its S256 challenge.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCEPair produces a fresh verifier/challenge pair. The only failure
// mode is the system random source being unavailable, which callers should
// treat as fatal.
func GeneratePKCEPair() (PKCEPair, error) {
	raw := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return PKCEPair{}, fmt.Errorf("oauth: pkce random source: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])

	return PKCEPair{Verifier: verifier, Challenge: challenge}, nil
}
