package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// DefaultVerifierLength is the code verifier length used when none is given.
	DefaultVerifierLength = 128

	// MinVerifierLength and MaxVerifierLength bound the verifier per RFC 7636 section 4.1.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// CodeChallengeMethodS256 is the only challenge method this client sends.
	CodeChallengeMethodS256 = "S256"

	// stateBytes is the number of random bytes for the OAuth state parameter.
	// 32 bytes encodes to 43 base64url characters.
	stateBytes = 32
)

// verifierAlphabet is the RFC 7636 unreserved character set.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// rejectionLimit is the largest multiple of len(verifierAlphabet) that fits in a byte.
// Random bytes at or above it are discarded so every character is equally likely.
const rejectionLimit = 256 - (256 % len(verifierAlphabet))

// GenerateCodeVerifier returns a random code verifier of exactly length
// characters drawn from the unreserved character set. A length of zero or
// less selects DefaultVerifierLength. Any positive length is honoured; use
// ValidateVerifierLength before sending a verifier to an authorization server.
//
// An error from the secure random source is returned unchanged in meaning;
// callers must abort the authorization flow rather than fall back to a
// weaker source.
func GenerateCodeVerifier(length int) (string, error) {
	if length <= 0 {
		length = DefaultVerifierLength
	}
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectionLimit {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%len(verifierAlphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// ValidateVerifierLength reports whether length is acceptable for an
// authorization request. Zero selects DefaultVerifierLength and is valid.
func ValidateVerifierLength(length int) error {
	if length == 0 {
		return nil
	}
	if length < MinVerifierLength || length > MaxVerifierLength {
		return fmt.Errorf("code verifier length %d outside %d..%d", length, MinVerifierLength, MaxVerifierLength)
	}
	return nil
}

// GenerateCodeChallenge computes the S256 challenge for a verifier:
// the unpadded base64url encoding of SHA-256 over the verifier's ASCII bytes.
func GenerateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GeneratePKCE generates a new verifier of DefaultVerifierLength and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := GenerateCodeVerifier(DefaultVerifierLength)
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       GenerateCodeChallenge(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// GenerateState generates a random state parameter for OAuth.
// The state links the authorization response back to the request that
// started it and is checked on callback.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
