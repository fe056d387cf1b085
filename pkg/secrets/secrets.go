// Package secrets generates random key material.
package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "nexuscred/pkg/domain-errors"
)

// DefaultSize is the key length in bytes used when size is not positive.
const DefaultSize = 32

// Generate returns size random bytes, base64url encoded without padding.
// Suitable as an HS256 attestation signing key or a collaborator API key.
func Generate(size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
