// Package commitment holds the hashing primitives every commitment in the
// pipeline is built from: field digests, Merkle trees over credential leaves,
// and inclusion paths that let a verifier recompute a root from one leaf.
//
// All hashing is SHA-256. Values are hashed over their UTF-8 bytes with no
// normalization, so two values hash identically iff they are byte-identical.
package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DigestSize is the length in bytes of every digest produced by this package.
const DigestSize = sha256.Size

// Digest is a fixed-width SHA-256 output.
type Digest [DigestSize]byte

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// HashField hashes a single credential field value. Pure and deterministic.
func HashField(value string) Digest {
	return sha256.Sum256([]byte(value))
}

// HashPair hashes the concatenation left||right. This is the interior node
// function of the Merkle tree.
func HashPair(left, right Digest) Digest {
	var buf [2 * DigestSize]byte
	copy(buf[:DigestSize], left[:])
	copy(buf[DigestSize:], right[:])
	return sha256.Sum256(buf[:])
}

// HashConcat hashes the concatenation of the given digests in order.
// With no digests it returns the hash of the empty string.
func HashConcat(digests ...Digest) Digest {
	h := sha256.New()
	for _, d := range digests {
		h.Write(d[:]) //nolint:errcheck // hash.Hash never returns an error
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Hex renders the digest as 64 lowercase hex characters.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText encodes the digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText decodes a hex digest, accepting an optional 0x prefix.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a 64-character hex string, with or without a 0x prefix.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*DigestSize {
		return Digest{}, fmt.Errorf("digest must be %d hex characters, got %d", 2*DigestSize, len(s))
	}
	var d Digest
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("decode digest: %w", err)
	}
	return d, nil
}
