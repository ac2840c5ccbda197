package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// DomainSample is the domain prefix for sample identity hashes.
// The version suffix allows a future algorithm migration.
const DomainSample = "sspace/sample/v1"

// DefaultIdentitySize is the identity length when none is configured.
const DefaultIdentitySize = 16

// sampleNamespace is the UUIDv5 namespace for sample identities.
var sampleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/sspace/"+DomainSample))

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SampleIdentity computes the content hash of a sample as lowercase hex,
// truncated to size characters (1 to 64).
//
// Two samples with the same names and numerically equal values share an
// identity regardless of key order.
func SampleIdentity(sample IRObject, size int) (string, error) {
	if size < 1 || size > sha256.Size*2 {
		return "", fmt.Errorf("SampleIdentity: size %d out of range 1..%d", size, sha256.Size*2)
	}
	canonical, err := MarshalCanonical(sample)
	if err != nil {
		return "", fmt.Errorf("SampleIdentity: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSample, canonical)[:size], nil
}

// SampleUUID computes a name-based (version 5) UUID for a sample.
func SampleUUID(sample IRObject) (string, error) {
	canonical, err := MarshalCanonical(sample)
	if err != nil {
		return "", fmt.Errorf("SampleUUID: failed to marshal: %w", err)
	}
	return uuid.NewSHA1(sampleNamespace, canonical).String(), nil
}

// MustSampleIdentity is like SampleIdentity but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSampleIdentity(sample IRObject, size int) string {
	id, err := SampleIdentity(sample, size)
	if err != nil {
		panic(err)
	}
	return id
}
