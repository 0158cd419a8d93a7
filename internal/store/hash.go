package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainModel is the domain prefix for content-addressed model hashes.
// The version suffix enables future algorithm migration.
const DomainModel = "weft/model/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelHash computes the content-addressed registry key for a
// serialized model. Identical payloads always hash identically,
// regardless of name or producer metadata.
func ModelHash(payload []byte) string {
	return hashWithDomain(DomainModel, payload)
}
