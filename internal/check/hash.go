package check

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainResult separates result fingerprints from any other hash the
// process may compute over the same bytes.
const DomainResult = "nodecheck/result/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResultID computes the content fingerprint of a message sequence.
// Timestamps play no part: identical sequences give identical IDs.
func ResultID(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	canonical, err := MarshalCanonical(msgs)
	if err != nil {
		return "", fmt.Errorf("ResultID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// MustResultID is like ResultID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustResultID(msgs []Message) string {
	id, err := ResultID(msgs)
	if err != nil {
		panic(err)
	}
	return id
}
