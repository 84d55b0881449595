package ttscache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the deterministic cache key derived from the four
// request-identifying fields.
type Fingerprint string

// FingerprintOf derives the fingerprint for a request. The hash input is
// length-prefixed and order-preserving, so distinct (service, language,
// voice, text) tuples never collide and identical tuples always map to the
// same key.
func FingerprintOf(req Request) Fingerprint {
	h := sha256.New()
	for _, field := range [...]string{req.Service, req.Language, req.Voice, req.Text} {
		fmt.Fprintf(h, "%d:%s|", len(field), field)
	}
	sum := h.Sum(nil)
	return Fingerprint(hex.EncodeToString(sum[:16]))
}
