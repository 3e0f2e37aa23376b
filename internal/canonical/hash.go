package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for digests. The version suffix allows the algorithm to
// change without colliding with stored values.
const (
	DomainSignature = "tasking/signature/v1"
)

// Digest computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator keeps the domain/data boundary unambiguous.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
