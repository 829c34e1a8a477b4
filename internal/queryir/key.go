package queryir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQuery prefixes query hashes. The version suffix allows changing the
// canonical form without colliding with keys computed by older builds.
const DomainQuery = "tablekit/query/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns the cache identity of a query.
func Key(q Query) (string, error) {
	canonical, err := MarshalCanonical(q)
	if err != nil {
		return "", fmt.Errorf("query key: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}
