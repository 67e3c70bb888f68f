// Package fingerprint derives stable content identities for extracted records.
//
// A fingerprint is a deterministic hash over a review's identity fields. It is
// the primary dedup key: re-extracting the same logical review must produce
// the same fingerprint so persistence can upsert instead of duplicating. The
// review text itself is deliberately excluded - sources truncate and re-wrap
// text between loads, which would break identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// separator keeps field boundaries unambiguous in the hash input
// ("ab"+"c" must not collide with "a"+"bc").
const separator = "\x1f"

// Review computes the content fingerprint for a review's identity fields.
func Review(placeID, author, visitDate, visitOrdinal string, verified bool) string {
	flag := "0"
	if verified {
		flag = "1"
	}
	parts := []string{
		placeID,
		normalize(author),
		normalize(visitDate),
		normalize(visitOrdinal),
		flag,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

// BucketKey returns the attachment storage prefix for a fingerprint.
func BucketKey(fp string) string {
	return "reviews/" + fp
}

// normalize collapses whitespace and case so cosmetic markup drift does not
// change a record's identity.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
