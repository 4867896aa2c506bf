package reranker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/quarrylabs/quarry/schema"
)

// Fingerprint prefix and suffix lengths, applied after whitespace
// collapsing.
const (
	fingerprintPrefix = 200
	fingerprintSuffix = 100
)

// Fingerprint computes a stable content fingerprint: whitespace is
// collapsed, then the leading and trailing stretches of the text are
// hashed. Near-identical chunks that differ only in the middle (overlap
// artifacts from chunking) collapse to the same fingerprint.
func Fingerprint(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")

	prefix := collapsed
	if len(prefix) > fingerprintPrefix {
		prefix = prefix[:fingerprintPrefix]
	}
	suffix := collapsed
	if len(suffix) > fingerprintSuffix {
		suffix = suffix[len(suffix)-fingerprintSuffix:]
	}

	sum := sha256.Sum256([]byte(prefix + "|" + suffix))
	return hex.EncodeToString(sum[:])
}

// Dedupe collapses passages sharing a fingerprint, keeping the first
// occurrence of each. Order is otherwise preserved, so deduplication is
// idempotent.
func Dedupe(graded []schema.GradedPassage) []schema.GradedPassage {
	seen := make(map[string]bool, len(graded))
	out := make([]schema.GradedPassage, 0, len(graded))
	for _, gp := range graded {
		fp := Fingerprint(gp.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, gp)
	}
	return out
}
