// Package classify implements the per-segment flagging policy.
package classify

import (
	"fmt"

	"github.com/pkuleshov/langaudit/internal/types"
)

// Decision is the outcome of classifying one segment.
type Decision struct {
	Flagged bool
	Reason  types.FlagReason
	Detail  string
}

// Classify decides whether a segment needs review. The checks run in fixed
// order: an unauthorized language always wins over confidence, so a
// high-confidence segment in the wrong language is still flagged as a
// language mismatch. The confidence comparison is strict: a score exactly
// equal to the threshold passes.
//
// Deterministic, no side effects.
func Classify(language string, confidence float64, authorized []string, threshold float64) Decision {
	if !contains(authorized, language) {
		return Decision{
			Flagged: true,
			Reason:  types.ReasonLanguageMismatch,
			Detail:  fmt.Sprintf("Language mismatch (Detected: %s)", language),
		}
	}
	if confidence < threshold {
		return Decision{
			Flagged: true,
			Reason:  types.ReasonLowConfidence,
			Detail:  fmt.Sprintf("Low confidence (%.2f)", confidence),
		}
	}
	return Decision{Reason: types.ReasonNone}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
