package detectors

import "brandguard/internal/domain"

// PublishThreshold is the minimum confidence at which a detection is
// persisted. Sub-threshold candidates are scored but not retained.
const PublishThreshold = 0.70

// Aggregation weights. Certificate mismatch contributes to suspicion; a
// verified match zeroes that term. The weights stay fixed even when a
// signal degrades to 0 (an unreachable icon lowers confidence rather than
// renormalizing over the remaining signals).
const (
	iconWeight         = 0.35
	nameWeight         = 0.35
	reviewFraudWeight  = 0.15
	certMismatchWeight = 0.15
)

// Aggregate combines the detector outputs into one confidence score, rounded
// to 4 decimals, and its risk tier. Deterministic and pure: identical inputs
// always yield an identical result.
func Aggregate(iconScore, nameScore float64, certificateMatch bool, reviewFraudScore float64) (float64, domain.RiskLevel) {
	certTerm := 1.0
	if certificateMatch {
		certTerm = 0.0
	}
	confidence := iconWeight*iconScore +
		nameWeight*nameScore +
		reviewFraudWeight*reviewFraudScore +
		certMismatchWeight*certTerm
	confidence = round4(confidence)
	return confidence, ConfidenceRisk(confidence)
}

// ConfidenceRisk maps a confidence score to its tier. Boundaries are
// closed above: exactly 0.90 is CRITICAL.
func ConfidenceRisk(confidence float64) domain.RiskLevel {
	switch {
	case confidence >= 0.90:
		return domain.RiskCritical
	case confidence >= 0.80:
		return domain.RiskHigh
	case confidence >= 0.70:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
