package risk

import "math"

// Combine merges independent severities in [0,1] by complementary
// probability: 1 - prod(1 - s). Identical evidence from several sources
// raises the result without ever exceeding 1. No severities yields 0.
func Combine(severities ...float64) float64 {
	complement := 1.0
	for _, s := range severities {
		complement *= 1 - s
	}
	return 1 - complement
}

// Round2 rounds v to two decimals for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Label buckets a 0-100 score into a human label.
func Label(score float64) string {
	switch {
	case score >= 80:
		return "very high"
	case score >= 60:
		return "high"
	case score >= 40:
		return "moderate"
	case score >= 20:
		return "low"
	default:
		return "very low"
	}
}
