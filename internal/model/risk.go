package model

import "sort"

// AllergenRisk is the combined score for one allergen.
type AllergenRisk struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// RiskResult is the outcome of scoring one product against one profile.
// CrossContact is nil unless facility inference ran.
type RiskResult struct {
	PerAllergen   map[string]AllergenRisk `json:"per_allergen"`
	FinalScore    float64                 `json:"final_score"`
	UserAllergens []string                `json:"user_allergens"`
	CrossContact  map[string]float64      `json:"cross_contact,omitempty"`
	Summary       string                  `json:"summary"`
}

// Codes returns the per-allergen codes in sorted order.
func (r RiskResult) Codes() []string {
	codes := make([]string, 0, len(r.PerAllergen))
	for c := range r.PerAllergen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Worst returns the user allergen with the highest score. Ties resolve to the
// alphabetically first code. ok is false when the user has no allergens.
func (r RiskResult) Worst() (code string, score float64, ok bool) {
	for _, c := range r.UserAllergens {
		s := r.PerAllergen[c].Score
		if !ok || s > score || (s == score && c < code) {
			code, score, ok = c, s, true
		}
	}
	return code, score, ok
}
