// Package model defines the normalized product, fact and result types shared
// by the risk engine and the data sources that feed it.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Relation classifies how an allergen relates to a product.
type Relation string

const (
	RelationContains     Relation = "contains"
	RelationMayContain   Relation = "may_contain"
	RelationFacilityRisk Relation = "facility_risk"
)

// Relations lists every relation in reporting order.
var Relations = []Relation{RelationContains, RelationMayContain, RelationFacilityRisk}

// Provenance tags for facts. Informational only; never used in scoring math.
const (
	SourceOpenFoodFacts = "openfoodfacts"
	SourceOCR           = "ocr"
	SourceDatabase      = "database"
	SourceCrossContact  = "cross-contact-model"
	SourceIngredients   = "ingredients"
)

// DefaultConfidence is used when a collaborator has no explicit confidence
// for a fact.
const DefaultConfidence = 1.0

// Valid reports whether r is one of the known relations.
func (r Relation) Valid() bool {
	switch r {
	case RelationContains, RelationMayContain, RelationFacilityRisk:
		return true
	default:
		return false
	}
}

// Rank returns the position of r in reporting order. Unknown relations sort last.
func (r Relation) Rank() int {
	for i, rel := range Relations {
		if rel == r {
			return i
		}
	}
	return len(Relations)
}

// ParseRelation parses a relation name. Hyphens are accepted in place of
// underscores ("may-contain").
func ParseRelation(s string) (Relation, error) {
	r := Relation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.Valid() {
		return "", &ValidationError{Field: "relation", Value: s, Reason: "must be contains, may_contain or facility_risk"}
	}
	return r, nil
}

// AllergenFact is one observed signal for one allergen on one product.
type AllergenFact struct {
	AllergenCode string   `json:"allergen_code"`
	Relation     Relation `json:"relation"`
	Confidence   float64  `json:"confidence"`
	Source       string   `json:"source"`
}

// NewAllergenFact builds a validated fact. Confidence outside [0,1] is
// rejected rather than clamped.
func NewAllergenFact(code string, rel Relation, confidence float64, source string) (AllergenFact, error) {
	f := AllergenFact{
		AllergenCode: CanonicalCode(code),
		Relation:     rel,
		Confidence:   confidence,
		Source:       source,
	}
	if err := f.Validate(); err != nil {
		return AllergenFact{}, err
	}
	return f, nil
}

// Validate checks the fact invariants.
func (f AllergenFact) Validate() error {
	if f.AllergenCode == "" {
		return &ValidationError{Field: "allergen_code", Value: f.AllergenCode, Reason: "must not be empty"}
	}
	if !f.Relation.Valid() {
		return &ValidationError{Field: "relation", Value: f.Relation, Reason: "must be contains, may_contain or facility_risk"}
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return &ValidationError{Field: "confidence", Value: f.Confidence, Reason: "must be within [0,1]"}
	}
	return nil
}

// CanonicalCode trims and upper-cases an allergen code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Key identifies a fact for deduplication.
func (f AllergenFact) Key() string {
	return fmt.Sprintf("%s|%s|%s", f.AllergenCode, f.Relation, f.Source)
}

// DedupeFacts merges facts sharing (allergen_code, relation, source). The
// merged fact keeps the position of the first occurrence and the highest
// confidence seen.
func DedupeFacts(facts []AllergenFact) []AllergenFact {
	out := make([]AllergenFact, 0, len(facts))
	index := make(map[string]int, len(facts))
	for _, f := range facts {
		k := f.Key()
		if i, ok := index[k]; ok {
			if f.Confidence > out[i].Confidence {
				out[i].Confidence = f.Confidence
			}
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}
	return out
}
