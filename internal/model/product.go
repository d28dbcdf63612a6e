package model

import (
	"sort"
)

// MaxFacilityCount bounds facility counts so the posterior stays strictly
// below 1 in float64.
const MaxFacilityCount = 1 << 40

// FacilityAllergenProfile holds facility-sharing statistics for one allergen
// at one manufacturing facility.
type FacilityAllergenProfile struct {
	FacilityID               string `json:"facility_id" yaml:"facility_id"`
	AllergenCode             string `json:"allergen_code" yaml:"allergen_code"`
	ProductCountWithAllergen int    `json:"product_count_with_allergen" yaml:"product_count_with_allergen"`
	TotalProductsAtFacility  int    `json:"total_products_at_facility" yaml:"total_products_at_facility"`
}

// Validate checks that the counts describe a possible sample.
func (p FacilityAllergenProfile) Validate() error {
	if p.AllergenCode == "" {
		return &ValidationError{Field: "allergen_code", Value: p.AllergenCode, Reason: "must not be empty"}
	}
	if p.TotalProductsAtFacility < 0 || int64(p.TotalProductsAtFacility) > MaxFacilityCount {
		return &ValidationError{Field: "total_products_at_facility", Value: p.TotalProductsAtFacility, Reason: "must be within [0, 2^40]"}
	}
	if p.ProductCountWithAllergen < 0 || p.ProductCountWithAllergen > p.TotalProductsAtFacility {
		return &ValidationError{Field: "product_count_with_allergen", Value: p.ProductCountWithAllergen, Reason: "must be within [0, total_products_at_facility]"}
	}
	return nil
}

// ProductInfo is the normalized product shape every data source produces.
// Facts and DataNotes are never nil; missing data is described in DataNotes.
type ProductInfo struct {
	Identifier      string                    `json:"identifier"`
	Name            string                    `json:"name"`
	Brand           string                    `json:"brand,omitempty"`
	Source          string                    `json:"source"`
	IngredientsText string                    `json:"ingredients_text,omitempty"`
	DataNotes       []string                  `json:"data_notes"`
	Facts           []AllergenFact            `json:"facts"`
	Facilities      []FacilityAllergenProfile `json:"facilities,omitempty"`
}

// NewProductInfo returns a product with empty, non-nil fact and note lists.
func NewProductInfo(identifier, name, source string) *ProductInfo {
	return &ProductInfo{
		Identifier: identifier,
		Name:       name,
		Source:     source,
		DataNotes:  []string{},
		Facts:      []AllergenFact{},
	}
}

// Normalize replaces nil slices with empty ones, canonicalizes allergen codes
// and merges duplicate facts.
func (p *ProductInfo) Normalize() {
	if p.DataNotes == nil {
		p.DataNotes = []string{}
	}
	if p.Facts == nil {
		p.Facts = []AllergenFact{}
	}
	for i := range p.Facts {
		p.Facts[i].AllergenCode = CanonicalCode(p.Facts[i].AllergenCode)
	}
	p.Facts = DedupeFacts(p.Facts)
}

// AllergenCodes returns the sorted set of codes referenced by the product's facts.
func (p *ProductInfo) AllergenCodes() []string {
	seen := make(map[string]bool)
	for _, f := range p.Facts {
		seen[f.AllergenCode] = true
	}
	return sortedKeys(seen)
}

// FactsFor returns the facts with the given relation, in their original order.
func (p *ProductInfo) FactsFor(rel Relation) []AllergenFact {
	var out []AllergenFact
	for _, f := range p.Facts {
		if f.Relation == rel {
			out = append(out, f)
		}
	}
	return out
}

// UserAllergyProfile describes what a user must be protected against.
type UserAllergyProfile struct {
	AllergenCodes        []string `json:"allergen_codes"`
	ConsiderMayContain   bool     `json:"consider_may_contain"`
	ConsiderFacilityRisk bool     `json:"consider_facility_risk"`
}

// NewUserAllergyProfile upper-cases and deduplicates the codes.
func NewUserAllergyProfile(codes []string, considerMayContain, considerFacilityRisk bool) UserAllergyProfile {
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = CanonicalCode(c)
		if c != "" {
			seen[c] = true
		}
	}
	return UserAllergyProfile{
		AllergenCodes:        sortedKeys(seen),
		ConsiderMayContain:   considerMayContain,
		ConsiderFacilityRisk: considerFacilityRisk,
	}
}

// CodeSet returns the profile codes as a set.
func (u UserAllergyProfile) CodeSet() map[string]bool {
	set := make(map[string]bool, len(u.AllergenCodes))
	for _, c := range u.AllergenCodes {
		set[CanonicalCode(c)] = true
	}
	return set
}

// Allows reports whether facts with the given relation are eligible for scoring.
func (u UserAllergyProfile) Allows(rel Relation) bool {
	switch rel {
	case RelationContains:
		return true
	case RelationMayContain:
		return u.ConsiderMayContain
	case RelationFacilityRisk:
		return u.ConsiderFacilityRisk
	default:
		return false
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
