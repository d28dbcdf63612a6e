// Package crosscontact infers the probability that a product is contaminated
// with an allergen from how many products at the same facility contain it.
//
// The model is Beta-Bernoulli: each product at a facility either carries the
// allergen or not, with an unknown rate drawn from a Beta(alpha, beta) prior.
// Observing s carriers among n products gives a Beta(s+alpha, n-s+beta)
// posterior whose mean is the reported probability.
package crosscontact

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/internal/model"
)

// Estimate is the posterior for one facility profile.
type Estimate struct {
	FacilityID   string  `json:"facility_id"`
	AllergenCode string  `json:"allergen_code"`
	Probability  float64 `json:"probability"`
	StdDev       float64 `json:"std_dev"`
	Successes    int     `json:"successes"`
	Trials       int     `json:"trials"`
}

// Model holds the Beta prior. The zero value is not usable; construct with
// New or Default.
type Model struct {
	alpha float64
	beta  float64
}

// DefaultConfig returns the uniform Beta(1,1) prior.
func DefaultConfig() config.CrossContactConfig {
	return config.CrossContactConfig{PriorAlpha: 1, PriorBeta: 1}
}

// Default returns a model with the uniform prior.
func Default() *Model {
	return &Model{alpha: 1, beta: 1}
}

// New builds a model from config. Both prior parameters must be positive.
func New(cfg config.CrossContactConfig) (*Model, error) {
	if !(cfg.PriorAlpha > 0) || !(cfg.PriorBeta > 0) || math.IsInf(cfg.PriorAlpha, 0) || math.IsInf(cfg.PriorBeta, 0) {
		return nil, eris.Errorf("crosscontact: prior alpha=%v beta=%v must be positive and finite", cfg.PriorAlpha, cfg.PriorBeta)
	}
	return &Model{alpha: cfg.PriorAlpha, beta: cfg.PriorBeta}, nil
}

// Prior returns the prior parameters.
func (m *Model) Prior() (alpha, beta float64) {
	return m.alpha, m.beta
}

// Estimate returns the posterior mean contamination probability for p.
// ok is false when the facility reports no products, or the counts are
// invalid, in which case there is no evidence to update on.
func (m *Model) Estimate(p model.FacilityAllergenProfile) (Estimate, bool) {
	if p.TotalProductsAtFacility == 0 || p.Validate() != nil {
		return Estimate{}, false
	}

	s := float64(p.ProductCountWithAllergen)
	n := float64(p.TotalProductsAtFacility)
	a := s + m.alpha
	b := n - s + m.beta
	sum := a + b

	return Estimate{
		FacilityID:   p.FacilityID,
		AllergenCode: p.AllergenCode,
		Probability:  a / sum,
		StdDev:       math.Sqrt(a * b / (sum * sum * (sum + 1))),
		Successes:    p.ProductCountWithAllergen,
		Trials:       p.TotalProductsAtFacility,
	}, true
}

// EstimateAll estimates every profile and keeps only those with evidence,
// preserving input order.
func (m *Model) EstimateAll(profiles []model.FacilityAllergenProfile) []Estimate {
	var out []Estimate
	for _, p := range profiles {
		if est, ok := m.Estimate(p); ok {
			out = append(out, est)
		}
	}
	return out
}
