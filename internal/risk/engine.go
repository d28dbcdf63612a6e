// Package risk scores a product against a user's allergy profile. Facts are
// filtered by the profile flags, mapped to severities, combined per allergen
// by complementary probability and reduced to a final score by taking the
// worst allergen the user cares about.
package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/internal/crosscontact"
	"github.com/sells-group/allergen-risk/internal/model"
)

// proximityPairs maps a target allergen to the allergen whose presence
// suggests shared handling lines.
var proximityPairs = map[string]string{
	"PEANUT":    "TREE_NUTS",
	"TREE_NUTS": "PEANUT",
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() config.RiskConfig {
	return config.RiskConfig{
		TraceWeight:         0.5,
		ProximityEnabled:    false,
		ProximityConfidence: 0.42,
	}
}

// Engine computes RiskResults. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg   config.RiskConfig
	cross *crosscontact.Model
}

// New creates an Engine. A nil cross-contact model uses the uniform prior.
func New(cfg config.RiskConfig, cross *crosscontact.Model) (*Engine, error) {
	if cfg.TraceWeight < 0 || cfg.TraceWeight > 1 {
		return nil, eris.Errorf("risk: trace weight %v must be within [0,1]", cfg.TraceWeight)
	}
	if cfg.ProximityConfidence < 0 || cfg.ProximityConfidence > 1 {
		return nil, eris.Errorf("risk: proximity confidence %v must be within [0,1]", cfg.ProximityConfidence)
	}
	if cross == nil {
		cross = crosscontact.Default()
	}
	return &Engine{cfg: cfg, cross: cross}, nil
}

// Default returns an engine with default settings.
func Default() *Engine {
	return &Engine{cfg: DefaultConfig(), cross: crosscontact.Default()}
}

// Severity maps an eligible fact to its contribution in [0,1].
func (e *Engine) Severity(f model.AllergenFact) float64 {
	switch f.Relation {
	case model.RelationMayContain:
		return f.Confidence * e.cfg.TraceWeight
	default:
		return f.Confidence
	}
}

type contribution struct {
	fact     model.AllergenFact
	severity float64
}

// Score computes per-allergen and final scores for product under profile.
func (e *Engine) Score(product *model.ProductInfo, profile model.UserAllergyProfile) model.RiskResult {
	users := profile.CodeSet()

	var facts []model.AllergenFact
	var facilities []model.FacilityAllergenProfile
	if product != nil {
		facts = canonicalFacts(product.Facts)
		facilities = product.Facilities
	}

	var eligible []model.AllergenFact
	for _, f := range facts {
		if !profile.Allows(f.Relation) {
			continue
		}
		if err := f.Validate(); err != nil {
			zap.L().Warn("risk: skipping invalid fact", zap.String("key", f.Key()), zap.Error(err))
			continue
		}
		eligible = append(eligible, f)
	}

	if e.cfg.ProximityEnabled && profile.ConsiderMayContain {
		eligible = append(eligible, e.proximityFacts(facts)...)
	}

	var cross map[string]float64
	if profile.ConsiderFacilityRisk && len(facilities) > 0 {
		var facilityFacts []model.AllergenFact
		facilityFacts, cross = e.facilityFacts(facilities)
		eligible = append(eligible, facilityFacts...)
	}

	byCode := make(map[string][]contribution)
	for _, f := range model.DedupeFacts(eligible) {
		byCode[f.AllergenCode] = append(byCode[f.AllergenCode], contribution{fact: f, severity: e.Severity(f)})
	}

	codes := make(map[string]bool, len(byCode)+len(users))
	for c := range byCode {
		codes[c] = true
	}
	for c := range users {
		codes[c] = true
	}

	result := model.RiskResult{
		PerAllergen:   make(map[string]model.AllergenRisk, len(codes)),
		UserAllergens: make([]string, 0, len(users)),
		CrossContact:  cross,
	}
	for c := range users {
		result.UserAllergens = append(result.UserAllergens, c)
	}
	sort.Strings(result.UserAllergens)

	var final float64
	for code := range codes {
		contribs := byCode[code]
		sort.SliceStable(contribs, func(i, j int) bool {
			return contribs[i].fact.Relation.Rank() < contribs[j].fact.Relation.Rank()
		})

		severities := make([]float64, len(contribs))
		reasons := make([]string, len(contribs))
		for i, ct := range contribs {
			severities[i] = ct.severity
			reasons[i] = reason(ct)
		}

		score := 100 * Combine(severities...)
		result.PerAllergen[code] = model.AllergenRisk{Score: Round2(score), Reasons: reasons}
		if users[code] && score > final {
			final = score
		}
	}
	result.FinalScore = Round2(final)
	result.Summary = Summarize(result)

	return result
}

// facilityFacts asks the cross-contact model for every facility profile and
// returns the posteriors as facility_risk facts, one per (allergen, source),
// along with the per-allergen combined posterior.
func (e *Engine) facilityFacts(profiles []model.FacilityAllergenProfile) ([]model.AllergenFact, map[string]float64) {
	facts := make([]model.AllergenFact, 0, len(profiles))
	for _, p := range profiles {
		p.AllergenCode = model.CanonicalCode(p.AllergenCode)
		est, ok := e.cross.Estimate(p)
		if !ok {
			continue
		}
		source := model.SourceCrossContact
		if id := strings.TrimSpace(p.FacilityID); id != "" {
			source += ":" + id
		}
		facts = append(facts, model.AllergenFact{
			AllergenCode: p.AllergenCode,
			Relation:     model.RelationFacilityRisk,
			Confidence:   est.Probability,
			Source:       source,
		})
	}
	facts = model.DedupeFacts(facts)

	perCode := make(map[string][]float64)
	for _, f := range facts {
		perCode[f.AllergenCode] = append(perCode[f.AllergenCode], f.Confidence)
	}
	cross := make(map[string]float64, len(perCode))
	for code, probs := range perCode {
		cross[code] = Combine(probs...)
	}
	return facts, cross
}

// canonicalFacts copies facts with trimmed, upper-cased allergen codes.
func canonicalFacts(in []model.AllergenFact) []model.AllergenFact {
	out := make([]model.AllergenFact, len(in))
	for i, f := range in {
		f.AllergenCode = model.CanonicalCode(f.AllergenCode)
		out[i] = f
	}
	return out
}

func (e *Engine) proximityFacts(facts []model.AllergenFact) []model.AllergenFact {
	present := make(map[string]bool, len(facts))
	for _, f := range facts {
		present[f.AllergenCode] = true
	}

	var out []model.AllergenFact
	for _, target := range []string{"PEANUT", "TREE_NUTS"} {
		trigger := proximityPairs[target]
		if !present[trigger] {
			continue
		}
		out = append(out, model.AllergenFact{
			AllergenCode: target,
			Relation:     model.RelationMayContain,
			Confidence:   e.cfg.ProximityConfidence,
			Source:       "proximity:" + strings.ToLower(trigger),
		})
	}
	return out
}

func reason(ct contribution) string {
	return fmt.Sprintf("%s via %s (confidence %.2f, severity %.2f)",
		ct.fact.Relation, ct.fact.Source, ct.fact.Confidence, ct.severity)
}

// Summarize renders a one-line summary of the worst user allergen.
func Summarize(r model.RiskResult) string {
	code, score, ok := r.Worst()
	if !ok {
		return "no allergens selected"
	}
	return fmt.Sprintf("%s %.0f/100 (%s)", code, score, Label(score))
}
