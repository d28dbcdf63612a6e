package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
)

// BarWidth is the number of cells in a score bar.
const BarWidth = 30

// Bar draws a 0-100 score as "[####......]".
func Bar(score float64, width int) string {
	filled := int(score * float64(width) / 100)
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// DisplayName is "CODE (label)" when the table has a label for lang.
func DisplayName(code, lang string) string {
	label := allergen.Label(code, Language(lang))
	if label == "" || strings.EqualFold(label, code) {
		return code
	}
	return fmt.Sprintf("%s (%s)", code, label)
}

// Text writes a human-readable report: a quick view with the total and the
// highest concern, the product's facts grouped by relation, then the
// per-allergen breakdown sorted by descending score.
func Text(w io.Writer, p *model.ProductInfo, r model.RiskResult, lang string) error {
	var b strings.Builder

	headline := fmt.Sprintf("%s (%s)", p.Name, p.Identifier)
	if p.Brand != "" {
		headline += " · " + p.Brand
	}

	b.WriteString(T(lang, "quick_view") + "\n")
	b.WriteString(headline + "\n")
	fmt.Fprintf(&b, "%s: %.1f/100 (%s) %s\n", T(lang, "total_risk"), r.FinalScore, RiskLabel(r.FinalScore, lang), Bar(r.FinalScore, BarWidth))
	if code, score, ok := r.Worst(); ok {
		fmt.Fprintf(&b, "%s: %s %.1f/100 (%s)\n", T(lang, "highest_concern"), DisplayName(code, lang), score, RiskLabel(score, lang))
	} else {
		b.WriteString(T(lang, "no_allergens") + "\n")
	}

	if p.IngredientsText != "" {
		fmt.Fprintf(&b, "\n%s:\n  %s\n", T(lang, "ingredients"), p.IngredientsText)
	}

	for _, rel := range model.Relations {
		facts := p.FactsFor(rel)
		if len(facts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", T(lang, "section_"+string(rel)))
		for _, f := range facts {
			fmt.Fprintf(&b, "  - %s (%s, %s: %s)\n", DisplayName(f.AllergenCode, lang), T(lang, "presence_"+string(rel)), T(lang, "source"), f.Source)
		}
	}

	if len(r.CrossContact) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", T(lang, "cross_contact"))
		for _, code := range sortedKeys(r.CrossContact) {
			fmt.Fprintf(&b, "  - %s: %.1f%%\n", DisplayName(code, lang), r.CrossContact[code]*100)
		}
	}

	if len(p.DataNotes) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", T(lang, "notes"))
		for _, n := range p.DataNotes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}

	b.WriteString("\n" + T(lang, "details") + "\n")
	b.WriteString(T(lang, "per_allergen") + "\n")
	for _, code := range byScore(r.PerAllergen) {
		a := r.PerAllergen[code]
		fmt.Fprintf(&b, "  - %s: %.1f/100 (%s) %s", DisplayName(code, lang), a.Score, RiskLabel(a.Score, lang), Bar(a.Score, BarWidth))
		if len(a.Reasons) > 0 {
			b.WriteString(" | " + strings.Join(a.Reasons, "; "))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// byScore orders codes by descending score, then code.
func byScore(per map[string]model.AllergenRisk) []string {
	codes := make([]string, 0, len(per))
	for c := range per {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		si, sj := per[codes[i]].Score, per[codes[j]].Score
		if si != sj {
			return si > sj
		}
		return codes[i] < codes[j]
	})
	return codes
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
