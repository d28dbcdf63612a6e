package source

import (
	"context"
	"strings"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
)

// plantMilkMarkers qualify "milk" as a plant drink ("oat milk").
var plantMilkMarkers = map[string]bool{
	"soy": true, "soya": true, "almond": true, "oat": true, "rice": true,
	"coconut": true, "hazelnut": true, "pea": true, "cashew": true,
}

var dairyMarkers = map[string]bool{
	"milk": true, "lactose": true, "whey": true, "casein": true, "caseinate": true,
	"butter": true, "cheese": true, "cream": true, "yogurt": true, "yoghurt": true,
	"ghee": true, "leite": true,
}

// Ingredients infers allergen facts from a product's ingredient text and
// adds them under the "ingredients" source.
type Ingredients struct {
	next       ProductSource
	confidence float64
}

// NewIngredients wraps next. Values of confidence outside (0,1] select 0.95.
func NewIngredients(next ProductSource, confidence float64) *Ingredients {
	if confidence <= 0 || confidence > 1 {
		confidence = 0.95
	}
	return &Ingredients{next: next, confidence: confidence}
}

// Product fetches from next and scans its ingredient text.
func (s *Ingredients) Product(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p, err := s.next.Product(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.IngredientsText) == "" {
		return p, nil
	}

	plantMilk := plantMilkOnly(p.IngredientsText)
	for _, f := range detectFacts(ingredientSentences(p.IngredientsText), s.confidence, model.SourceIngredients) {
		if plantMilk && f.AllergenCode == "MILK" {
			continue
		}
		p.Facts = append(p.Facts, f)
	}
	p.Normalize()
	return p, nil
}

// ingredientSentences splits ingredient text so precautionary statements
// stay separate from the ingredient list.
func ingredientSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '.' || r == ';'
	})
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// plantMilkOnly reports whether every mention of milk is a plant drink and
// no other dairy term appears.
func plantMilkOnly(text string) bool {
	tokens := allergen.Tokenize(text)
	plant := false
	for i, t := range tokens {
		switch {
		case t == "milk" && i > 0 && plantMilkMarkers[tokens[i-1]]:
			plant = true
		case dairyMarkers[t]:
			return false
		}
	}
	return plant
}
