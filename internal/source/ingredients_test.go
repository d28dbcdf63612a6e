package source

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/model"
)

func withIngredients(text string, facts ...model.AllergenFact) *model.ProductInfo {
	p := model.NewProductInfo("5601234567890", "Cookies", model.SourceOpenFoodFacts)
	p.IngredientsText = text
	p.Facts = append(p.Facts, facts...)
	return p
}

func TestIngredients_InfersFacts(t *testing.T) {
	declared := model.AllergenFact{AllergenCode: "MILK", Relation: model.RelationContains, Confidence: 1, Source: "openfoodfacts:allergens"}
	base := withIngredients("Wheat flour, sugar, hazelnuts, skimmed milk powder. May contain peanuts.", declared)

	calls := 0
	p, err := NewIngredients(countingSource(&calls, base, nil), 0.9).Product(context.Background(), "5601234567890")
	require.NoError(t, err)

	assert.Equal(t, []model.AllergenFact{
		declared,
		{AllergenCode: "GLUTEN", Relation: model.RelationContains, Confidence: 0.9, Source: model.SourceIngredients},
		{AllergenCode: "MILK", Relation: model.RelationContains, Confidence: 0.9, Source: model.SourceIngredients},
		{AllergenCode: "TREE_NUTS", Relation: model.RelationContains, Confidence: 0.9, Source: model.SourceIngredients},
		{AllergenCode: "PEANUT", Relation: model.RelationMayContain, Confidence: 0.9, Source: model.SourceIngredients},
	}, p.Facts)
}

func TestIngredients_PlantMilk(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantMilk bool
	}{
		{"oat drink", "Water, oat milk, sea salt", false},
		{"almond drink", "Almond milk (water, almonds), calcium", false},
		{"plain milk", "Oats, milk, sugar", true},
		{"plant milk with whey", "Soy milk, whey powder", true},
		{"plant and dairy milk", "Rice milk, milk", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			src := NewIngredients(countingSource(&calls, withIngredients(tt.text), nil), 0)
			p, err := src.Product(context.Background(), "1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMilk, slices.Contains(p.AllergenCodes(), "MILK"))
		})
	}
}

func TestIngredients_NoTextUnchanged(t *testing.T) {
	calls := 0
	base := withIngredients("  ")
	p, err := NewIngredients(countingSource(&calls, base, nil), 0.9).Product(context.Background(), "1")
	require.NoError(t, err)
	assert.Same(t, base, p)
	assert.Empty(t, p.Facts)
}

func TestIngredients_DefaultConfidence(t *testing.T) {
	calls := 0
	p, err := NewIngredients(countingSource(&calls, withIngredients("sesame seeds"), nil), 0).Product(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, p.Facts, 1)
	assert.Equal(t, 0.95, p.Facts[0].Confidence)
}

func TestIngredients_ErrorPassesThrough(t *testing.T) {
	calls := 0
	_, err := NewIngredients(countingSource(&calls, nil, ErrNotFound), 0.9).Product(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)
}
