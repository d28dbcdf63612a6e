package allergen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableHasFourteenCodes(t *testing.T) {
	t.Parallel()

	codes := Codes()
	assert.Len(t, codes, 14)
	assert.Contains(t, codes, "TREE_NUTS")
	assert.Contains(t, codes, "SULPHITES")
	assert.IsIncreasing(t, codes)
}

func TestLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Eggs and products thereof", Label("egg", "en"))
	assert.Equal(t, "Ovos e produtos à base de ovo", Label("EGG", "PT"))
	assert.Equal(t, "Eggs and products thereof", Label("EGG", "fr"))
	assert.Equal(t, "KIWI", Label("KIWI", "en"))
	assert.Equal(t, "", Label("", "en"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"milk":                 "MILK",
		"MILK":                 "MILK",
		" Leite ":              "MILK",
		"en:milk":              "MILK",
		"tree_nuts":            "TREE_NUTS",
		"amêndoa":              "TREE_NUTS",
		"tremoço":              "LUPIN",
		"Brazil Nut":           "TREE_NUTS",
		"sulfites":             "SULPHITES",
		"frutos-de-casca-rija": "TREE_NUTS",
	}
	for in, want := range tests {
		got, ok := Resolve(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := Resolve("kiwi")
	assert.False(t, ok)
}

func TestResolveAll(t *testing.T) {
	t.Parallel()

	got, err := ResolveAll([]string{"milk", "gluten", "MILK", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"GLUTEN", "MILK"}, got)

	_, err = ResolveAll([]string{"milk", "kiwi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kiwi")
}

func TestTagToCode(t *testing.T) {
	t.Parallel()

	code, ok := TagToCode("en:milk")
	require.True(t, ok)
	assert.Equal(t, "MILK", code)

	code, ok = TagToCode("EN:Tree-Nuts")
	require.True(t, ok)
	assert.Equal(t, "TREE_NUTS", code)

	code, ok = TagToCode("en:may-contain-gluten")
	require.True(t, ok)
	assert.Equal(t, "GLUTEN", code)

	_, ok = TagToCode("en:kiwi")
	assert.False(t, ok)
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"farinha", "trigo", "acucar"}, Tokenize("Farinha de TRIGO, açúcar"))
	assert.Empty(t, Tokenize("a, b; of"))
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		texts []string
		want  []string
	}{
		{name: "single words", texts: []string{"Wheat flour, sugar, whole MILK powder"}, want: []string{"GLUTEN", "MILK"}},
		{name: "bigram", texts: []string{"may contain traces of brazil nuts"}, want: []string{"TREE_NUTS"}},
		{name: "multiple texts", texts: []string{"soya lecithin", "E220 (preservative)"}, want: []string{"SOY", "SULPHITES"}},
		{name: "accents", texts: []string{"tremoço cozido"}, want: []string{"LUPIN"}},
		{name: "nothing", texts: []string{"water, salt"}, want: []string{}},
		{name: "empty", texts: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(tt.texts...))
		})
	}
}
