// Package allergen holds the EU Annex II allergen table and resolves free
// text, OpenFoodFacts tags and label tokens to canonical allergen codes.
package allergen

import (
	"sort"
	"strings"
)

// Allergen is one row of the allergen table.
type Allergen struct {
	Code     string            `json:"code"`
	Labels   map[string]string `json:"labels"`
	OFFTags  []string          `json:"-"`
	Keywords []string          `json:"-"`
}

// Label returns the label for lang, falling back to English and then the code.
func (a Allergen) Label(lang string) string {
	if l, ok := a.Labels[strings.ToLower(lang)]; ok && l != "" {
		return l
	}
	if l, ok := a.Labels["en"]; ok && l != "" {
		return l
	}
	return a.Code
}

var table = []Allergen{
	{
		Code: "GLUTEN",
		Labels: map[string]string{
			"en": "Cereals containing gluten (wheat, rye, barley, oats and derivatives)",
			"pt": "Cereais que contêm glúten (trigo, centeio, cevada, aveia e derivados)",
		},
		OFFTags:  []string{"en:gluten", "pt:gluten"},
		Keywords: []string{"gluten", "wheat", "barley", "rye", "oats", "spelt", "durum", "kamut", "triticale", "bulgur", "couscous", "semolina", "farro", "seitan", "malt"},
	},
	{
		Code: "CRUSTACEANS",
		Labels: map[string]string{
			"en": "Crustaceans and products thereof",
			"pt": "Crustáceos e produtos à base de crustáceos",
		},
		OFFTags:  []string{"en:crustaceans", "en:crustacean", "pt:crustaceos", "pt:crustaceo"},
		Keywords: []string{"crustacean", "crab", "crabs", "shrimp", "shrimps", "prawn", "prawns", "lobster", "lobsters", "crayfish", "langoustine", "krill"},
	},
	{
		Code: "EGG",
		Labels: map[string]string{
			"en": "Eggs and products thereof",
			"pt": "Ovos e produtos à base de ovo",
		},
		OFFTags:  []string{"en:egg", "en:eggs", "pt:ovo", "pt:ovos"},
		Keywords: []string{"egg", "eggs", "albumen", "albumin", "ovalbumin", "ovomucoid", "yolk", "eggwhite", "eggwhites"},
	},
	{
		Code: "FISH",
		Labels: map[string]string{
			"en": "Fish and products thereof",
			"pt": "Peixe e produtos à base de peixe",
		},
		OFFTags:  []string{"en:fish", "pt:peixe", "pt:peixes"},
		Keywords: []string{"fish", "salmon", "tuna", "cod", "haddock", "pollock", "anchovy", "anchovies", "sardine", "sardines", "trout", "mackerel", "herring", "tilapia", "snapper", "bass"},
	},
	{
		Code: "PEANUT",
		Labels: map[string]string{
			"en": "Peanuts and products thereof",
			"pt": "Amendoim e produtos à base de amendoim",
		},
		OFFTags:  []string{"en:peanuts", "en:peanut", "pt:amendoim", "pt:amendoins"},
		Keywords: []string{"peanut", "peanuts", "groundnut", "groundnuts", "monkey nut", "monkey nuts"},
	},
	{
		Code: "SOY",
		Labels: map[string]string{
			"en": "Soybeans and products thereof",
			"pt": "Soja e produtos à base de soja",
		},
		OFFTags:  []string{"en:soybeans", "en:soy", "en:soya", "pt:soja"},
		Keywords: []string{"soy", "soya", "soybean", "soybeans", "edamame", "tofu", "tempeh", "miso", "shoyu", "tamari", "natto"},
	},
	{
		Code: "MILK",
		Labels: map[string]string{
			"en": "Milk and dairy products including lactose",
			"pt": "Leite e produtos lácteos, incluindo lactose",
		},
		OFFTags:  []string{"en:milk", "en:milk-protein", "en:lactose", "pt:leite", "pt:lactose"},
		Keywords: []string{"milk", "lactose", "butter", "cream", "cheese", "whey", "casein", "caseinate", "milkpowder", "powderedmilk", "skimmed", "yoghurt", "yogurt", "ghee"},
	},
	{
		Code: "TREE_NUTS",
		Labels: map[string]string{
			"en": "Nuts (almond, hazelnut, walnut, cashew, pecan, Brazil nut, pistachio, macadamia)",
			"pt": "Frutos de casca rija (amêndoa, avelã, noz, caju, pecã, castanha do Brasil, pistácio, macadâmia)",
		},
		OFFTags: []string{
			"en:nuts", "en:tree-nuts", "en:almonds", "en:hazelnuts", "en:walnuts", "en:cashew", "en:pistachio",
			"pt:frutos-de-casca-rija", "pt:frutos-de-casca-dura", "pt:amendoa", "pt:amendoas", "pt:avelas",
			"pt:noz", "pt:nozes", "pt:caju", "pt:pistacio",
		},
		Keywords: []string{
			"tree nut", "tree nuts", "almond", "almonds", "hazelnut", "hazelnuts", "walnut", "walnuts",
			"pecan", "pecans", "cashew", "cashews", "pistachio", "pistachios", "macadamia", "macadamias",
			"brazil nut", "brazil nuts", "pine nut", "pine nuts", "chestnut", "chestnuts",
		},
	},
	{
		Code: "CELERY",
		Labels: map[string]string{
			"en": "Celery and products thereof",
			"pt": "Aipo e produtos à base de aipo",
		},
		OFFTags:  []string{"en:celery", "pt:aipo"},
		Keywords: []string{"celery", "celeriac"},
	},
	{
		Code: "MUSTARD",
		Labels: map[string]string{
			"en": "Mustard and products thereof",
			"pt": "Mostarda e produtos à base de mostarda",
		},
		OFFTags:  []string{"en:mustard", "pt:mostarda"},
		Keywords: []string{"mustard", "mustardseed", "mustardseeds", "dijon"},
	},
	{
		Code: "SESAME",
		Labels: map[string]string{
			"en": "Sesame seeds and products thereof",
			"pt": "Sementes de sésamo e produtos à base de sésamo",
		},
		OFFTags:  []string{"en:sesame", "en:sesame-seeds", "pt:sesamo", "pt:sementes-de-sesamo"},
		Keywords: []string{"sesame", "sesameseed", "sesameseeds", "tahini", "benne", "gingelly"},
	},
	{
		Code: "SULPHITES",
		Labels: map[string]string{
			"en": "Sulphur dioxide and sulphites >10mg/kg or 10mg/L",
			"pt": "Dióxido de enxofre e sulfitos em concentração superior a 10mg/kg ou 10mg/L",
		},
		OFFTags: []string{"en:sulphur-dioxide-and-sulphites", "en:sulphites", "en:sulfites", "pt:dioxido-de-enxofre-e-sulfitos", "pt:sulfitos"},
		Keywords: []string{
			"sulphite", "sulphites", "sulfite", "sulfites", "sulphur dioxide", "sulfur dioxide",
			"e220", "e221", "e222", "e223", "e224", "e226", "e227", "e228",
		},
	},
	{
		Code: "LUPIN",
		Labels: map[string]string{
			"en": "Lupin and products thereof",
			"pt": "Tremoço e produtos à base de tremoço",
		},
		OFFTags:  []string{"en:lupin", "en:lupine", "pt:tremoço", "pt:tremoco"},
		Keywords: []string{"lupin", "lupine", "tremoco", "tremoço"},
	},
	{
		Code: "MOLLUSCS",
		Labels: map[string]string{
			"en": "Molluscs and products thereof",
			"pt": "Moluscos e produtos à base de moluscos",
		},
		OFFTags: []string{"en:molluscs", "en:mollusks", "pt:moluscos"},
		Keywords: []string{
			"mollusc", "molluscs", "mollusk", "mollusks", "clam", "clams", "mussel", "mussels", "oyster", "oysters",
			"squid", "octopus", "cuttlefish", "snail", "whelk", "cockle", "scallop", "abalone",
		},
	},
}

var (
	byCode   map[string]Allergen
	tagIndex map[string]string
	synonyms map[string]string
)

func init() {
	byCode = make(map[string]Allergen, len(table))
	tagIndex = make(map[string]string)
	synonyms = make(map[string]string)
	for _, a := range table {
		byCode[a.Code] = a
		synonyms[fold(a.Code)] = a.Code
		for _, l := range a.Labels {
			synonyms[fold(l)] = a.Code
		}
		for _, tag := range a.OFFTags {
			tagIndex[strings.ToLower(tag)] = a.Code
			synonyms[fold(tag)] = a.Code
			if _, rest, ok := strings.Cut(tag, ":"); ok {
				synonyms[fold(rest)] = a.Code
			}
		}
		for _, kw := range a.Keywords {
			synonyms[fold(kw)] = a.Code
		}
	}
}

// All returns the table in declaration order.
func All() []Allergen {
	out := make([]Allergen, len(table))
	copy(out, table)
	return out
}

// Codes returns every canonical code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(table))
	for _, a := range table {
		codes = append(codes, a.Code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the allergen for a canonical code.
func Lookup(code string) (Allergen, bool) {
	a, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// Label returns a human label for code in lang. Unknown codes are returned as-is.
func Label(code, lang string) string {
	if code == "" {
		return ""
	}
	a, ok := Lookup(code)
	if !ok {
		return code
	}
	return a.Label(lang)
}
