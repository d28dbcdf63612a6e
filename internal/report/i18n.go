// Package report renders risk results for people (localized text) and for
// spreadsheets (CSV, XLSX, JSON).
package report

import (
	"golang.org/x/text/language"

	"github.com/sells-group/allergen-risk/internal/risk"
)

var supported = []language.Tag{language.English, language.Portuguese}

var matcher = language.NewMatcher(supported)

var messages = map[string]map[string]string{
	"en": {
		"quick_view":             "=== Quick view ===",
		"details":                "=== Details ===",
		"per_allergen":           "Per-allergen breakdown:",
		"total_risk":             "Total risk",
		"highest_concern":        "Highest concern",
		"ingredients":            "Ingredients",
		"section_contains":       "Declared allergens",
		"section_may_contain":    "Traces / may contain",
		"section_facility_risk":  "Facility cross-contact",
		"cross_contact":          "Estimated cross-contact probability",
		"notes":                  "Data notes",
		"source":                 "source",
		"no_allergens":           "No allergens selected.",
		"very high":              "very high",
		"high":                   "high",
		"moderate":               "moderate",
		"low":                    "low",
		"very low":               "very low",
		"presence_contains":      "contains",
		"presence_may_contain":   "may contain",
		"presence_facility_risk": "facility risk",
	},
	"pt": {
		"quick_view":             "=== Visão rápida ===",
		"details":                "=== Detalhes ===",
		"per_allergen":           "Análise por alérgeno:",
		"total_risk":             "Risco total",
		"highest_concern":        "Maior preocupação",
		"ingredients":            "Ingredientes",
		"section_contains":       "Alérgenos declarados",
		"section_may_contain":    "Traços / pode conter",
		"section_facility_risk":  "Risco de fábrica",
		"cross_contact":          "Probabilidade estimada de contaminação cruzada",
		"notes":                  "Notas sobre os dados",
		"source":                 "fonte",
		"no_allergens":           "Nenhum alérgeno selecionado.",
		"very high":              "muito alto",
		"high":                   "alto",
		"moderate":               "moderado",
		"low":                    "baixo",
		"very low":               "muito baixo",
		"presence_contains":      "contém",
		"presence_may_contain":   "pode conter",
		"presence_facility_risk": "risco na fábrica",
	},
}

// Language maps a BCP 47 tag ("pt-BR", "en_US") to a supported language,
// defaulting to English.
func Language(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return "en"
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return "en"
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T returns the message for key in lang, falling back to English and then
// to the key itself.
func T(lang, key string) string {
	if m, ok := messages[Language(lang)][key]; ok {
		return m
	}
	if m, ok := messages["en"][key]; ok {
		return m
	}
	return key
}

// RiskLabel is the localized qualitative label for a 0-100 score.
func RiskLabel(score float64, lang string) string {
	return T(lang, risk.Label(score))
}
