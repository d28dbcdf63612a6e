package allergen

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen drops short tokens such as "of" and "and" before matching.
const minTokenLen = 3

// fold lowercases s, strips accents and trims whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// Resolve maps free text in any supported language to a canonical code.
func Resolve(input string) (string, bool) {
	code, ok := synonyms[fold(input)]
	return code, ok
}

// ResolveAll resolves every input, failing on the first unknown entry.
// The result is sorted and deduplicated.
func ResolveAll(inputs []string) ([]string, error) {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		code, ok := Resolve(in)
		if !ok {
			return nil, eris.Errorf("allergen: unknown allergen %q", in)
		}
		seen[code] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// TagToCode maps an OpenFoodFacts tag to a canonical code. Tags carrying the
// ":may-contain-" marker are reduced to the allergen part.
func TagToCode(tag string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if code, ok := tagIndex[t]; ok {
		return code, true
	}
	if lang, rest, ok := strings.Cut(t, ":may-contain-"); ok {
		if code, ok := tagIndex[lang+":"+rest]; ok {
			return code, true
		}
		return Resolve(rest)
	}
	return Resolve(t)
}

// Tokenize folds text and splits it into alphanumeric tokens of at least
// three characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(fold(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// Detect scans ingredient texts and returns the sorted set of codes found.
// Bigrams and trigrams are matched so "brazil nut" resolves.
func Detect(texts ...string) []string {
	var tokens []string
	for _, t := range texts {
		tokens = append(tokens, Tokenize(t)...)
	}

	candidates := append([]string(nil), tokens...)
	for size := 2; size <= 3; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			candidates = append(candidates, strings.Join(tokens[i:i+size], " "))
		}
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		if code, ok := synonyms[c]; ok {
			seen[code] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
