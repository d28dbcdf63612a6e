package source

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/ocr"
)

const (
	noteNoText     = "OCR did not extract any readable text from the image; no ingredient analysis possible"
	noteNoAllergen = "OCR text analyzed and no allergens detected in available data"
)

// mayContainMarkers introduce precautionary statements on a label. Allergens
// named after a marker on the same line are traces rather than ingredients.
var mayContainMarkers = []string{
	"may contain",
	"traces of",
	"produced in a facility",
	"made in a factory",
	"pode conter",
	"tracos de",
	"traços de",
}

// Label reads a product label image and detects allergens in its text.
type Label struct {
	extractor  ocr.Extractor
	confidence float64
}

// NewLabel creates a label source. confidence applies to every detected fact;
// values outside (0,1] select the default.
func NewLabel(extractor ocr.Extractor, confidence float64) *Label {
	if confidence <= 0 || confidence > 1 {
		confidence = model.DefaultConfidence
	}
	return &Label{extractor: extractor, confidence: confidence}
}

// Product runs OCR over the image at imagePath. Provider failures are
// reported as data notes on an empty product; I/O failures are errors.
func (l *Label) Product(ctx context.Context, imagePath string) (*model.ProductInfo, error) {
	p := model.NewProductInfo(filepath.Base(imagePath), "Image input", model.SourceOCR)

	text, err := l.extractor.ExtractText(ctx, imagePath)
	var provErr *ocr.ProviderError
	switch {
	case errors.As(err, &provErr):
		zap.L().Warn("ocr: provider error", zap.String("image", imagePath), zap.Error(err))
		p.DataNotes = append(p.DataNotes, provErr.Error())
	case err != nil:
		return nil, eris.Wrapf(err, "ocr: extract %s", imagePath)
	}

	lines := ocr.SplitLines(text)
	p.IngredientsText = strings.Join(lines, " ")
	p.Facts = detectFacts(lines, l.confidence, model.SourceOCR)

	switch {
	case len(lines) == 0:
		p.DataNotes = append(p.DataNotes, noteNoText)
	case len(p.Facts) == 0:
		p.DataNotes = append(p.DataNotes, noteNoAllergen)
	}

	p.Normalize()
	return p, nil
}

// detectFacts detects allergens per line. Text following a precautionary
// marker yields may_contain facts unless the same code is declared elsewhere.
func detectFacts(lines []string, confidence float64, source string) []model.AllergenFact {
	var declared, traces []string
	for _, line := range lines {
		head, tail := splitPrecautionary(line)
		declared = append(declared, head)
		if tail != "" {
			traces = append(traces, tail)
		}
	}

	contains := allergen.Detect(declared...)
	seen := make(map[string]bool, len(contains))
	facts := make([]model.AllergenFact, 0, len(contains))
	for _, code := range contains {
		seen[code] = true
		facts = append(facts, model.AllergenFact{
			AllergenCode: code, Relation: model.RelationContains, Confidence: confidence, Source: source,
		})
	}
	for _, code := range allergen.Detect(traces...) {
		if seen[code] {
			continue
		}
		facts = append(facts, model.AllergenFact{
			AllergenCode: code, Relation: model.RelationMayContain, Confidence: confidence, Source: source,
		})
	}
	return facts
}

func splitPrecautionary(line string) (head, tail string) {
	lower := strings.ToLower(line)
	cut := -1
	for _, m := range mayContainMarkers {
		if i := strings.Index(lower, m); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return line, ""
	}
	return lower[:cut], lower[cut:]
}
