package source

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/resilience"
	"github.com/sells-group/allergen-risk/pkg/openfoodfacts"
)

// Fact sources produced by the OpenFoodFacts adapter.
const (
	SourceOFFAllergens = model.SourceOpenFoodFacts + ":allergens"
	SourceOFFTraces    = model.SourceOpenFoodFacts + ":traces"
	SourceOFFAnalysis  = model.SourceOpenFoodFacts + ":ingredients_analysis"
)

const (
	noteNoTraces      = "No traces (may contain) data available from OpenFoodFacts"
	noteNoAllergenTag = "OpenFoodFacts lists no declared allergens for this product"
)

// OpenFoodFacts looks products up by barcode on OpenFoodFacts.
type OpenFoodFacts struct {
	client     openfoodfacts.Client
	policy     *resilience.Policy
	traces     float64
	mayContain float64
}

// NewOpenFoodFacts wraps client. policy may be nil to disable retries.
// Confidences outside (0,1] select the defaults.
func NewOpenFoodFacts(client openfoodfacts.Client, cfg config.OpenFoodFactsConfig, policy *resilience.Policy) *OpenFoodFacts {
	traces := cfg.TracesConfidence
	if traces <= 0 || traces > 1 {
		traces = 1.0
	}
	mayContain := cfg.MayContainConfidence
	if mayContain <= 0 || mayContain > 1 {
		mayContain = 0.6
	}
	return &OpenFoodFacts{client: client, policy: policy, traces: traces, mayContain: mayContain}
}

// Product fetches barcode and normalizes its allergen tags into facts.
func (o *OpenFoodFacts) Product(ctx context.Context, barcode string) (*model.ProductInfo, error) {
	raw, err := resilience.Call(ctx, o.policy, func(ctx context.Context) (*openfoodfacts.Product, error) {
		p, err := o.client.Product(ctx, barcode)
		var apiErr *openfoodfacts.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return p, err
	})
	if errors.Is(err, openfoodfacts.ErrNotFound) {
		zap.L().Info("off: product not found", zap.String("barcode", barcode))
		return nil, eris.Wrapf(ErrNotFound, "off: barcode %s", barcode)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "off: fetch %s", barcode)
	}

	return o.normalize(barcode, raw), nil
}

func (o *OpenFoodFacts) normalize(barcode string, raw *openfoodfacts.Product) *model.ProductInfo {
	name := strings.TrimSpace(raw.ProductName)
	if name == "" {
		name = "Unknown product"
	}
	p := model.NewProductInfo(barcode, name, model.SourceOpenFoodFacts)
	p.Brand = raw.PrimaryBrand()
	p.IngredientsText = raw.IngredientsText

	for _, tag := range raw.AllergensTags {
		if code, ok := allergen.TagToCode(tag); ok {
			p.Facts = append(p.Facts, model.AllergenFact{
				AllergenCode: code, Relation: model.RelationContains, Confidence: 1.0, Source: SourceOFFAllergens,
			})
		}
	}

	traces := 0
	for _, tag := range raw.TracesTags {
		if code, ok := allergen.TagToCode(tag); ok {
			traces++
			p.Facts = append(p.Facts, model.AllergenFact{
				AllergenCode: code, Relation: model.RelationMayContain, Confidence: o.traces, Source: SourceOFFTraces,
			})
		}
	}

	for _, tag := range raw.IngredientsAnalysisTags {
		if !strings.Contains(strings.ToLower(tag), "may-contain") {
			continue
		}
		if code, ok := allergen.TagToCode(tag); ok {
			traces++
			p.Facts = append(p.Facts, model.AllergenFact{
				AllergenCode: code, Relation: model.RelationMayContain, Confidence: o.mayContain, Source: SourceOFFAnalysis,
			})
		}
	}

	if len(raw.AllergensTags) == 0 {
		p.DataNotes = append(p.DataNotes, noteNoAllergenTag)
	}
	if traces == 0 {
		p.DataNotes = append(p.DataNotes, noteNoTraces)
	}

	p.Normalize()
	return p
}
