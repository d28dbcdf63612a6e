package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/report"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/source"
	"github.com/sells-group/allergen-risk/internal/store"
)

var (
	assessEAN               string
	assessImage             string
	assessAllergies         []string
	assessAvoidTraces       bool
	assessAvoidFacilityRisk bool
	assessSource            string
	assessFormat            string
	assessLang              string
	assessSave              bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score one product by barcode or label photo",
	Example: `  allergen-risk assess --ean 3017620422003 --allergies milk,hazelnut --avoid-traces
  allergen-risk assess --image label.jpg --allergies gluten --lang pt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (assessEAN == "") == (assessImage == "") {
			return eris.New("exactly one of --ean or --image is required")
		}
		if assessFormat != "text" && assessFormat != "json" {
			return eris.Errorf("unknown format %q (want text or json)", assessFormat)
		}

		codes, err := allergen.ResolveAll(assessAllergies)
		if err != nil {
			return err
		}
		profile := model.NewUserAllergyProfile(codes, assessAvoidTraces, assessAvoidFacilityRisk)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "assess")
		if err != nil {
			return err
		}
		defer env.Close()

		var (
			src        source.ProductSource
			identifier string
		)
		if assessImage != "" {
			src, err = labelSource()
			identifier = assessImage
		} else {
			src, err = env.barcodeSource(assessSource)
			identifier = assessEAN
		}
		if err != nil {
			return err
		}

		p, result, err := assessProduct(ctx, src, env.Engine, identifier, profile)
		if err != nil {
			return err
		}

		if assessSave {
			if err := saveAssessment(ctx, env.Store, p, result); err != nil {
				return err
			}
		}

		return writeAssessment(cmd.OutOrStdout(), assessFormat, report.Language(assessLang), p, result)
	},
}

func init() {
	f := assessCmd.Flags()
	f.StringVar(&assessEAN, "ean", "", "product barcode (EAN/UPC)")
	f.StringVar(&assessImage, "image", "", "path to a label photo")
	f.StringSliceVar(&assessAllergies, "allergies", nil, "allergens to check, comma separated (codes or names)")
	f.BoolVar(&assessAvoidTraces, "avoid-traces", false, "treat 'may contain' statements as risk")
	f.BoolVar(&assessAvoidFacilityRisk, "avoid-facility-risk", false, "include facility cross-contact inference")
	f.StringVar(&assessSource, "source", "off", "barcode source: off or db")
	f.StringVar(&assessFormat, "format", "text", "output format: text or json")
	f.StringVar(&assessLang, "lang", "en", "report language: en or pt")
	f.BoolVar(&assessSave, "save", false, "save the assessment to history")
	rootCmd.AddCommand(assessCmd)
}

// assessProduct fetches identifier from src and scores it under profile.
func assessProduct(ctx context.Context, src source.ProductSource, engine *risk.Engine, identifier string, profile model.UserAllergyProfile) (*model.ProductInfo, model.RiskResult, error) {
	p, err := src.Product(ctx, identifier)
	if err != nil {
		return nil, model.RiskResult{}, err
	}
	result := engine.Score(p, profile)

	zap.L().Debug("product assessed",
		zap.String("identifier", p.Identifier),
		zap.String("source", p.Source),
		zap.Int("facts", len(p.Facts)),
		zap.Float64("final_score", result.FinalScore),
	)
	return p, result, nil
}

func saveAssessment(ctx context.Context, st store.Store, p *model.ProductInfo, r model.RiskResult) error {
	a := &model.Assessment{
		Identifier:    p.Identifier,
		ProductName:   p.Name,
		Source:        p.Source,
		UserAllergens: r.UserAllergens,
		FinalScore:    r.FinalScore,
		Result:        r,
	}
	if err := st.SaveAssessment(ctx, a); err != nil {
		return eris.Wrap(err, "save assessment")
	}
	zap.L().Info("assessment saved", zap.String("id", a.ID), zap.String("identifier", a.Identifier))
	return nil
}

// riskBody is the risk section of an assessment response.
type riskBody struct {
	PerAllergen map[string]model.AllergenRisk `json:"per_allergen"`
	FinalScore  float64                       `json:"final_score"`
	Label       string                        `json:"label"`
	Summary     string                        `json:"summary"`
}

// assessmentResponse is the JSON shape shared by `assess --format json`
// and POST /risk.
type assessmentResponse struct {
	Product      *model.ProductInfo `json:"product"`
	CrossContact map[string]float64 `json:"cross_contact"`
	Risk         riskBody           `json:"risk"`
}

func newAssessmentResponse(p *model.ProductInfo, r model.RiskResult) assessmentResponse {
	cross := r.CrossContact
	if cross == nil {
		cross = map[string]float64{}
	}
	per := r.PerAllergen
	if per == nil {
		per = map[string]model.AllergenRisk{}
	}
	return assessmentResponse{
		Product:      p,
		CrossContact: cross,
		Risk: riskBody{
			PerAllergen: per,
			FinalScore:  r.FinalScore,
			Label:       risk.Label(r.FinalScore),
			Summary:     r.Summary,
		},
	}
}

func writeAssessment(w io.Writer, format, lang string, p *model.ProductInfo, r model.RiskResult) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(newAssessmentResponse(p, r)), "encode assessment")
	default:
		return report.Text(w, p, r, lang)
	}
}
