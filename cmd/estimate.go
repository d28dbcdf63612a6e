package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/crosscontact"
	"github.com/sells-group/allergen-risk/internal/model"
)

var (
	estimateFacility string
	estimateAllergen string
	estimateWith     int
	estimateTotal    int
	estimateFormat   string
)

var estimateCmd = &cobra.Command{
	Use:     "estimate",
	Short:   "Estimate facility cross-contact probability for one allergen",
	Example: `  allergen-risk estimate --facility plant-7 --allergen peanut --with 8 --total 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, ok := allergen.Resolve(estimateAllergen)
		if !ok {
			return eris.Errorf("unknown allergen %q", estimateAllergen)
		}

		m, err := crosscontact.New(cfg.CrossContact)
		if err != nil {
			return err
		}

		p := model.FacilityAllergenProfile{
			FacilityID:               estimateFacility,
			AllergenCode:             code,
			ProductCountWithAllergen: estimateWith,
			TotalProductsAtFacility:  estimateTotal,
		}
		if err := p.Validate(); err != nil {
			return err
		}

		est, ok := m.Estimate(p)
		return writeEstimate(cmd.OutOrStdout(), estimateFormat, p, est, ok)
	},
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateFacility, "facility", "", "facility identifier")
	f.StringVar(&estimateAllergen, "allergen", "", "allergen code or name")
	f.IntVar(&estimateWith, "with", 0, "products at the facility containing the allergen")
	f.IntVar(&estimateTotal, "total", 0, "total products at the facility")
	f.StringVar(&estimateFormat, "format", "text", "output format: text or json")
	_ = estimateCmd.MarkFlagRequired("allergen")
	rootCmd.AddCommand(estimateCmd)
}

func writeEstimate(w io.Writer, format string, p model.FacilityAllergenProfile, est crosscontact.Estimate, ok bool) error {
	if format == "json" {
		return eris.Wrap(json.NewEncoder(w).Encode(newEstimateResponse(est, ok)), "encode estimate")
	}

	if !ok {
		_, err := fmt.Fprintf(w, "%s %s: %s\n", p.FacilityID, p.AllergenCode, noEvidenceNote)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s: p=%.3f (sd %.3f) from %d/%d products\n",
		est.FacilityID, est.AllergenCode, est.Probability, est.StdDev, est.Successes, est.Trials)
	return err
}
