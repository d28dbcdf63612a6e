package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/report"
)

var (
	allergensLang   string
	allergensFormat string
)

var allergensCmd = &cobra.Command{
	Use:   "allergens",
	Short: "List the supported allergen codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeAllergens(cmd.OutOrStdout(), allergensFormat, report.Language(allergensLang))
	},
}

func init() {
	allergensCmd.Flags().StringVar(&allergensLang, "lang", "en", "label language: en or pt")
	allergensCmd.Flags().StringVar(&allergensFormat, "format", "text", "output format: text or json")
	rootCmd.AddCommand(allergensCmd)
}

type allergenEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func allergenEntries(lang string) []allergenEntry {
	all := allergen.All()
	out := make([]allergenEntry, 0, len(all))
	for _, a := range all {
		out = append(out, allergenEntry{Code: a.Code, Label: a.Label(lang)})
	}
	return out
}

func writeAllergens(w io.Writer, format, lang string) error {
	entries := allergenEntries(lang)
	if format == "json" {
		return eris.Wrap(json.NewEncoder(w).Encode(entries), "encode allergens")
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", e.Code, e.Label); err != nil {
			return err
		}
	}
	return nil
}
