package input

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
)

// FacilityLink ties a product to the facility that makes it.
type FacilityLink struct {
	FacilityID string `yaml:"facility_id"`
	Identifier string `yaml:"identifier"`
}

// FacilityFile is the content of a facility import file.
type FacilityFile struct {
	Profiles []model.FacilityAllergenProfile `yaml:"profiles"`
	Links    []FacilityLink                  `yaml:"links"`
}

var profileHeader = []string{"facility_id", "allergen_code", "product_count_with_allergen", "total_products_at_facility"}

// ReadFacilityFile parses a YAML (profiles and links) or CSV (profiles
// only) facility file. Allergen names are resolved to canonical codes and
// every profile is validated.
func ReadFacilityFile(ctx context.Context, path string) (*FacilityFile, error) {
	var ff FacilityFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: read facility file")
		}
		if err := yaml.Unmarshal(data, &ff); err != nil {
			return nil, eris.Wrap(err, "input: parse facility yaml")
		}
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: open facility file")
		}
		defer f.Close() //nolint:errcheck

		rows, err := ReadCSV(ctx, f, CSVOptions{Comment: '#', TrimSpace: true})
		if err != nil {
			return nil, err
		}
		ff.Profiles, err = profilesFromRows(rows)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("input: unsupported facility file type %q", filepath.Ext(path))
	}

	for i := range ff.Profiles {
		p := &ff.Profiles[i]
		code, ok := allergen.Resolve(p.AllergenCode)
		if !ok {
			return nil, eris.Errorf("input: profile %d: unknown allergen %q", i+1, p.AllergenCode)
		}
		p.AllergenCode = code
		if strings.TrimSpace(p.FacilityID) == "" {
			return nil, eris.Errorf("input: profile %d: facility_id is required", i+1)
		}
		if err := p.Validate(); err != nil {
			return nil, eris.Wrapf(err, "input: profile %d", i+1)
		}
	}
	for i, l := range ff.Links {
		if strings.TrimSpace(l.FacilityID) == "" || strings.TrimSpace(l.Identifier) == "" {
			return nil, eris.Errorf("input: link %d: facility_id and identifier are required", i+1)
		}
	}
	return &ff, nil
}

// profilesFromRows maps CSV rows by header name. The header must name all
// four profile columns, in any order.
func profilesFromRows(rows [][]string) ([]model.FacilityAllergenProfile, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range profileHeader {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("input: facility csv missing column %q", col)
		}
	}

	out := make([]model.FacilityAllergenProfile, 0, len(rows)-1)
	for n, row := range rows[1:] {
		get := func(col string) string {
			if i := idx[col]; i < len(row) {
				return row[i]
			}
			return ""
		}
		with, err := strconv.Atoi(get("product_count_with_allergen"))
		if err != nil {
			return nil, eris.Wrapf(err, "input: row %d: product_count_with_allergen", n+2)
		}
		total, err := strconv.Atoi(get("total_products_at_facility"))
		if err != nil {
			return nil, eris.Wrapf(err, "input: row %d: total_products_at_facility", n+2)
		}
		out = append(out, model.FacilityAllergenProfile{
			FacilityID:               get("facility_id"),
			AllergenCode:             get("allergen_code"),
			ProductCountWithAllergen: with,
			TotalProductsAtFacility:  total,
		})
	}
	return out, nil
}
