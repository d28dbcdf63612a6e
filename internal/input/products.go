package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/model"
)

// ProductRecord is one product in a product import file. Codes listed under
// Contains and MayContain get full confidence; Facts carries explicit ones.
type ProductRecord struct {
	Identifier      string       `yaml:"identifier"`
	Name            string       `yaml:"name"`
	Brand           string       `yaml:"brand"`
	IngredientsText string       `yaml:"ingredients_text"`
	Contains        []string     `yaml:"contains"`
	MayContain      []string     `yaml:"may_contain"`
	Facts           []FactRecord `yaml:"facts"`
}

// FactRecord is an explicit fact in a product import file. A zero
// confidence means full confidence.
type FactRecord struct {
	AllergenCode string  `yaml:"allergen_code"`
	Relation     string  `yaml:"relation"`
	Confidence   float64 `yaml:"confidence"`
}

type productFile struct {
	Products []ProductRecord `yaml:"products"`
}

var productHeader = []string{"identifier", "name"}

// ReadProductFile parses a YAML or CSV product file into validated products
// sourced from the database. CSV files need identifier and name columns;
// brand, ingredients_text, contains and may_contain are optional, with
// allergen lists separated by "|" or ";".
func ReadProductFile(ctx context.Context, path string) ([]*model.ProductInfo, error) {
	var records []ProductRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: read product file")
		}
		var pf productFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, eris.Wrap(err, "input: parse product yaml")
		}
		records = pf.Products
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: open product file")
		}
		defer f.Close() //nolint:errcheck

		rows, err := ReadCSV(ctx, f, CSVOptions{Comment: '#', TrimSpace: true})
		if err != nil {
			return nil, err
		}
		records, err = productsFromRows(rows)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("input: unsupported product file type %q", filepath.Ext(path))
	}

	out := make([]*model.ProductInfo, 0, len(records))
	for i, r := range records {
		p, err := r.product()
		if err != nil {
			return nil, eris.Wrapf(err, "input: product %d", i+1)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r ProductRecord) product() (*model.ProductInfo, error) {
	id := strings.TrimSpace(r.Identifier)
	if id == "" {
		return nil, eris.New("identifier is required")
	}

	p := model.NewProductInfo(id, strings.TrimSpace(r.Name), model.SourceDatabase)
	p.Brand = strings.TrimSpace(r.Brand)
	p.IngredientsText = strings.TrimSpace(r.IngredientsText)

	add := func(name string, rel model.Relation, confidence float64) error {
		code, ok := allergen.Resolve(name)
		if !ok {
			return eris.Errorf("unknown allergen %q", name)
		}
		if confidence == 0 {
			confidence = model.DefaultConfidence
		}
		f, err := model.NewAllergenFact(code, rel, confidence, model.SourceDatabase)
		if err != nil {
			return err
		}
		p.Facts = append(p.Facts, f)
		return nil
	}

	for _, name := range r.Contains {
		if err := add(name, model.RelationContains, 0); err != nil {
			return nil, err
		}
	}
	for _, name := range r.MayContain {
		if err := add(name, model.RelationMayContain, 0); err != nil {
			return nil, err
		}
	}
	for _, fr := range r.Facts {
		rel, err := model.ParseRelation(fr.Relation)
		if err != nil {
			return nil, err
		}
		if err := add(fr.AllergenCode, rel, fr.Confidence); err != nil {
			return nil, err
		}
	}

	p.Normalize()
	return p, nil
}

func productsFromRows(rows [][]string) ([]ProductRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range productHeader {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("input: product csv missing column %q", col)
		}
	}

	out := make([]ProductRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		out = append(out, ProductRecord{
			Identifier:      get("identifier"),
			Name:            get("name"),
			Brand:           get("brand"),
			IngredientsText: get("ingredients_text"),
			Contains:        splitList(get("contains")),
			MayContain:      splitList(get("may_contain")),
		})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
