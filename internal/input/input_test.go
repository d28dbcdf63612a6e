package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/allergen-risk/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "eans.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamCSV(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("a, b\n# skipped\nc,d,e\n"), CSVOptions{Comment: '#', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d", "e"}}, rows)
}

func TestStreamCSV_Delimiter(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("a;b\n"), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadBarcodes_Text(t *testing.T) {
	path := writeFile(t, "eans.txt", "# weekly list\n7891000100103\n\n 3017620422003 \n7891000100103\n")
	got, err := ReadBarcodes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"7891000100103", "3017620422003"}, got)
}

func TestReadBarcodes_CSVWithHeader(t *testing.T) {
	path := writeFile(t, "eans.csv", "ean,note\n7891000100103,wafer\n3017620422003,spread\n")
	got, err := ReadBarcodes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"7891000100103", "3017620422003"}, got)
}

func TestReadBarcodes_XLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"Barcode"}, {"7891000100103"}, {""}, {"3017620422003"}})
	got, err := ReadBarcodes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"7891000100103", "3017620422003"}, got)
}

func TestReadBarcodes_Missing(t *testing.T) {
	_, err := ReadBarcodes(context.Background(), filepath.Join(t.TempDir(), "none.txt"))
	assert.Error(t, err)
}

func TestReadXLSX_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"x"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Other"})
	assert.ErrorContains(t, err, `sheet "Other" not found`)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Sheet1"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}}, rows)
}

func TestReadFacilityFile_YAML(t *testing.T) {
	path := writeFile(t, "facilities.yaml", `
profiles:
  - facility_id: F1
    allergen_code: peanuts
    product_count_with_allergen: 2
    total_products_at_facility: 10
  - facility_id: F1
    allergen_code: Leite
    product_count_with_allergen: 0
    total_products_at_facility: 10
links:
  - facility_id: F1
    identifier: "7891000100103"
`)
	ff, err := ReadFacilityFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.FacilityAllergenProfile{
		{FacilityID: "F1", AllergenCode: "PEANUT", ProductCountWithAllergen: 2, TotalProductsAtFacility: 10},
		{FacilityID: "F1", AllergenCode: "MILK", ProductCountWithAllergen: 0, TotalProductsAtFacility: 10},
	}, ff.Profiles)
	assert.Equal(t, []FacilityLink{{FacilityID: "F1", Identifier: "7891000100103"}}, ff.Links)
}

func TestReadFacilityFile_CSV(t *testing.T) {
	path := writeFile(t, "facilities.csv",
		"total_products_at_facility,facility_id,allergen_code,product_count_with_allergen\n12,F2,SESAME,3\n")
	ff, err := ReadFacilityFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.FacilityAllergenProfile{
		{FacilityID: "F2", AllergenCode: "SESAME", ProductCountWithAllergen: 3, TotalProductsAtFacility: 12},
	}, ff.Profiles)
	assert.Empty(t, ff.Links)
}

func TestReadFacilityFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown allergen", "f.yaml", "profiles:\n  - {facility_id: F1, allergen_code: kryptonite, product_count_with_allergen: 1, total_products_at_facility: 2}\n", "unknown allergen"},
		{"count above total", "f.yaml", "profiles:\n  - {facility_id: F1, allergen_code: MILK, product_count_with_allergen: 3, total_products_at_facility: 2}\n", "product_count_with_allergen"},
		{"missing facility", "f.yaml", "profiles:\n  - {allergen_code: MILK, product_count_with_allergen: 1, total_products_at_facility: 2}\n", "facility_id is required"},
		{"bad link", "f.yaml", "links:\n  - {facility_id: F1}\n", "link 1"},
		{"bad yaml", "f.yaml", "profiles: [", "parse facility yaml"},
		{"missing column", "f.csv", "facility_id,allergen_code\nF1,MILK\n", "missing column"},
		{"bad number", "f.csv", "facility_id,allergen_code,product_count_with_allergen,total_products_at_facility\nF1,MILK,x,2\n", "row 2"},
		{"unsupported", "f.json", "{}", "unsupported facility file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFacilityFile(context.Background(), writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
