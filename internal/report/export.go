package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/risk"
)

// Row is one line of a batch export: a scored product or a lookup failure.
type Row struct {
	Identifier string            `json:"identifier"`
	Name       string            `json:"name,omitempty"`
	Brand      string            `json:"brand,omitempty"`
	Result     *model.RiskResult `json:"result,omitempty"`
	Notes      []string          `json:"data_notes,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewRow builds a row from a scored product.
func NewRow(p *model.ProductInfo, r model.RiskResult) Row {
	return Row{Identifier: p.Identifier, Name: p.Name, Brand: p.Brand, Result: &r, Notes: p.DataNotes}
}

// ErrorRow records a product that could not be scored.
func ErrorRow(identifier string, err error) Row {
	return Row{Identifier: identifier, Error: err.Error()}
}

// header is the fixed columns followed by one score column per user code.
func header(codes []string) []string {
	h := []string{"identifier", "name", "brand", "final_score", "label", "summary"}
	h = append(h, codes...)
	return append(h, "error")
}

func (r Row) cells(codes []string) []string {
	out := []string{r.Identifier, r.Name, r.Brand, "", "", ""}
	if r.Result != nil {
		out[3] = strconv.FormatFloat(r.Result.FinalScore, 'f', 2, 64)
		out[4] = risk.Label(r.Result.FinalScore)
		out[5] = r.Result.Summary
	}
	for _, c := range codes {
		v := ""
		if r.Result != nil {
			if a, ok := r.Result.PerAllergen[c]; ok {
				v = strconv.FormatFloat(a.Score, 'f', 2, 64)
			}
		}
		out = append(out, v)
	}
	return append(out, r.Error)
}

// WriteCSV writes rows with one score column per code in codes.
func WriteCSV(w io.Writer, rows []Row, codes []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(codes)); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.cells(codes)); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", r.Identifier)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteXLSX saves rows to an XLSX workbook at path. Scores are numeric cells.
func WriteXLSX(path string, rows []Row, codes []string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Risk")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range header(codes) {
		hdr.AddCell().SetString(h)
	}

	for _, r := range rows {
		xr := sheet.AddRow()
		for i, v := range r.cells(codes) {
			cell := xr.AddCell()
			if isScoreColumn(i, len(codes)) && v != "" {
				n, err := strconv.ParseFloat(v, 64)
				if err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	return eris.Wrap(f.Save(path), "report: save xlsx")
}

func isScoreColumn(i, nCodes int) bool {
	return i == 3 || (i >= 6 && i < 6+nCodes)
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rows), "report: encode json")
}
