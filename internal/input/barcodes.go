package input

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadBarcodes reads identifiers from path. .xlsx and .csv files use the
// first column; anything else is read one identifier per line. Blank lines,
// '#' comments and a non-numeric header cell are skipped. Duplicates are
// dropped, keeping first-seen order.
func ReadBarcodes(ctx context.Context, path string) ([]string, error) {
	var cells []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		cells = firstColumn(rows)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: open barcodes")
		}
		defer f.Close() //nolint:errcheck

		rows, err := ReadCSV(ctx, f, CSVOptions{Comment: '#', TrimSpace: true})
		if err != nil {
			return nil, err
		}
		cells = firstColumn(rows)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "input: open barcodes")
		}
		defer f.Close() //nolint:errcheck

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			cells = append(cells, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, eris.Wrap(err, "input: read barcodes")
		}
	}

	return cleanBarcodes(cells), nil
}

func firstColumn(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r[0])
		}
	}
	return out
}

func cleanBarcodes(cells []string) []string {
	seen := make(map[string]bool, len(cells))
	out := make([]string, 0, len(cells))
	first := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || strings.HasPrefix(c, "#") || seen[c] {
			continue
		}
		if first {
			first = false
			if !isDigits(c) {
				continue
			}
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
