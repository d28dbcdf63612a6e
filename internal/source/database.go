package source

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/store"
)

const noteNoDBFacts = "No ingredient/allergen data found in database; cannot compute risk without supplemental data"

// ProductReader loads a stored product with its facts and facilities.
type ProductReader interface {
	GetProduct(ctx context.Context, identifier string) (*model.ProductInfo, error)
}

// Database serves products previously saved to the store.
type Database struct {
	reader ProductReader
}

// NewDatabase creates a database-backed source.
func NewDatabase(reader ProductReader) *Database {
	return &Database{reader: reader}
}

// Product loads identifier from the store.
func (d *Database) Product(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p, err := d.reader.GetProduct(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "db: product %s", identifier)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "db: load %s", identifier)
	}

	p.Normalize()
	if len(p.Facts) == 0 {
		p.DataNotes = append(p.DataNotes, noteNoDBFacts)
	}
	return p, nil
}
