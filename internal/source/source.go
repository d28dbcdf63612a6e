// Package source adapts product data providers (OpenFoodFacts, label OCR,
// the local database) to the normalized model.ProductInfo the risk engine
// consumes.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/model"
)

// ErrNotFound is returned when a source has no product for an identifier.
var ErrNotFound = eris.New("source: product not found")

// ProductSource looks up a product by identifier (barcode or image path).
type ProductSource interface {
	Product(ctx context.Context, identifier string) (*model.ProductInfo, error)
}

// Func adapts a plain function to ProductSource.
type Func func(ctx context.Context, identifier string) (*model.ProductInfo, error)

// Product calls f.
func (f Func) Product(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	return f(ctx, identifier)
}
