package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/cache"
	"github.com/sells-group/allergen-risk/internal/model"
)

// Cached serves products from a cache and fills it on miss. Cache failures
// are logged and never fail the lookup.
type Cached struct {
	next  ProductSource
	cache cache.ProductCache
}

// NewCached wraps next with c.
func NewCached(next ProductSource, c cache.ProductCache) *Cached {
	return &Cached{next: next, cache: c}
}

// Product returns the cached product or fetches it from the wrapped source.
func (c *Cached) Product(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p, ok, err := c.cache.Get(ctx, identifier)
	if err != nil {
		zap.L().Warn("cache: get failed", zap.String("identifier", identifier), zap.Error(err))
	}
	if ok {
		return p, nil
	}

	p, err = c.next.Product(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, identifier, p); err != nil {
		zap.L().Warn("cache: set failed", zap.String("identifier", identifier), zap.Error(err))
	}
	return p, nil
}

// FacilityReader returns the facility profiles linked to a product.
type FacilityReader interface {
	FacilityProfilesForProduct(ctx context.Context, identifier string) ([]model.FacilityAllergenProfile, error)
}

// WithFacilities attaches stored facility profiles to products from next.
type WithFacilities struct {
	next   ProductSource
	reader FacilityReader
}

// NewWithFacilities wraps next.
func NewWithFacilities(next ProductSource, reader FacilityReader) *WithFacilities {
	return &WithFacilities{next: next, reader: reader}
}

// Product fetches from next and appends profiles not already present.
func (w *WithFacilities) Product(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p, err := w.next.Product(ctx, identifier)
	if err != nil {
		return nil, err
	}

	profiles, err := w.reader.FacilityProfilesForProduct(ctx, identifier)
	if err != nil {
		return nil, eris.Wrapf(err, "db: facilities for %s", identifier)
	}

	have := make(map[string]bool, len(p.Facilities))
	for _, f := range p.Facilities {
		have[f.FacilityID+"|"+f.AllergenCode] = true
	}
	for _, f := range profiles {
		if !have[f.FacilityID+"|"+f.AllergenCode] {
			p.Facilities = append(p.Facilities, f)
		}
	}
	return p, nil
}
