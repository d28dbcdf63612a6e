package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/store"
)

type memCache struct {
	items  map[string]*model.ProductInfo
	getErr error
	sets   int
}

func (m *memCache) Get(_ context.Context, id string) (*model.ProductInfo, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	p, ok := m.items[id]
	return p, ok, nil
}

func (m *memCache) Set(_ context.Context, id string, p *model.ProductInfo) error {
	m.sets++
	m.items[id] = p
	return nil
}

func countingSource(calls *int, p *model.ProductInfo, err error) ProductSource {
	return Func(func(context.Context, string) (*model.ProductInfo, error) {
		*calls++
		return p, err
	})
}

func TestCached_MissThenHit(t *testing.T) {
	calls := 0
	c := &memCache{items: map[string]*model.ProductInfo{}}
	src := NewCached(countingSource(&calls, model.NewProductInfo("123", "Wafer", "openfoodfacts"), nil), c)

	for i := 0; i < 3; i++ {
		p, err := src.Product(context.Background(), "123")
		require.NoError(t, err)
		assert.Equal(t, "Wafer", p.Name)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.sets)
}

func TestCached_ErrorsNotCached(t *testing.T) {
	calls := 0
	c := &memCache{items: map[string]*model.ProductInfo{}}
	src := NewCached(countingSource(&calls, nil, ErrNotFound), c)

	_, err := src.Product(context.Background(), "123")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, c.sets)
}

func TestCached_CacheFailureFallsThrough(t *testing.T) {
	calls := 0
	c := &memCache{items: map[string]*model.ProductInfo{}, getErr: errors.New("redis down")}
	src := NewCached(countingSource(&calls, model.NewProductInfo("123", "Wafer", "openfoodfacts"), nil), c)

	p, err := src.Product(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Wafer", p.Name)
	assert.Equal(t, 1, calls)
}

type fakeFacilities struct {
	profiles []model.FacilityAllergenProfile
	err      error
}

func (f fakeFacilities) FacilityProfilesForProduct(context.Context, string) ([]model.FacilityAllergenProfile, error) {
	return f.profiles, f.err
}

func TestWithFacilities_AppendsProfiles(t *testing.T) {
	base := model.NewProductInfo("123", "Wafer", "openfoodfacts")
	base.Facilities = []model.FacilityAllergenProfile{
		{FacilityID: "F1", AllergenCode: "MILK", ProductCountWithAllergen: 2, TotalProductsAtFacility: 10},
	}
	calls := 0
	src := NewWithFacilities(countingSource(&calls, base, nil), fakeFacilities{profiles: []model.FacilityAllergenProfile{
		{FacilityID: "F1", AllergenCode: "MILK", ProductCountWithAllergen: 9, TotalProductsAtFacility: 10},
		{FacilityID: "F2", AllergenCode: "PEANUT", ProductCountWithAllergen: 1, TotalProductsAtFacility: 4},
	}})

	p, err := src.Product(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, p.Facilities, 2)
	assert.Equal(t, 2, p.Facilities[0].ProductCountWithAllergen)
	assert.Equal(t, "F2", p.Facilities[1].FacilityID)
}

func TestWithFacilities_Errors(t *testing.T) {
	calls := 0
	src := NewWithFacilities(countingSource(&calls, nil, ErrNotFound), fakeFacilities{})
	_, err := src.Product(context.Background(), "123")
	assert.True(t, errors.Is(err, ErrNotFound))

	src = NewWithFacilities(countingSource(&calls, model.NewProductInfo("1", "", ""), nil), fakeFacilities{err: errors.New("conn closed")})
	_, err = src.Product(context.Background(), "1")
	assert.ErrorContains(t, err, "db: facilities for 1")
}

type fakeReader struct {
	p   *model.ProductInfo
	err error
}

func (f fakeReader) GetProduct(context.Context, string) (*model.ProductInfo, error) {
	return f.p, f.err
}

func TestDatabase_Product(t *testing.T) {
	stored := model.NewProductInfo("123", "Wafer", model.SourceDatabase)
	stored.Facts = []model.AllergenFact{
		{AllergenCode: "MILK", Relation: model.RelationContains, Confidence: 1, Source: model.SourceDatabase},
	}

	p, err := NewDatabase(fakeReader{p: stored}).Product(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, p.DataNotes)
	assert.Len(t, p.Facts, 1)
}

func TestDatabase_NoFactsNote(t *testing.T) {
	p, err := NewDatabase(fakeReader{p: model.NewProductInfo("123", "Wafer", model.SourceDatabase)}).Product(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, []string{noteNoDBFacts}, p.DataNotes)
}

func TestDatabase_NotFound(t *testing.T) {
	_, err := NewDatabase(fakeReader{err: store.ErrNotFound}).Product(context.Background(), "123")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = NewDatabase(fakeReader{err: errors.New("timeout")}).Product(context.Background(), "123")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorContains(t, err, "db: load 123")
}
