//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/source"
	"github.com/sells-group/allergen-risk/internal/store"
)

// useTestConfig loads defaults from an empty directory, points the store at a
// temp SQLite file and installs the result as the global cfg.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())

	c, err := config.Load()
	require.NoError(t, err)
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "test.db")
	c.Redis.URL = ""

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func wafer(id string) *model.ProductInfo {
	p := model.NewProductInfo(id, "Choco Wafer", model.SourceOpenFoodFacts)
	p.Brand = "Acme"
	p.Facts = []model.AllergenFact{
		{AllergenCode: "MILK", Relation: model.RelationContains, Confidence: 1, Source: "openfoodfacts:allergens"},
		{AllergenCode: "PEANUT", Relation: model.RelationMayContain, Confidence: 1, Source: "openfoodfacts:traces"},
	}
	return p
}

// staticSource serves products by identifier and reports the rest as not found.
func staticSource(products ...*model.ProductInfo) source.ProductSource {
	byID := make(map[string]*model.ProductInfo, len(products))
	for _, p := range products {
		byID[p.Identifier] = p
	}
	return source.Func(func(_ context.Context, id string) (*model.ProductInfo, error) {
		if p, ok := byID[id]; ok {
			return p, nil
		}
		return nil, eris.Wrapf(source.ErrNotFound, "test: %s", id)
	})
}
