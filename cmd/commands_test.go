//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/crosscontact"
	"github.com/sells-group/allergen-risk/internal/input"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/monitoring"
)

func TestWriteEstimate_Text(t *testing.T) {
	p := model.FacilityAllergenProfile{FacilityID: "plant-7", AllergenCode: "PEANUT", ProductCountWithAllergen: 8, TotalProductsAtFacility: 10}
	est, ok := crosscontact.Default().Estimate(p)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, writeEstimate(&buf, "text", p, est, ok))
	assert.Equal(t, "plant-7 PEANUT: p=0.750 (sd 0.120) from 8/10 products\n", buf.String())
}

func TestWriteEstimate_NoEvidence(t *testing.T) {
	p := model.FacilityAllergenProfile{FacilityID: "empty", AllergenCode: "MILK"}

	var buf bytes.Buffer
	require.NoError(t, writeEstimate(&buf, "json", p, crosscontact.Estimate{}, false))

	var got estimateResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Nil(t, got.Estimate)
	assert.Equal(t, noEvidenceNote, got.Note)
}

func TestWriteAllergens(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAllergens(&buf, "json", "pt"))

	var entries []allergenEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	assert.Len(t, entries, 14)
	for _, e := range entries {
		assert.NotEmpty(t, e.Code)
		assert.NotEmpty(t, e.Label)
	}

	buf.Reset()
	require.NoError(t, writeAllergens(&buf, "text", "en"))
	assert.Contains(t, buf.String(), "MILK")
}

func TestImportFacilities(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ff := &input.FacilityFile{
		Profiles: []model.FacilityAllergenProfile{
			{FacilityID: "plant-7", AllergenCode: "PEANUT", ProductCountWithAllergen: 8, TotalProductsAtFacility: 10},
			{FacilityID: "plant-7", AllergenCode: "MILK", ProductCountWithAllergen: 1, TotalProductsAtFacility: 10},
		},
		Links: []input.FacilityLink{{FacilityID: "plant-7", Identifier: "123"}},
	}

	n, err := importFacilities(ctx, st, ff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	profiles, err := st.FacilityProfilesForProduct(ctx, "123")
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestImportFacilities_FromYAMLFile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "facilities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`profiles:
  - facility_id: plant-1
    allergen_code: peanut
    product_count_with_allergen: 2
    total_products_at_facility: 4
links:
  - facility_id: plant-1
    identifier: "456"
`), 0o644))

	ff, err := input.ReadFacilityFile(ctx, path)
	require.NoError(t, err)

	_, err = importFacilities(ctx, st, ff)
	require.NoError(t, err)

	profiles, err := st.FacilityProfilesForProduct(ctx, "456")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "PEANUT", profiles[0].AllergenCode)
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, nil, false))
	assert.Equal(t, "no saved assessments\n", buf.String())

	buf.Reset()
	list := []model.Assessment{{
		Identifier:    "123",
		ProductName:   "Choco Wafer",
		UserAllergens: []string{"MILK", "PEANUT"},
		FinalScore:    65,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	require.NoError(t, writeHistory(&buf, list, false))
	out := buf.String()
	assert.Contains(t, out, "IDENTIFIER")
	assert.Contains(t, out, "Choco Wafer")
	assert.Contains(t, out, "MILK,PEANUT")
	assert.Contains(t, out, "65.00")
	assert.Contains(t, out, "high")
}

func TestWriteSnapshot(t *testing.T) {
	snap := &monitoring.Snapshot{
		Total:         3,
		AvgFinalScore: 55.5,
		HighRisk:      1,
		ByLabel:       map[string]int{"very high": 1, "low": 2},
		TopAllergens:  map[string]int{"MILK": 2, "EGGS": 1},
		LookbackHours: 24,
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, snap, false))
	out := buf.String()
	assert.Contains(t, out, "last 24h: 3 assessments, avg score 55.50, 1 high risk")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("MILK")), bytes.Index(buf.Bytes(), []byte("EGGS")))
}
