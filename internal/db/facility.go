package db

import (
	"context"

	"github.com/sells-group/allergen-risk/internal/model"
)

// FacilityProfileTable holds per-facility allergen counts.
const FacilityProfileTable = "facility_allergen_profile"

var facilityProfileColumns = []string{"facility_id", "allergen_code", "product_count_with_allergen", "total_products_at_facility"}

// UpsertFacilityProfiles bulk-loads profiles, replacing the counts of any
// (facility_id, allergen_code) pair already present.
func UpsertFacilityProfiles(ctx context.Context, pool Pool, profiles []model.FacilityAllergenProfile) (int64, error) {
	return BulkUpsert(ctx, pool, UpsertConfig{
		Table:        FacilityProfileTable,
		Columns:      facilityProfileColumns,
		ConflictKeys: []string{"facility_id", "allergen_code"},
	}, FacilityProfileRows(profiles))
}

// FacilityProfileRows converts profiles to COPY rows in column order.
func FacilityProfileRows(profiles []model.FacilityAllergenProfile) [][]any {
	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []any{p.FacilityID, p.AllergenCode, p.ProductCountWithAllergen, p.TotalProductsAtFacility})
	}
	return rows
}
