package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "facility_allergen_profile",
		Columns:      []string{"facility_id", "allergen_code"},
		ConflictKeys: []string{"facility_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "facility_allergen_profile",
		ConflictKeys: []string{"facility_id"},
	}, [][]any{{"F1", "MILK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "facility_allergen_profile",
		Columns: []string{"facility_id", "allergen_code"},
	}, [][]any{{"F1", "MILK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpsertFacilityProfiles(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_facility_allergen_profile"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_facility_allergen_profile"}, facilityProfileColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "facility_allergen_profile" .* ON CONFLICT \("facility_id", "allergen_code"\) DO UPDATE SET "product_count_with_allergen" = EXCLUDED."product_count_with_allergen", "total_products_at_facility" = EXCLUDED."total_products_at_facility"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := UpsertFacilityProfiles(context.Background(), mock, []model.FacilityAllergenProfile{
		{FacilityID: "F1", AllergenCode: "MILK", ProductCountWithAllergen: 2, TotalProductsAtFacility: 10},
		{FacilityID: "F1", AllergenCode: "PEANUT", ProductCountWithAllergen: 0, TotalProductsAtFacility: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_facility_allergen_profile"}, facilityProfileColumns).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := UpsertFacilityProfiles(context.Background(), mock, []model.FacilityAllergenProfile{
		{FacilityID: "F1", AllergenCode: "MILK", ProductCountWithAllergen: 2, TotalProductsAtFacility: 10},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for facility_allergen_profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityProfileRows(t *testing.T) {
	rows := FacilityProfileRows([]model.FacilityAllergenProfile{
		{FacilityID: "F9", AllergenCode: "EGG", ProductCountWithAllergen: 1, TotalProductsAtFacility: 3},
	})
	assert.Equal(t, [][]any{{"F9", "EGG", 1, 3}}, rows)
	assert.Empty(t, FacilityProfileRows(nil))
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"allergen.facility_allergen_profile", `"allergen"."facility_allergen_profile"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, identifier(tt.input).Sanitize())
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"facility_id", "allergen_code"`, quoteAndJoin([]string{"facility_id", "allergen_code"}))
}
