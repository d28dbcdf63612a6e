package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/store"
)

type fakeLister struct {
	list   []model.Assessment
	err    error
	filter store.AssessmentFilter
}

func (f *fakeLister) ListAssessments(_ context.Context, filter store.AssessmentFilter) ([]model.Assessment, error) {
	f.filter = filter
	return f.list, f.err
}

func assessment(score float64, worst string) model.Assessment {
	return model.Assessment{
		FinalScore: score,
		Result: model.RiskResult{
			PerAllergen:   map[string]model.AllergenRisk{worst: {Score: score}},
			UserAllergens: []string{worst},
			FinalScore:    score,
		},
	}
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{list: []model.Assessment{
		assessment(100, "MILK"),
		assessment(65, "MILK"),
		assessment(30, "GLUTEN"),
		assessment(0, "EGG"),
	}}
	c := NewCollector(lister)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 48)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-48*time.Hour), lister.filter.Since)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 48.75, snap.AvgFinalScore)
	assert.Equal(t, 2, snap.HighRisk)
	assert.Equal(t, map[string]int{"very high": 1, "high": 1, "low": 1, "very low": 1}, snap.ByLabel)
	assert.Equal(t, map[string]int{"MILK": 2, "GLUTEN": 1}, snap.TopAllergens)
}

func TestCollector_DefaultsAndErrors(t *testing.T) {
	snap, err := NewCollector(&fakeLister{}).Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Zero(t, snap.AvgFinalScore)

	_, err = NewCollector(&fakeLister{err: errors.New("db down")}).Collect(context.Background(), 1)
	assert.ErrorContains(t, err, "monitoring: list assessments")
}
