package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/store"
)

// Snapshot summarizes saved assessments over a lookback window.
type Snapshot struct {
	Total         int            `json:"total"`
	AvgFinalScore float64        `json:"avg_final_score"`
	HighRisk      int            `json:"high_risk"`
	ByLabel       map[string]int `json:"by_label"`
	TopAllergens  map[string]int `json:"top_allergens"`
	LookbackHours int            `json:"lookback_hours"`
	CollectedAt   time.Time      `json:"collected_at"`
}

// AssessmentLister is the store method the collector needs.
type AssessmentLister interface {
	ListAssessments(ctx context.Context, filter store.AssessmentFilter) ([]model.Assessment, error)
}

// Collector builds snapshots from assessment history.
type Collector struct {
	store AssessmentLister
	now   func() time.Time
}

// NewCollector creates a collector over st.
func NewCollector(st AssessmentLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect summarizes assessments created in the last lookbackHours. High
// risk means a final score of 60 or more. TopAllergens counts, per code,
// how often it was the worst user allergen.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.now().UTC()
	snap := &Snapshot{
		ByLabel:       map[string]int{},
		TopAllergens:  map[string]int{},
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	list, err := c.store.ListAssessments(ctx, store.AssessmentFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list assessments")
	}

	var total float64
	for _, a := range list {
		snap.Total++
		total += a.FinalScore
		snap.ByLabel[risk.Label(a.FinalScore)]++
		if a.FinalScore >= 60 {
			snap.HighRisk++
		}
		if code, score, ok := a.Result.Worst(); ok && score > 0 {
			snap.TopAllergens[code]++
		}
	}
	if snap.Total > 0 {
		snap.AvgFinalScore = risk.Round2(total / float64(snap.Total))
	}
	return snap, nil
}
