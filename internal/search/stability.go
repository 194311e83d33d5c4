package search

import (
	"context"

	"github.com/carrelhq/carrel/internal/telemetry"
)

// Stability tuning.
const (
	stabilityDeltaScale     = 5.0
	stabilityReinforcement  = 0.1
	stabilityHistoryEntries = telemetry.DefaultDeltaWindow
)

// DeltaHistory feeds prior rank volatility to the regulator.
type DeltaHistory interface {
	RecentDeltas(ctx context.Context, query string, limit int) ([]float64, error)
}

// StabilityRegulator reinforces the current ordering of queries whose
// top rank has historically held still. Volatile queries are left
// alone.
type StabilityRegulator struct {
	history DeltaHistory
}

// NewStabilityRegulator creates a regulator over the given history.
// A nil history reads as a perfectly stable past.
func NewStabilityRegulator(history DeltaHistory) *StabilityRegulator {
	return &StabilityRegulator{history: history}
}

// Stability returns the query's rank stability in [0, 1] from the
// average absolute rank delta of recent observations. No history means
// nothing has ever moved.
func (r *StabilityRegulator) Stability(ctx context.Context, query string) float64 {
	if r.history == nil {
		return 1.0
	}
	deltas, err := r.history.RecentDeltas(ctx, query, stabilityHistoryEntries)
	if err != nil || len(deltas) == 0 {
		return 1.0
	}

	var sum float64
	for _, d := range deltas {
		if d < 0 {
			d = -d
		}
		sum += d
	}
	avg := sum / float64(len(deltas))

	s := 1.0 - avg/stabilityDeltaScale
	if s < 0 {
		s = 0
	}
	return s
}

// Apply adds the intent-weighted stability reinforcement to every
// candidate and re-sorts.
func (r *StabilityRegulator) Apply(results []*RankedCandidate, intent Intent, stability float64) {
	if len(results) == 0 {
		return
	}
	bonus := stability * intent.StabilityMultiplier() * stabilityReinforcement
	for _, c := range results {
		c.Score += bonus
	}
	SortCandidates(results)
}
