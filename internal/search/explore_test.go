package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/store"
)

func semAt(id int64, similarity, boost float64) store.SemanticResult {
	return store.SemanticResult{
		Chunk:      store.ChunkRecord{ID: id, FeedbackBoost: boost},
		Similarity: similarity,
	}
}

func TestShouldInjectGates(t *testing.T) {
	inj := NewExplorationInjector()
	results := []*RankedCandidate{candidate(1, "a", "h", 1.0)}

	assert.True(t, inj.ShouldInject(IntentGeneral, 0.8, results))
	assert.True(t, inj.ShouldInject(IntentSummary, 0.6, results))

	assert.False(t, inj.ShouldInject(IntentGeneral, 0.5, results), "unstable query")
	assert.False(t, inj.ShouldInject(IntentDefinition, 0.9, results), "precision intent")
	assert.False(t, inj.ShouldInject(IntentProcedure, 0.9, results), "precision intent")
	assert.False(t, inj.ShouldInject(IntentGeneral, 0.9, nil), "empty results")
}

func TestInjectPicksFirstEligibleBeyondLimit(t *testing.T) {
	// Given three displayed results and a semantic tail with one
	// trusted and one untried candidate
	inj := NewExplorationInjector()
	results := []*RankedCandidate{
		candidate(1, "a", "h", 1.0),
		candidate(2, "b", "h", 0.9),
		candidate(3, "c", "h", 0.8),
	}
	semantic := []store.SemanticResult{
		semAt(1, 0.95, 1.0), semAt(2, 0.9, 1.0), semAt(3, 0.85, 1.0),
		semAt(4, 0.8, 2.0),  // already trusted, skipped
		semAt(5, 0.75, 1.0), // eligible
	}

	// When injecting
	out := inj.Inject(results, semantic, 3, time.Now())

	// Then the untried candidate lands second at 95% of the top score
	require.Len(t, out, 4)
	injected := out[1]
	assert.Equal(t, int64(5), injected.Chunk.ID)
	assert.True(t, injected.Exploratory)
	assert.InDelta(t, 0.95*1.0, injected.Score, 1e-9)
	assert.Equal(t, int64(1), out[0].Chunk.ID)
	assert.Equal(t, int64(2), out[2].Chunk.ID)
}

func TestInjectSimilarityBand(t *testing.T) {
	inj := NewExplorationInjector()
	results := []*RankedCandidate{candidate(1, "a", "h", 1.0)}

	// Tail candidates outside (0.65, 1.0] are never injected.
	low := []store.SemanticResult{semAt(1, 0.95, 1.0), semAt(2, 0.65, 1.0), semAt(3, 0.4, 1.0)}
	out := inj.Inject(results, low, 1, time.Now())
	assert.Len(t, out, 1)
}

func TestInjectSkipsDisplayedCandidates(t *testing.T) {
	// The fused list can contain ids from the semantic tail; those are
	// already visible and must not be injected again.
	inj := NewExplorationInjector()
	results := []*RankedCandidate{
		candidate(9, "a", "h", 1.0),
	}
	semantic := []store.SemanticResult{semAt(1, 0.9, 1.0), semAt(9, 0.8, 1.0)}

	out := inj.Inject(results, semantic, 1, time.Now())

	assert.Len(t, out, 1)
}

func TestInjectNoTailNoChange(t *testing.T) {
	inj := NewExplorationInjector()
	results := []*RankedCandidate{candidate(1, "a", "h", 1.0)}
	semantic := []store.SemanticResult{semAt(1, 0.9, 1.0)}

	out := inj.Inject(results, semantic, 3, time.Now())

	assert.Equal(t, results, out)
}

func TestTrustScoreDecay(t *testing.T) {
	now := time.Now()

	fresh := &store.ChunkRecord{FeedbackBoost: 1.0, CreatedAt: now}
	assert.InDelta(t, 1.0, TrustScore(fresh, now), 0.01)

	halfway := &store.ChunkRecord{FeedbackBoost: 1.0, CreatedAt: now.AddDate(0, 0, -90)}
	assert.InDelta(t, 0.5, TrustScore(halfway, now), 0.01)

	ancient := &store.ChunkRecord{FeedbackBoost: 2.0, CreatedAt: now.AddDate(-2, 0, 0)}
	assert.InDelta(t, 2.0*trustDecayFloor, TrustScore(ancient, now), 0.01)

	// A zero reference time disables decay entirely.
	timeless := &store.ChunkRecord{FeedbackBoost: 1.5, CreatedAt: now.AddDate(0, 0, -90)}
	assert.InDelta(t, 1.5, TrustScore(timeless, time.Time{}), 1e-9)
}
