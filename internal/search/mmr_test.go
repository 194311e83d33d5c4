package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/store"
)

func candidate(id int64, docID, heading string, score float64) *RankedCandidate {
	return &RankedCandidate{
		Chunk: &store.ChunkRecord{ID: id, DocID: docID, HeadingPath: heading},
		Score: score,
	}
}

func TestSelectKeepsGlobalTop(t *testing.T) {
	d := NewDiversitySelector()
	candidates := []*RankedCandidate{
		candidate(1, "a", "h1", 1.0),
		candidate(2, "a", "h2", 0.9),
		candidate(3, "b", "h3", 0.8),
	}

	selected, _ := d.Select("short query", IntentGeneral, candidates, 3)

	require.NotEmpty(t, selected)
	assert.Equal(t, int64(1), selected[0].Chunk.ID)
}

func TestSelectPenalizesRepeatedDocument(t *testing.T) {
	// Given a near-tied runner-up from the already-selected document
	// and a slightly weaker candidate from a fresh one
	d := NewDiversitySelector()
	candidates := []*RankedCandidate{
		candidate(1, "a", "h1", 1.0),
		candidate(2, "a", "h2", 0.9),
		candidate(3, "b", "h3", 0.88),
	}

	// When selecting with a short (diversity-leaning) query
	selected, penalty := d.Select("q", IntentGeneral, candidates, 3)

	// Then the fresh document jumps ahead and a penalty was charged
	require.Len(t, selected, 3)
	assert.Equal(t, int64(3), selected[1].Chunk.ID)
	assert.Equal(t, int64(2), selected[2].Chunk.ID)
	assert.Greater(t, penalty, 0.0)
}

func TestSelectPenalizesRepeatedHeadingPath(t *testing.T) {
	d := NewDiversitySelector()
	candidates := []*RankedCandidate{
		candidate(1, "a", "ch1/intro", 1.0),
		candidate(2, "b", "ch1/intro", 0.9),
		candidate(3, "c", "ch2/body", 0.89),
	}

	selected, _ := d.Select("q", IntentGeneral, candidates, 3)

	require.Len(t, selected, 3)
	assert.Equal(t, int64(3), selected[1].Chunk.ID)
}

func TestSelectFewerThanTwoPassesThrough(t *testing.T) {
	d := NewDiversitySelector()
	single := []*RankedCandidate{candidate(1, "a", "h", 1.0)}

	selected, penalty := d.Select("q", IntentGeneral, single, 5)

	assert.Equal(t, single, selected)
	assert.Zero(t, penalty)
}

func TestSelectRespectsLimit(t *testing.T) {
	d := NewDiversitySelector()
	var candidates []*RankedCandidate
	for i := int64(1); i <= 6; i++ {
		candidates = append(candidates, candidate(i, "a", "h", 1.0-float64(i)*0.1))
	}

	selected, _ := d.Select("q", IntentGeneral, candidates, 4)

	assert.Len(t, selected, 4)
}

func TestLambdaBounds(t *testing.T) {
	d := NewDiversitySelector()

	// One-word query sits at the diversity end of the clamp.
	assert.InDelta(t, mmrLambdaMin, d.lambda("q", IntentGeneral), 1e-9)

	// A long Summary query saturates at the relevance end.
	long := "please give me a thorough chapter overview of the whole thermodynamics section"
	assert.InDelta(t, mmrLambdaMax, d.lambda(long, IntentSummary), 1e-9)

	// The Summary/Procedure complexity bump moves lambda up.
	assert.Greater(t, d.lambda("entropy overview", IntentSummary), d.lambda("entropy overview", IntentGeneral))
}

func TestDocEntropy(t *testing.T) {
	uniform := []*RankedCandidate{
		candidate(1, "a", "", 1), candidate(2, "b", "", 1),
		candidate(3, "c", "", 1), candidate(4, "d", "", 1),
	}
	assert.InDelta(t, 2.0, docEntropy(uniform), 1e-9)

	single := []*RankedCandidate{candidate(1, "a", "", 1), candidate(2, "a", "", 1)}
	assert.InDelta(t, 0.0, docEntropy(single), 1e-9)

	assert.Zero(t, docEntropy(nil))
}

func TestEntropySessionAverageSettles(t *testing.T) {
	// Given a session past its warmup window
	d := NewDiversitySelector()
	varied := []*RankedCandidate{
		candidate(1, "a", "", 1), candidate(2, "b", "", 1),
		candidate(3, "c", "", 1), candidate(4, "d", "", 1),
	}
	for i := 0; i < entropyWarmupLimit; i++ {
		d.observeEntropy(varied)
	}
	settled := d.avgEntropy

	// When a zero-entropy result set arrives
	after := d.observeEntropy([]*RankedCandidate{candidate(5, "a", "", 1), candidate(6, "a", "", 1)})

	// Then the average moves by the settled factor only
	assert.InDelta(t, (1-entropySettledAlpha)*settled, after, 1e-9)
}
