package search

import (
	"time"

	"github.com/carrelhq/carrel/internal/store"
)

// Exploration tuning.
const (
	exploreMinStability   = 0.6
	exploreMinSimilarity  = 0.65
	exploreMaxTrust       = 1.0
	exploreScoreFraction  = 0.95
	explorePosition       = 1
	trustDecayFloor       = 0.25
	trustDecayHorizonDays = 180
)

// ExplorationInjector surfaces one under-exposed candidate per query
// for active learning. Injection only happens when the query's ordering
// is stable enough to absorb the perturbation and the intent tolerates
// it.
type ExplorationInjector struct{}

// NewExplorationInjector creates an injector.
func NewExplorationInjector() *ExplorationInjector {
	return &ExplorationInjector{}
}

// ShouldInject evaluates the gates.
func (e *ExplorationInjector) ShouldInject(intent Intent, stability float64, results []*RankedCandidate) bool {
	if len(results) == 0 {
		return false
	}
	if stability < exploreMinStability {
		return false
	}
	if intent == IntentDefinition || intent == IntentProcedure {
		return false
	}
	return true
}

// Inject scans the semantic list beyond the display limit for the
// first candidate without positive feedback and with decent raw
// similarity, flags it exploratory, prices it just under the current
// top score and slots it in second. The result list may exceed limit
// by one; the caller truncates.
func (e *ExplorationInjector) Inject(results []*RankedCandidate, semantic []store.SemanticResult, limit int, now time.Time) []*RankedCandidate {
	if len(results) == 0 || len(semantic) <= limit {
		return results
	}

	shown := make(map[int64]bool, len(results))
	for _, c := range results {
		shown[c.Chunk.ID] = true
	}

	for _, r := range semantic[limit:] {
		if shown[r.Chunk.ID] {
			continue
		}
		trust := TrustScore(&r.Chunk, now)
		if trust > exploreMaxTrust {
			continue
		}
		if r.Similarity <= exploreMinSimilarity || r.Similarity > 1.0 {
			continue
		}

		chunk := r.Chunk
		candidate := &RankedCandidate{
			Chunk:       &chunk,
			Score:       results[0].Score * exploreScoreFraction,
			Similarity:  r.Similarity,
			Trust:       trust,
			Exploratory: true,
		}

		pos := explorePosition
		if pos > len(results) {
			pos = len(results)
		}
		results = append(results, nil)
		copy(results[pos+1:], results[pos:])
		results[pos] = candidate
		return results
	}
	return results
}

// TrustScore is the chunk's feedback boost decayed by age. A chunk
// that has never earned positive feedback stays at or below 1.0.
func TrustScore(chunk *store.ChunkRecord, now time.Time) float64 {
	decay := 1.0
	if !chunk.CreatedAt.IsZero() && now.After(chunk.CreatedAt) {
		ageDays := now.Sub(chunk.CreatedAt).Hours() / 24
		decay = 1.0 - ageDays/trustDecayHorizonDays
		if decay < trustDecayFloor {
			decay = trustDecayFloor
		}
	}
	return chunk.FeedbackBoost * decay
}
