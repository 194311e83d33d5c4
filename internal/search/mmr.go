package search

import (
	"math"
	"strings"
	"sync"
)

// Diversity tuning.
const (
	mmrLambdaMin        = 0.2
	mmrLambdaMax        = 0.8
	mmrLambdaSlope      = 5.0
	mmrLambdaCenter     = 0.5
	mmrDocPenaltyBase   = 0.15
	mmrHeadingPenalty   = 0.10
	mmrEntropyCeiling   = 1.1
	entropyWarmupAlpha  = 0.3
	entropySettledAlpha = 0.1
	entropyWarmupLimit  = 10
)

// DiversitySelector is a greedy maximal-marginal-relevance pass that
// trades relevance against redundancy. It keeps a session-scoped moving
// average of result-set document entropy: sessions that already surface
// varied documents need less forced diversity.
type DiversitySelector struct {
	mu         sync.Mutex
	queryCount int
	avgEntropy float64
}

// NewDiversitySelector creates a selector with fresh session state.
func NewDiversitySelector() *DiversitySelector {
	return &DiversitySelector{}
}

// Select re-picks up to limit candidates. The global top-1 is always
// kept. Returns the selection and the total penalty charged, for
// telemetry. Fewer than two candidates pass through untouched.
func (d *DiversitySelector) Select(query string, intent Intent, candidates []*RankedCandidate, limit int) ([]*RankedCandidate, float64) {
	if len(candidates) < 2 {
		return candidates, 0
	}

	lambda := d.lambda(query, intent)
	avgEntropy := d.observeEntropy(candidates)

	selected := make([]*RankedCandidate, 0, limit)
	selected = append(selected, candidates[0])
	pool := make([]*RankedCandidate, len(candidates)-1)
	copy(pool, candidates[1:])

	seenDocs := map[string]bool{candidates[0].Chunk.DocID: true}
	seenHeadings := map[string]bool{candidates[0].Chunk.HeadingPath: true}

	var totalPenalty float64
	for len(selected) < limit && len(pool) > 0 {
		bestIdx := -1
		bestObjective := math.Inf(-1)
		var bestPenalty float64

		for i, c := range pool {
			var penalty float64
			if seenDocs[c.Chunk.DocID] {
				penalty += mmrDocPenaltyBase * (mmrEntropyCeiling - avgEntropy)
			}
			if seenHeadings[c.Chunk.HeadingPath] {
				penalty += mmrHeadingPenalty
			}
			objective := lambda*c.Score - (1-lambda)*penalty
			if objective > bestObjective {
				bestObjective = objective
				bestIdx = i
				bestPenalty = penalty
			}
		}

		pick := pool[bestIdx]
		selected = append(selected, pick)
		totalPenalty += bestPenalty
		seenDocs[pick.Chunk.DocID] = true
		seenHeadings[pick.Chunk.HeadingPath] = true
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return selected, totalPenalty
}

// lambda maps query complexity to the relevance/diversity trade-off.
// Complex queries lean toward relevance, simple ones toward variety.
func (d *DiversitySelector) lambda(query string, intent Intent) float64 {
	complexity := float64(len(strings.Fields(query))) / 10.0
	if intent == IntentSummary || intent == IntentProcedure {
		complexity += 0.5
	}
	lambda := 1.0 / (1.0 + math.Exp(-mmrLambdaSlope*(complexity-mmrLambdaCenter)))
	return math.Min(mmrLambdaMax, math.Max(mmrLambdaMin, lambda))
}

// observeEntropy folds the result set's document-id Shannon entropy
// into the session average and returns the updated value. Early in a
// session the average tracks observations quickly, then settles.
func (d *DiversitySelector) observeEntropy(candidates []*RankedCandidate) float64 {
	entropy := docEntropy(candidates)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queryCount == 0 {
		d.avgEntropy = entropy
	} else {
		alpha := entropyWarmupAlpha
		if d.queryCount >= entropyWarmupLimit {
			alpha = entropySettledAlpha
		}
		d.avgEntropy = (1-alpha)*d.avgEntropy + alpha*entropy
	}
	d.queryCount++
	return d.avgEntropy
}

// docEntropy is the Shannon entropy of the document-id distribution.
func docEntropy(candidates []*RankedCandidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		counts[c.Chunk.DocID]++
	}
	n := float64(len(candidates))
	var entropy float64
	for _, count := range counts {
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
