package search

import (
	"sort"

	"github.com/carrelhq/carrel/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter, validated
// across retrieval domains.
const DefaultRRFConstant = 60

// Intent boost values applied during fusion.
const (
	boostDefinitionSemantic = 0.5
	boostDefinitionKeyword  = 0.3
	boostDefinitionNested   = 0.1
	boostSummarySemantic    = 0.5
	boostSummaryKeyword     = 0.3
	boostSummaryTopHeading  = 0.2
	boostProcedureList      = 0.3
	boostExample            = 0.4
)

// Fusion combines the semantic and lexical candidate lists using
// reciprocal rank fusion with intent-aware boosts.
//
// score(d) = w_semantic/(K+rank_sem) + w_keyword/(K+rank_kw)
//
// using only the terms for lists the candidate actually appears in.
type Fusion struct {
	K int
}

// NewFusion creates a fusion instance. k <= 0 falls back to the
// default constant.
func NewFusion(k int) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fusion{K: k}
}

// Fuse merges both lists by chunk id, scores, boosts, sorts descending
// and truncates to limit. Identical inputs always produce an identical
// ranking.
func (f *Fusion) Fuse(intent Intent, semantic []store.SemanticResult, lexical []store.LexicalResult, limit int) []*RankedCandidate {
	if len(semantic) == 0 && len(lexical) == 0 {
		return []*RankedCandidate{}
	}

	merged := make(map[int64]*RankedCandidate, len(semantic)+len(lexical))

	weights := intent.FusionWeights()

	for rank, r := range semantic {
		c := getOrCreate(merged, r.Chunk)
		c.Similarity = r.Similarity
		c.SemanticRank = rank + 1
		c.Score += weights.Semantic/float64(f.K+rank+1) +
			semanticBoost(intent, c.Chunk) + headingBoost(intent, c.Chunk)
	}

	for rank, r := range lexical {
		c := getOrCreate(merged, r.Chunk)
		c.KeywordScore = r.Score
		c.KeywordRank = rank + 1
		c.Score += weights.Keyword/float64(f.K+rank+1) + keywordBoost(intent, c.Chunk)
	}

	results := make([]*RankedCandidate, 0, len(merged))
	for _, c := range merged {
		results = append(results, c)
	}
	SortCandidates(results)

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

func getOrCreate(m map[int64]*RankedCandidate, chunk store.ChunkRecord) *RankedCandidate {
	if c, ok := m[chunk.ID]; ok {
		return c
	}
	c := &RankedCandidate{Chunk: &chunk, Trust: chunk.FeedbackBoost}
	m[chunk.ID] = c
	return c
}

// semanticBoost is the intent bonus for membership in the semantic
// list.
func semanticBoost(intent Intent, chunk *store.ChunkRecord) float64 {
	switch {
	case intent == IntentDefinition && chunk.ChunkType == store.ChunkTypeDefinition:
		return boostDefinitionSemantic
	case intent == IntentSummary && chunk.ChunkType == store.ChunkTypeSummary:
		return boostSummarySemantic
	case intent == IntentProcedure && chunk.ChunkType == store.ChunkTypeList:
		return boostProcedureList
	case intent == IntentExample && chunk.ChunkType == store.ChunkTypeExample:
		return boostExample
	}
	return 0
}

// keywordBoost is the intent bonus for membership in the lexical list.
// Only definitions and summaries earn it, at a lower value than the
// semantic side; procedural and example chunks are boosted from the
// semantic list alone.
func keywordBoost(intent Intent, chunk *store.ChunkRecord) float64 {
	switch {
	case intent == IntentDefinition && chunk.ChunkType == store.ChunkTypeDefinition:
		return boostDefinitionKeyword
	case intent == IntentSummary && chunk.ChunkType == store.ChunkTypeSummary:
		return boostSummaryKeyword
	}
	return 0
}

// headingBoost rewards structural position: top-level summaries and
// nested definitions. Granted with semantic-list membership only.
func headingBoost(intent Intent, chunk *store.ChunkRecord) float64 {
	var b float64
	if intent == IntentSummary && chunk.ChunkType == store.ChunkTypeSummary && chunk.HeadingLevel == 1 {
		b += boostSummaryTopHeading
	}
	if intent == IntentDefinition && chunk.HeadingLevel > 1 {
		b += boostDefinitionNested
	}
	return b
}

// SortCandidates orders by score descending with deterministic
// tie-breaking: in-both-lists first, then higher similarity, then
// smaller chunk id.
func SortCandidates(results []*RankedCandidate) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.inBothLists() != b.inBothLists() {
			return a.inBothLists()
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
