// Package search is the hybrid retrieval pipeline: intent-aware
// reciprocal rank fusion of semantic and lexical candidates, stability
// regulation, optional diversity and exploration passes, and a two-tier
// result cache.
package search

import (
	"github.com/carrelhq/carrel/internal/store"
)

// Default option values.
const (
	DefaultLimit             = 10
	DefaultSemanticThreshold = 0.95
)

// Weights splits fusion credit between the semantic and keyword lists.
type Weights struct {
	Semantic float64
	Keyword  float64
}

// Options controls a single query.
type Options struct {
	// Limit is the number of results to return (default 10).
	Limit int

	// EnableRerank refines the final ordering with the cross-encoder.
	EnableRerank bool

	// EnableDiversity runs the MMR selection pass. Experimental.
	EnableDiversity bool

	// EnableExploration allows injection of an under-exposed candidate.
	// Experimental.
	EnableExploration bool

	// SemanticCacheThreshold overrides the similarity needed for a
	// tier-two cache hit (default 0.95).
	SemanticCacheThreshold float64

	// Deterministic disables time-dependent inputs for reproducible
	// benchmarking.
	Deterministic bool
}

// DefaultOptions returns the standard query options.
func DefaultOptions() Options {
	return Options{
		Limit:                  DefaultLimit,
		SemanticCacheThreshold: DefaultSemanticThreshold,
	}
}

func (o *Options) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.SemanticCacheThreshold <= 0 || o.SemanticCacheThreshold > 1 {
		o.SemanticCacheThreshold = DefaultSemanticThreshold
	}
}

// RankedCandidate is one result of a query. Scores are comparable only
// within the result set they came from.
type RankedCandidate struct {
	// Chunk is the underlying stored record.
	Chunk *store.ChunkRecord

	// Score is the fused (and possibly regulated, diversified or
	// reranked) relevance score.
	Score float64

	// Similarity is the raw cosine similarity from the semantic list,
	// zero when the candidate only matched lexically.
	Similarity float64

	// KeywordScore is the lexical provider's relevance score.
	KeywordScore float64

	// SemanticRank and KeywordRank are 1-indexed positions in the
	// source lists, zero when absent from that list.
	SemanticRank int
	KeywordRank  int

	// RerankRank is the 1-indexed cross-encoder position, zero when
	// reranking did not run.
	RerankRank int

	// Trust is the feedback boost adjusted for recency.
	Trust float64

	// Exploratory marks an injected under-exposed candidate; feedback
	// against it is quarantined.
	Exploratory bool
}

// inBothLists reports membership in both source lists, used for
// deterministic tie-breaking.
func (c *RankedCandidate) inBothLists() bool {
	return c.SemanticRank > 0 && c.KeywordRank > 0
}
