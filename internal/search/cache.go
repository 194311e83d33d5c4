package search

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/carrelhq/carrel/internal/store"
)

// Cache sizing defaults.
const (
	DefaultExactCacheSize    = 100
	DefaultSemanticCacheSize = 512
)

// semanticCacheEntry pairs a query embedding with its result list.
type semanticCacheEntry struct {
	embedding []float32
	results   []*RankedCandidate
	addedAt   time.Time
}

// ResultCache is the two-tier result cache. Tier one maps the
// canonicalized query string to results with LRU eviction. Tier two
// matches the query embedding against stored embeddings by cosine
// similarity, serving paraphrases of cached queries; it evicts oldest
// first. One mutex guards both tiers, matching the lookup-then-insert
// access pattern.
type ResultCache struct {
	mu       sync.Mutex
	exact    *lru.Cache[string, []*RankedCandidate]
	semantic []semanticCacheEntry
	maxSem   int

	hits   int
	misses int
}

// NewResultCache creates a cache. Non-positive sizes fall back to the
// defaults.
func NewResultCache(exactSize, semanticSize int) *ResultCache {
	if exactSize <= 0 {
		exactSize = DefaultExactCacheSize
	}
	if semanticSize <= 0 {
		semanticSize = DefaultSemanticCacheSize
	}
	exact, _ := lru.New[string, []*RankedCandidate](exactSize)
	return &ResultCache{
		exact:  exact,
		maxSem: semanticSize,
	}
}

// CanonicalQuery normalizes a query for exact-match caching.
func CanonicalQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Lookup checks the exact tier, then scans the semantic tier for the
// first stored embedding whose similarity to the query embedding
// exceeds threshold. Returns a copy of the cached list.
func (c *ResultCache) Lookup(query string, embedding []float32, threshold float64) ([]*RankedCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if results, ok := c.exact.Get(CanonicalQuery(query)); ok {
		c.hits++
		return copyResults(results), true
	}

	if len(embedding) > 0 {
		for _, entry := range c.semantic {
			if store.CosineSimilarity(embedding, entry.embedding) > threshold {
				c.hits++
				return copyResults(entry.results), true
			}
		}
	}

	c.misses++
	return nil, false
}

// Insert stores the results in both tiers.
func (c *ResultCache) Insert(query string, embedding []float32, results []*RankedCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.exact.Add(CanonicalQuery(query), copyResults(results))

	if len(embedding) == 0 {
		return
	}
	if len(c.semantic) >= c.maxSem {
		c.semantic = c.semantic[1:]
	}
	c.semantic = append(c.semantic, semanticCacheEntry{
		embedding: embedding,
		results:   copyResults(results),
		addedAt:   time.Now(),
	})
}

// InvalidateAll drops both tiers. Called after any index mutation so a
// stale ranking can never be served.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exact.Purge()
	c.semantic = nil
}

// Stats reports hit and miss counts since creation.
func (c *ResultCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func copyResults(results []*RankedCandidate) []*RankedCandidate {
	out := make([]*RankedCandidate, len(results))
	copy(out, results)
	return out
}
