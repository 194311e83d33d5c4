package search

import (
	"sync"
	"time"
)

// Latency gate defaults, in milliseconds.
const (
	DefaultSlowQueryMs     = 1500
	DefaultDegradedQueryMs = 4000
	latencyEMAOld          = 0.8
	latencyEMANew          = 0.2
)

// LoadLevel is the gate's verdict for the next query.
type LoadLevel int

const (
	// LoadNormal runs the full pipeline.
	LoadNormal LoadLevel = iota
	// LoadSlow shrinks the retrieval depth multiplier.
	LoadSlow
	// LoadDegraded bypasses vector search entirely.
	LoadDegraded
)

// LatencyGate tracks an exponential moving average of total query
// latency and trades completeness for availability when the engine
// falls behind.
type LatencyGate struct {
	mu         sync.Mutex
	emaMs      float64
	seeded     bool
	slowMs     float64
	degradedMs float64
}

// NewLatencyGate creates a gate. Non-positive thresholds fall back to
// the defaults; a degraded threshold at or below slow is lifted above
// it.
func NewLatencyGate(slowMs, degradedMs float64) *LatencyGate {
	if slowMs <= 0 {
		slowMs = DefaultSlowQueryMs
	}
	if degradedMs <= slowMs {
		degradedMs = DefaultDegradedQueryMs
	}
	return &LatencyGate{slowMs: slowMs, degradedMs: degradedMs}
}

// Observe folds one completed query's latency into the average.
func (g *LatencyGate) Observe(d time.Duration) {
	ms := float64(d.Milliseconds())
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded {
		g.emaMs = ms
		g.seeded = true
		return
	}
	g.emaMs = latencyEMAOld*g.emaMs + latencyEMANew*ms
}

// Level is the verdict for the next query.
func (g *LatencyGate) Level() LoadLevel {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.emaMs > g.degradedMs:
		return LoadDegraded
	case g.emaMs > g.slowMs:
		return LoadSlow
	default:
		return LoadNormal
	}
}

// AverageMs is the current latency estimate.
func (g *LatencyGate) AverageMs() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emaMs
}
