package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyGateSeedsOnFirstObservation(t *testing.T) {
	g := NewLatencyGate(1500, 4000)

	g.Observe(200 * time.Millisecond)

	assert.InDelta(t, 200, g.AverageMs(), 1e-9)
}

func TestLatencyGateBlendsEMA(t *testing.T) {
	g := NewLatencyGate(1500, 4000)
	g.Observe(1000 * time.Millisecond)

	g.Observe(2000 * time.Millisecond)

	assert.InDelta(t, 0.8*1000+0.2*2000, g.AverageMs(), 1e-9)
}

func TestLatencyGateLevels(t *testing.T) {
	g := NewLatencyGate(1500, 4000)
	assert.Equal(t, LoadNormal, g.Level())

	g.Observe(2 * time.Second)
	assert.Equal(t, LoadSlow, g.Level())

	g.Observe(30 * time.Second)
	assert.Equal(t, LoadDegraded, g.Level())
}

func TestLatencyGateRecovers(t *testing.T) {
	// A degraded gate drifts back to normal as fast queries come in.
	g := NewLatencyGate(1500, 4000)
	g.Observe(10 * time.Second)
	assert.Equal(t, LoadDegraded, g.Level())

	for i := 0; i < 20; i++ {
		g.Observe(100 * time.Millisecond)
	}
	assert.Equal(t, LoadNormal, g.Level())
}

func TestLatencyGateThresholdFallbacks(t *testing.T) {
	g := NewLatencyGate(0, 0)

	g.Observe(2 * time.Second)
	assert.Equal(t, LoadSlow, g.Level())

	g.Observe(60 * time.Second)
	assert.Equal(t, LoadDegraded, g.Level())
}
