package rerank

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStateStore is an in-memory StateStore for calibration persistence.
type fakeStateStore struct {
	values map[string]string
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{values: make(map[string]string)}
}

func (s *fakeStateStore) GetState(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *fakeStateStore) SetState(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

// seedCalibrator installs known rolling stats through the persistence
// path.
func seedCalibrator(t *testing.T, c *Calibrator, stats Stats) {
	t.Helper()
	store := newFakeStateStore()
	seeded := NewCalibrator(c.cfg)
	seeded.stats = stats
	require.NoError(t, seeded.Save(context.Background(), store, "seed"))
	require.NoError(t, c.Load(context.Background(), store, "seed"))
}

func TestCalibrateNormalizesAgainstRunningStats(t *testing.T) {
	// Given a calibrator with running mean 50 and stddev 20
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 50, StdDev: 20, Count: 2})

	// When a spread batch is calibrated
	scores, anomaly := c.Calibrate([]float64{10, 50, 90})

	// Then scores map through z in {-2, 0, 2}
	require.False(t, anomaly)
	require.Len(t, scores, 3)
	assert.InDelta(t, sigmoid(-2), scores[0].Score, 1e-9)
	assert.InDelta(t, 0.5, scores[1].Score, 1e-9)
	assert.InDelta(t, sigmoid(2), scores[2].Score, 1e-9)
	assert.Less(t, scores[0].Score, scores[1].Score)
	assert.Less(t, scores[1].Score, scores[2].Score)
}

func TestCalibrateSeedsFromFirstBatch(t *testing.T) {
	// Given a fresh calibrator
	c := NewCalibrator(DefaultCalibrationConfig())

	// When the first batch arrives
	scores, anomaly := c.Calibrate([]float64{0.2, 0.4, 0.9})

	// Then the rolling stats adopt the batch statistics
	require.False(t, anomaly)
	require.Len(t, scores, 3)
	stats := c.Stats()
	assert.InDelta(t, 0.5, stats.Mean, 1e-9)
	assert.Equal(t, 1, stats.Count)
	// Batch mean normalizes to the sigmoid midpoint.
	assert.InDelta(t, 0.5, scores[1].Score, 0.2)
}

func TestCalibrateBlendsSubsequentBatches(t *testing.T) {
	// Given a calibrator with absorbed history
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 0.5, StdDev: 0.1, Count: 3})

	// When a nearby batch is calibrated
	_, anomaly := c.Calibrate([]float64{0.6, 0.7, 0.8})
	require.False(t, anomaly)

	// Then the mean moves a fraction alpha toward the batch mean
	stats := c.Stats()
	assert.InDelta(t, 0.85*0.5+0.15*0.7, stats.Mean, 1e-9)
	assert.Equal(t, 4, stats.Count)
}

func TestCalibrateDriftForcesReseed(t *testing.T) {
	// Given a mature calibrator far from the incoming distribution
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 0.5, StdDev: 0.05, Count: 6})

	// When a batch arrives with mean shifted beyond the drift threshold
	scores, anomaly := c.Calibrate([]float64{0.9, 0.95, 1.0})

	// Then the estimate re-seeds from the batch instead of blending
	require.False(t, anomaly)
	require.Len(t, scores, 3)
	stats := c.Stats()
	assert.InDelta(t, 0.95, stats.Mean, 1e-9)
	assert.Equal(t, 1, stats.Count)
	for _, s := range scores {
		assert.False(t, s.Rejected)
	}
}

func TestCalibrateDegenerateBatchPassesThrough(t *testing.T) {
	// Given a calibrator with existing state
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 0.3, StdDev: 0.1, Count: 2})
	before := c.Stats()

	// When every score sits at the scale midpoint
	scores, anomaly := c.Calibrate([]float64{0.5, 0.501, 0.499})

	// Then the batch is flagged and passed through raw, state untouched
	assert.True(t, anomaly)
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.5, scores[0].Score, 1e-9)
	assert.InDelta(t, 0.501, scores[1].Score, 1e-9)
	assert.Equal(t, before, c.Stats())
	assert.Equal(t, 1, c.Anomalies())
}

func TestCalibrateRejectsOutliers(t *testing.T) {
	// Given a tight running distribution
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 0.0, StdDev: 0.1, Count: 2})

	// When one score lies many sigmas out
	scores, anomaly := c.Calibrate([]float64{0.0, 0.05, 1.0})

	// Then it is rejected and the rest survive
	require.False(t, anomaly)
	require.Len(t, scores, 3)
	assert.False(t, scores[0].Rejected)
	assert.False(t, scores[1].Rejected)
	assert.True(t, scores[2].Rejected)
}

func TestCalibrateClampsExtremeZ(t *testing.T) {
	// Given a tight running distribution
	c := NewCalibrator(DefaultCalibrationConfig())
	seedCalibrator(t, c, Stats{Mean: 0.0, StdDev: 0.1, Count: 2})

	// When a score sits between the clamp and rejection bounds
	scores, _ := c.Calibrate([]float64{0.0, 0.4})

	// Then its z is clamped before the sigmoid
	require.Len(t, scores, 2)
	assert.False(t, scores[1].Rejected)
	assert.InDelta(t, sigmoid(3), scores[1].Score, 1e-9)
}

func TestCalibrateEmptyBatch(t *testing.T) {
	c := NewCalibrator(DefaultCalibrationConfig())

	scores, anomaly := c.Calibrate(nil)

	assert.Nil(t, scores)
	assert.False(t, anomaly)
	assert.Equal(t, 0, c.Stats().Count)
}

func TestCalibratorStateRoundTrip(t *testing.T) {
	// Given a calibrator with absorbed batches
	ctx := context.Background()
	store := newFakeStateStore()
	c := NewCalibrator(DefaultCalibrationConfig())
	_, _ = c.Calibrate([]float64{0.2, 0.5, 0.8})
	_, _ = c.Calibrate([]float64{0.3, 0.6, 0.9})

	// When its state is saved and restored into a fresh calibrator
	require.NoError(t, c.Save(ctx, store, "bge-reranker-base"))
	restored := NewCalibrator(DefaultCalibrationConfig())
	require.NoError(t, restored.Load(ctx, store, "bge-reranker-base"))

	// Then the rolling state carries over exactly
	assert.Equal(t, c.Stats(), restored.Stats())
}

func TestCalibratorStatePerModel(t *testing.T) {
	ctx := context.Background()
	store := newFakeStateStore()

	a := NewCalibrator(DefaultCalibrationConfig())
	_, _ = a.Calibrate([]float64{0.1, 0.2, 0.9})
	require.NoError(t, a.Save(ctx, store, "model-a"))

	b := NewCalibrator(DefaultCalibrationConfig())
	require.NoError(t, b.Load(ctx, store, "model-b"))

	assert.Equal(t, 0, b.Stats().Count)
}

func TestCalibratorLoadCorruptState(t *testing.T) {
	store := newFakeStateStore()
	store.values[calibrationKey("m")] = "{not json"

	c := NewCalibrator(DefaultCalibrationConfig())
	err := c.Load(context.Background(), store, "m")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt calibration state")
}

func TestMeanStdDev(t *testing.T) {
	mean, std := meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, std, 1e-9)
}

func TestSigmoidBounds(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-9)
	assert.Less(t, sigmoid(-3), 0.05)
	assert.Greater(t, sigmoid(3), 0.95)
	assert.False(t, math.IsNaN(sigmoid(100)))
}
