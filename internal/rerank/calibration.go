package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

// CalibrationConfig holds the tuning knobs for online score calibration.
// These are policy, not law; the defaults match the measured behavior of
// small local cross-encoders.
type CalibrationConfig struct {
	// Alpha is the smoothing factor blending batch statistics into the
	// running estimate.
	Alpha float64
	// DriftThreshold is the batch-vs-running mean gap that forces a
	// re-seed instead of a blend.
	DriftThreshold float64
	// MinDriftSamples is how many batches must be absorbed before drift
	// detection activates.
	MinDriftSamples int
	// ConsistencyEps is the variance (around 0.5) below which a batch is
	// considered degenerate.
	ConsistencyEps float64
	// OutlierZ rejects scores with |z| above it.
	OutlierZ float64
	// ClampZ bounds accepted z-scores before the sigmoid.
	ClampZ float64
	// MinStdDev floors the running standard deviation.
	MinStdDev float64
}

// DefaultCalibrationConfig returns the standard calibration tuning.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		Alpha:           0.15,
		DriftThreshold:  0.4,
		MinDriftSamples: 5,
		ConsistencyEps:  0.001,
		OutlierZ:        5,
		ClampZ:          3,
		MinStdDev:       0.01,
	}
}

// CalibratedScore is one raw score after normalization.
type CalibratedScore struct {
	// Score is the sigmoid-mapped value in (0, 1). Meaningless when
	// Rejected is set.
	Score float64
	// Rejected marks a statistical outlier excluded from output.
	Rejected bool
}

// Stats is a snapshot of the rolling calibration state.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// StateStore persists calibration state across sessions. Satisfied by
// the workspace store's metadata table.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Calibrator maintains rolling mean and standard deviation of raw
// cross-encoder scores for one model, and z-score-normalizes each batch
// against them. All state transitions happen under one mutex; concurrent
// rerank calls against the same model serialize here.
type Calibrator struct {
	mu        sync.Mutex
	cfg       CalibrationConfig
	stats     Stats
	anomalies int
}

// NewCalibrator creates a calibrator with the given tuning.
func NewCalibrator(cfg CalibrationConfig) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// Calibrate absorbs one batch of raw scores and returns their
// calibrated forms. The returned anomaly flag is set for degenerate
// batches: the calibration state is left untouched and the raw scores
// are passed through unnormalized.
func (c *Calibrator) Calibrate(raw []float64) ([]CalibratedScore, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batchMean, batchStd := meanStdDev(raw)

	// Consistency check: scores bunched at the scale midpoint suggest a
	// stuck or degenerate model.
	if varianceAround(raw, 0.5) < c.cfg.ConsistencyEps {
		c.anomalies++
		out := make([]CalibratedScore, len(raw))
		for i, r := range raw {
			out[i] = CalibratedScore{Score: r}
		}
		return out, true
	}

	// Drift detection: a batch far from the running mean means the
	// estimate is stale; force a re-seed rather than a slow blend.
	if c.stats.Count > c.cfg.MinDriftSamples &&
		math.Abs(batchMean-c.stats.Mean) > c.cfg.DriftThreshold {
		c.stats.Count = 0
	}

	var normMean, normStd float64
	if c.stats.Count == 0 {
		c.stats.Mean = batchMean
		c.stats.StdDev = math.Max(batchStd, c.cfg.MinStdDev)
		normMean, normStd = c.stats.Mean, c.stats.StdDev
	} else {
		// Normalize against the estimate as it stood before this batch.
		normMean, normStd = c.stats.Mean, c.stats.StdDev
		a := c.cfg.Alpha
		c.stats.Mean = (1-a)*c.stats.Mean + a*batchMean
		c.stats.StdDev = math.Max((1-a)*c.stats.StdDev+a*batchStd, c.cfg.MinStdDev)
	}
	c.stats.Count++

	out := make([]CalibratedScore, len(raw))
	for i, r := range raw {
		z := (r - normMean) / normStd
		if math.Abs(z) > c.cfg.OutlierZ {
			out[i] = CalibratedScore{Rejected: true}
			continue
		}
		z = math.Max(-c.cfg.ClampZ, math.Min(c.cfg.ClampZ, z))
		out[i] = CalibratedScore{Score: sigmoid(z)}
	}
	return out, false
}

// Stats returns a snapshot of the rolling state.
func (c *Calibrator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Anomalies returns how many degenerate batches have been seen.
func (c *Calibrator) Anomalies() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anomalies
}

// calibrationKey namespaces persisted state per model.
func calibrationKey(modelID string) string {
	return "calibration:" + modelID
}

// Save persists the rolling state under the model's key.
func (c *Calibrator) Save(ctx context.Context, store StateStore, modelID string) error {
	c.mu.Lock()
	stats := c.stats
	c.mu.Unlock()

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration state: %w", err)
	}
	return store.SetState(ctx, calibrationKey(modelID), string(data))
}

// Load restores the rolling state for the model. A missing record
// leaves the calibrator unseeded.
func (c *Calibrator) Load(ctx context.Context, store StateStore, modelID string) error {
	val, err := store.GetState(ctx, calibrationKey(modelID))
	if err != nil {
		return err
	}
	if val == "" {
		return nil
	}

	var stats Stats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return fmt.Errorf("corrupt calibration state for %s: %w", modelID, err)
	}

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
	return nil
}

func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func varianceAround(values []float64, center float64) float64 {
	var sq float64
	for _, v := range values {
		d := v - center
		sq += d * d
	}
	return sq / float64(len(values))
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
