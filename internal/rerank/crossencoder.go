package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

// Cross-encoder defaults.
const (
	DefaultEndpoint = "http://localhost:8765"
	DefaultModel    = "bge-reranker-base"
	DefaultTimeout  = 20 * time.Second
)

// CrossEncoderConfig configures the local cross-encoder client.
type CrossEncoderConfig struct {
	// Endpoint is the reranker server URL.
	Endpoint string
	// Model is the cross-encoder model name, also the calibration key.
	Model string
	// Timeout bounds the single batch round trip.
	Timeout time.Duration
	// Calibration tunes the score normalization.
	Calibration CalibrationConfig
}

// DefaultCrossEncoderConfig returns the standard client configuration.
func DefaultCrossEncoderConfig() CrossEncoderConfig {
	return CrossEncoderConfig{
		Endpoint:    DefaultEndpoint,
		Model:       DefaultModel,
		Timeout:     DefaultTimeout,
		Calibration: DefaultCalibrationConfig(),
	}
}

// LocalCrossEncoder scores query-candidate pairs against a local
// cross-encoder server. The whole batch goes out as one request and the
// server answers with a JSON array of raw scores in input order.
//
// Each invocation builds its own transport: rerank calls run off the
// orchestrator's goroutine and must not share connection state with it.
type LocalCrossEncoder struct {
	config     CrossEncoderConfig
	calibrator *Calibrator
	breaker    *carrelerrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*LocalCrossEncoder)(nil)

// NewLocalCrossEncoder creates a cross-encoder client. If store is
// non-nil, previously persisted calibration state for the model is
// loaded.
func NewLocalCrossEncoder(ctx context.Context, cfg CrossEncoderConfig, store StateStore) (*LocalCrossEncoder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Calibration == (CalibrationConfig{}) {
		cfg.Calibration = DefaultCalibrationConfig()
	}

	r := &LocalCrossEncoder{
		config:     cfg,
		calibrator: NewCalibrator(cfg.Calibration),
		breaker:    carrelerrors.NewCircuitBreaker("rerank"),
	}

	if store != nil {
		if err := r.calibrator.Load(ctx, store, cfg.Model); err != nil {
			return nil, fmt.Errorf("failed to load calibration state: %w", err)
		}
	}

	return r, nil
}

// Calibrator exposes the rolling calibration state, for persistence and
// inspection.
func (r *LocalCrossEncoder) Calibrator() *Calibrator {
	return r.calibrator
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

// Rerank sends the batch, calibrates the returned raw scores, and
// returns candidates sorted by calibrated score descending. Outliers are
// excluded. On a degenerate batch the raw scores are used as-is and an
// anomaly is logged.
func (r *LocalCrossEncoder) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []Result{}, nil
	}

	if !r.breaker.Allow() {
		return nil, carrelerrors.New(carrelerrors.ErrCodeRerankFailed,
			"rerank server unavailable", carrelerrors.ErrCircuitOpen)
	}

	raw, err := r.fetchScores(ctx, query, documents)
	if err != nil {
		r.breaker.RecordFailure()
		return nil, err
	}
	r.breaker.RecordSuccess()

	scores, anomaly := r.calibrator.Calibrate(raw)
	if anomaly {
		slog.Warn("rerank_degenerate_batch",
			slog.String("model", r.config.Model),
			slog.Int("batch_size", len(raw)))
	}

	results := make([]Result, 0, len(scores))
	for i, s := range scores {
		if s.Rejected {
			continue
		}
		results = append(results, Result{
			Index:    i,
			Score:    s.Score,
			Raw:      raw[i],
			Document: documents[i],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// RerankAsync runs Rerank on its own goroutine and delivers the outcome
// on the returned channel.
func (r *LocalCrossEncoder) RerankAsync(ctx context.Context, query string, documents []string, topK int) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		anomaliesBefore := r.calibrator.Anomalies()
		results, err := r.Rerank(ctx, query, documents, topK)
		ch <- Outcome{
			Results: results,
			Anomaly: r.calibrator.Anomalies() > anomaliesBefore,
			Err:     err,
		}
	}()
	return ch
}

// fetchScores performs the single batch round trip on an
// execution-local transport.
func (r *LocalCrossEncoder) fetchScores(ctx context.Context, query string, documents []string) ([]float64, error) {
	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		r.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, carrelerrors.New(carrelerrors.ErrCodeRerankFailed,
			"rerank request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, carrelerrors.New(carrelerrors.ErrCodeRerankFailed,
			fmt.Sprintf("rerank failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var raw []float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, carrelerrors.New(carrelerrors.ErrCodeRerankFailed,
			"unparseable rerank response", err)
	}
	if len(raw) != len(documents) {
		return nil, carrelerrors.New(carrelerrors.ErrCodeRerankFailed,
			fmt.Sprintf("got %d scores for %d documents", len(raw), len(documents)), nil)
	}
	return raw, nil
}

// Available checks whether the server answers the health endpoint.
func (r *LocalCrossEncoder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close marks the client closed. Transports are per-invocation, so
// there is nothing else to release.
func (r *LocalCrossEncoder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
