package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

// newScoreServer serves /rerank with the given raw scores and counts
// requests.
func newScoreServer(t *testing.T, scores []float64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/rerank":
			if calls != nil {
				calls.Add(1)
			}
			var req rerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotEmpty(t, req.Query)
			assert.NotEmpty(t, req.Documents)
			require.NoError(t, json.NewEncoder(w).Encode(scores))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestEncoder(t *testing.T, endpoint string) *LocalCrossEncoder {
	t.Helper()
	cfg := DefaultCrossEncoderConfig()
	cfg.Endpoint = endpoint
	r, err := NewLocalCrossEncoder(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRerankSingleRoundTrip(t *testing.T) {
	// Given a server and a batch of documents
	var calls atomic.Int64
	srv := newScoreServer(t, []float64{0.2, 0.9, 0.5, 0.7}, &calls)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	// When the batch is reranked
	results, err := r.Rerank(context.Background(), "entropy definition",
		[]string{"a", "b", "c", "d"}, 0)

	// Then the whole batch went out as one request
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	require.Len(t, results, 4)
}

func TestRerankPreservesInputIndicesInSortedOutput(t *testing.T) {
	// Given raw scores out of order relative to the input
	srv := newScoreServer(t, []float64{0.1, 0.9, 0.5}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	// When the batch is reranked
	results, err := r.Rerank(context.Background(), "q",
		[]string{"first", "second", "third"}, 0)

	// Then output is sorted by score with original positions retained
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 0},
		[]int{results[0].Index, results[1].Index, results[2].Index})
	assert.Equal(t, "second", results[0].Document)
	assert.InDelta(t, 0.9, results[0].Raw, 1e-9)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestRerankTruncatesToTopK(t *testing.T) {
	srv := newScoreServer(t, []float64{0.1, 0.9, 0.5, 0.7}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	results, err := r.Rerank(context.Background(), "q",
		[]string{"a", "b", "c", "d"}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 3, results[1].Index)
}

func TestRerankEmptyBatch(t *testing.T) {
	srv := newScoreServer(t, nil, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	results, err := r.Rerank(context.Background(), "q", nil, 10)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankScoreCountMismatch(t *testing.T) {
	// Given a server answering with too few scores
	srv := newScoreServer(t, []float64{0.4}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	// When a larger batch is reranked
	_, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 0)

	// Then the mismatch surfaces as an error for the caller to fall back
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 scores for 2 documents")
}

func TestRerankServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestRerankUnreachableServer(t *testing.T) {
	r := newTestEncoder(t, "http://127.0.0.1:1")

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
}

func TestRerankMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"scores": "nope"}`))
	}))
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable rerank response")
}

func TestRerankAfterClose(t *testing.T) {
	srv := newScoreServer(t, []float64{0.5}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)
	require.NoError(t, r.Close())

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
}

func TestRerankAsyncDeliversOutcome(t *testing.T) {
	srv := newScoreServer(t, []float64{0.2, 0.8}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	select {
	case out := <-r.RerankAsync(context.Background(), "q", []string{"a", "b"}, 0):
		require.NoError(t, out.Err)
		require.Len(t, out.Results, 2)
		assert.False(t, out.Anomaly)
		assert.Equal(t, 1, out.Results[0].Index)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rerank outcome")
	}
}

func TestRerankAsyncFlagsDegenerateBatch(t *testing.T) {
	// Given a server returning scores stuck at the midpoint
	srv := newScoreServer(t, []float64{0.5, 0.5, 0.5}, nil)
	defer srv.Close()
	r := newTestEncoder(t, srv.URL)

	// When the batch is reranked asynchronously
	out := <-r.RerankAsync(context.Background(), "q", []string{"a", "b", "c"}, 0)

	// Then the outcome carries the anomaly flag and raw passthrough
	require.NoError(t, out.Err)
	assert.True(t, out.Anomaly)
	require.Len(t, out.Results, 3)
	assert.InDelta(t, 0.5, out.Results[0].Score, 1e-9)
	assert.Equal(t, 0, r.Calibrator().Stats().Count)
}

func TestRerankLoadsPersistedCalibration(t *testing.T) {
	// Given persisted calibration state for the model
	ctx := context.Background()
	store := newFakeStateStore()
	prior := NewCalibrator(DefaultCalibrationConfig())
	_, _ = prior.Calibrate([]float64{0.2, 0.5, 0.8})
	require.NoError(t, prior.Save(ctx, store, DefaultModel))

	// When a new client is constructed against the same store
	cfg := DefaultCrossEncoderConfig()
	r, err := NewLocalCrossEncoder(ctx, cfg, store)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// Then the rolling state is restored
	assert.Equal(t, prior.Stats(), r.Calibrator().Stats())
}

func TestAvailable(t *testing.T) {
	srv := newScoreServer(t, nil, nil)
	defer srv.Close()

	up := newTestEncoder(t, srv.URL)
	down := newTestEncoder(t, "http://127.0.0.1:1")

	assert.True(t, up.Available(context.Background()))
	assert.False(t, down.Available(context.Background()))
}

func TestRerankCircuitOpensAfterRepeatedFailures(t *testing.T) {
	// Given: a reranker pointed at a dead endpoint
	r := newTestEncoder(t, "http://127.0.0.1:1")
	docs := []string{"a", "b"}

	// When: enough calls fail to trip the breaker
	for i := 0; i < 5; i++ {
		_, err := r.Rerank(context.Background(), "q", docs, 0)
		require.Error(t, err)
	}

	// Then: the next call fails fast without dialing
	_, err := r.Rerank(context.Background(), "q", docs, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, carrelerrors.ErrCircuitOpen)
}

func TestNoOpRerankerOrdersByPosition(t *testing.T) {
	r := &NoOp{}

	results, err := r.Rerank(context.Background(), "q",
		[]string{"a", "b", "c"}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Greater(t, results[0].Score, results[1].Score)
}
