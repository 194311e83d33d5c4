package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

// LMStudioConfig configures the LM Studio embedder.
type LMStudioConfig struct {
	Host      string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// LMStudioEmbedder generates embeddings via LM Studio's OpenAI-compatible
// /v1/embeddings endpoint.
type LMStudioEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    LMStudioConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*LMStudioEmbedder)(nil)

type lmStudioEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type lmStudioEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewLMStudioEmbedder creates a new LM Studio embedder.
func NewLMStudioEmbedder(cfg LMStudioConfig) *LMStudioEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultLMStudioHost
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	return &LMStudioEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}
}

// Embed generates the embedding for a single text.
func (e *LMStudioEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LMStudioEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var results [][]float32
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := carrelerrors.RetryWithResult(ctx, carrelerrors.DefaultRetryConfig(),
			func() ([][]float32, error) {
				return e.doEmbed(ctx, texts[start:end])
			})
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		results = append(results, batch...)
	}

	if len(results) > 0 {
		e.mu.Lock()
		if e.dims == 0 {
			e.dims = len(results[0])
		}
		e.mu.Unlock()
	}

	return results, nil
}

func (e *LMStudioEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(lmStudioEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		e.config.Host+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, carrelerrors.New(carrelerrors.ErrCodeProviderTimeout,
				"embedding request timed out", err)
		}
		return nil, carrelerrors.New(carrelerrors.ErrCodeProviderUnavailable,
			"embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result lmStudioEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Data), len(texts))
	}

	vecs := make([][]float32, len(result.Data))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension observed so far.
func (e *LMStudioEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the configured model identifier.
func (e *LMStudioEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks whether the server answers the models endpoint.
func (e *LMStudioEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (e *LMStudioEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
