// Package rerank refines fused rankings with an external cross-encoder
// whose raw scores are statistically calibrated online.
package rerank

import (
	"context"
)

// Result is a single reranked candidate.
type Result struct {
	// Index is the candidate's pre-rerank position in the input batch,
	// kept for rank-shift reporting.
	Index int
	// Score is the calibrated relevance score in (0, 1), or the raw
	// provider score when the batch was degenerate.
	Score float64
	// Raw is the provider's uncalibrated score.
	Raw float64
	// Document is the candidate text that was scored.
	Document string
}

// Outcome carries a completed rerank call, for the async variant.
type Outcome struct {
	Results []Result
	// Anomaly is set when the provider returned a degenerate batch and
	// the scores are raw and untrustworthy.
	Anomaly bool
	Err     error
}

// Reranker reranks search results using a cross-encoder model.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	// Returns results sorted by score descending, truncated to topK
	// (0 = return all). A transport or parse failure returns an error
	// and no results; callers fall back to their pre-rerank ordering.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)

	// RerankAsync runs Rerank off the caller's goroutine and delivers
	// the outcome on the returned channel.
	RerankAsync(ctx context.Context, query string, documents []string, topK int) <-chan Outcome

	// Available checks if the reranker service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOp returns results in original order. Used when reranking is
// disabled or unavailable.
type NoOp struct{}

var _ Reranker = (*NoOp)(nil)

// Rerank returns documents in original order with decreasing scores.
func (n *NoOp) Rerank(_ context.Context, _ string, documents []string, topK int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Raw:      1.0 - float64(i)*0.01,
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOp) RerankAsync(ctx context.Context, query string, documents []string, topK int) <-chan Outcome {
	ch := make(chan Outcome, 1)
	results, err := n.Rerank(ctx, query, documents, topK)
	ch <- Outcome{Results: results, Err: err}
	close(ch)
	return ch
}

func (n *NoOp) Available(_ context.Context) bool { return true }

func (n *NoOp) Close() error { return nil }
