// Package embed generates query and chunk embeddings via local model
// servers (Ollama, LM Studio) and discovers which models each server
// offers.
package embed

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultOllamaHost is the standard local Ollama endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultLMStudioHost is the standard local LM Studio endpoint.
	DefaultLMStudioHost = "http://localhost:1234"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, or 0 if not yet known.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Capability names one thing a discovered model can do.
type Capability string

const (
	CapabilityEmbedding Capability = "embedding"
	CapabilityChat      Capability = "chat"
	CapabilityRerank    Capability = "rerank"
	CapabilitySummary   Capability = "summary"
)

// CapabilitySet is a small tagged set of model capabilities with
// explicit membership tests.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := CapabilitySet{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		s.caps[c] = struct{}{}
	}
	return s
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// Add inserts c into the set.
func (s *CapabilitySet) Add(c Capability) {
	if s.caps == nil {
		s.caps = make(map[Capability]struct{})
	}
	s.caps[c] = struct{}{}
}

// List returns the capabilities in the set, unordered.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	return out
}

// ModelInfo describes one model offered by a local provider.
type ModelInfo struct {
	Name         string
	Provider     string
	Capabilities CapabilitySet
}
