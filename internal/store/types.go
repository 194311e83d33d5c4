// Package store persists chunk records and their embeddings in a
// per-workspace SQLite database, and serves both sides of hybrid
// retrieval: exact linear-scan cosine search over embeddings and
// FTS5 keyword search over chunk text.
package store

import (
	"errors"
	"fmt"
	"time"
)

// ChunkType classifies the structural role of a chunk within its document.
type ChunkType string

const (
	ChunkTypeText       ChunkType = "text"
	ChunkTypeDefinition ChunkType = "definition"
	ChunkTypeExample    ChunkType = "example"
	ChunkTypeSummary    ChunkType = "summary"
	ChunkTypeList       ChunkType = "list"
	ChunkTypeCode       ChunkType = "code"
	ChunkTypeTable      ChunkType = "table"
)

// ChunkInput is the ingestion contract produced by document processing.
type ChunkInput struct {
	Text           string
	Embedding      []float32
	SourceFile     string
	DocID          string
	PageNum        int
	ChunkIdx       int
	ModelSignature string
	HeadingPath    string
	HeadingLevel   int
	ChunkType      ChunkType
	SentenceCount  int
	ListType       string
	ListLength     int
}

// ChunkRecord is a persisted chunk. Records are created on ingestion,
// mutated only by feedback boosting, and never deleted individually.
type ChunkRecord struct {
	ID             int64
	Text           string
	SourceFile     string
	DocID          string
	PageNum        int
	ChunkIdx       int
	ModelSignature string
	HeadingPath    string
	HeadingLevel   int
	ChunkType      ChunkType
	SentenceCount  int
	ListType       string
	ListLength     int
	FeedbackBoost  float64
	CreatedAt      time.Time
}

// SemanticResult is one row of a vector search, best first.
type SemanticResult struct {
	Chunk      ChunkRecord
	Similarity float64
}

// LexicalResult is one row of a keyword search, best first.
type LexicalResult struct {
	Chunk ChunkRecord
	Score float64
}

// ErrShortChunk is returned when an ingested chunk's trimmed text is too
// short to be worth indexing.
var ErrShortChunk = errors.New("chunk text too short to index")

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// ErrWorkspaceLocked is returned when another process holds the
// workspace lock.
var ErrWorkspaceLocked = errors.New("workspace is locked by another process")

// DimensionMismatchError reports an embedding whose width disagrees with
// the workspace's registered dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: workspace registered %d, got %d", e.Expected, e.Actual)
}

// IsDimensionMismatch reports whether err is a dimension mismatch.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}

// Metadata state keys.
const (
	StateKeyDimension   = "embedding_dimension"
	StateKeyEmbedModel  = "embed_model"
	StateKeyRerankModel = "rerank_model"
)

// Chunks shorter than this (after trimming) carry no retrievable signal
// and are skipped at ingestion.
const minChunkLength = 4

// FeedbackBoostStep is the multiplicative trust increment applied per
// positive feedback event.
const FeedbackBoostStep = 1.1

// FeedbackBoostCap bounds the accumulated boost factor.
const FeedbackBoostCap = 3.0
