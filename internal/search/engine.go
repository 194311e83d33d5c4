package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/carrelhq/carrel/internal/async"
	carrelerrors "github.com/carrelhq/carrel/internal/errors"
	"github.com/carrelhq/carrel/internal/rerank"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/telemetry"
)

// placeholderScore is assigned to every result when vector search is
// bypassed under load; lexical order is preserved and scores carry no
// meaning.
const placeholderScore = 1.0

// Index is the chunk store surface the engine drives.
type Index interface {
	Insert(ctx context.Context, in store.ChunkInput) (int64, error)
	SemanticSearch(ctx context.Context, query []float32, limit int) ([]store.SemanticResult, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]store.LexicalResult, error)
	Boost(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// EngineConfig holds the engine's tuning knobs.
type EngineConfig struct {
	RRFConstant       int
	ExactCacheSize    int
	SemanticCacheSize int
	SlowQueryMs       float64
	DegradedQueryMs   float64
	Workers           int

	// RerankTopN caps how many fused results are sent to the
	// cross-encoder. Zero reranks the whole result list.
	RerankTopN int
}

// DefaultEngineConfig returns the standard tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RRFConstant:       DefaultRRFConstant,
		ExactCacheSize:    DefaultExactCacheSize,
		SemanticCacheSize: DefaultSemanticCacheSize,
		SlowQueryMs:       DefaultSlowQueryMs,
		DegradedQueryMs:   DefaultDegradedQueryMs,
		Workers:           async.DefaultWorkers(),
		RerankTopN:        DefaultLimit,
	}
}

// Engine is the retrieval orchestrator. Per query it checks the cache,
// detects intent, runs lexical and vector retrieval concurrently, fuses,
// regulates stability, optionally diversifies and injects exploration,
// caches and logs.
type Engine struct {
	index     Index
	config    EngineConfig
	fusion    *Fusion
	cache     *ResultCache
	regulator *StabilityRegulator
	diversity *DiversitySelector
	injector  *ExplorationInjector
	gate      *LatencyGate
	pool      *async.Pool
	ownsPool  bool
	reranker  rerank.Reranker
	log       *telemetry.Log
	logger    *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithReranker attaches a cross-encoder for result refinement. Rerank
// failures are advisory and never abort a query.
func WithReranker(r rerank.Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithTelemetry attaches the retrieval log. It also feeds the
// stability regulator's rank history.
func WithTelemetry(log *telemetry.Log) EngineOption {
	return func(e *Engine) {
		e.log = log
		e.regulator = NewStabilityRegulator(log)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithPool shares an existing worker pool instead of creating one. The
// caller keeps ownership.
func WithPool(p *async.Pool) EngineOption {
	return func(e *Engine) {
		e.pool = p
		e.ownsPool = false
	}
}

// NewEngine creates the retrieval engine over the given index.
func NewEngine(index Index, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, carrelerrors.New(carrelerrors.ErrCodeInvalidInput, "index is required", nil)
	}
	e := &Engine{
		index:     index,
		config:    cfg,
		fusion:    NewFusion(cfg.RRFConstant),
		cache:     NewResultCache(cfg.ExactCacheSize, cfg.SemanticCacheSize),
		regulator: NewStabilityRegulator(nil),
		diversity: NewDiversitySelector(),
		injector:  NewExplorationInjector(),
		gate:      NewLatencyGate(cfg.SlowQueryMs, cfg.DegradedQueryMs),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = async.NewPool(cfg.Workers)
		e.ownsPool = true
	}
	return e, nil
}

// Search answers one query. The embedding may be empty, in which case
// retrieval is lexical-only.
func (e *Engine) Search(ctx context.Context, query string, embedding []float32, opts Options) ([]*RankedCandidate, error) {
	start := time.Now()
	opts.applyDefaults()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, carrelerrors.New(carrelerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	if results, ok := e.cache.Lookup(query, embedding, opts.SemanticCacheThreshold); ok {
		e.logger.Debug("cache_hit", slog.String("query", query))
		return results, nil
	}

	intent := DetectIntent(query)
	depth := intent.DepthMultiplier()

	switch e.gate.Level() {
	case LoadDegraded:
		return e.degradedSearch(ctx, query, opts, start)
	case LoadSlow:
		depth /= 2
		if depth < 2 {
			depth = 2
		}
	}
	fetch := opts.Limit * depth

	semantic, lexical, semMs, kwMs, err := e.retrieve(ctx, query, embedding, fetch)
	if err != nil {
		return nil, err
	}

	results := e.fusion.Fuse(intent, semantic, lexical, opts.Limit)

	stability := e.regulator.Stability(ctx, query)
	e.regulator.Apply(results, intent, stability)

	var mmrPenalty float64
	if opts.EnableDiversity {
		results, mmrPenalty = e.diversity.Select(query, intent, results, opts.Limit)
	}

	exploration := false
	if opts.EnableExploration && e.injector.ShouldInject(intent, stability, results) {
		now := time.Now()
		if opts.Deterministic {
			now = time.Time{}
		}
		before := len(results)
		results = e.injector.Inject(results, semantic, opts.Limit, now)
		exploration = len(results) > before
	}

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if opts.EnableRerank && e.reranker != nil {
		results = e.rerank(ctx, query, results)
	}

	e.cache.Insert(query, embedding, results)
	e.recordTelemetry(ctx, query, results, semantic, telemetry.Entry{
		SemanticMs:  semMs,
		KeywordMs:   kwMs,
		MMRPenalty:  mmrPenalty,
		Exploration: exploration,
		Stability:   stability,
	}, start)

	e.gate.Observe(time.Since(start))
	return results, nil
}

// lexicalOutcome carries the lexical results together with the wall
// time of the search itself, measured on the worker.
type lexicalOutcome struct {
	results []store.LexicalResult
	ms      int64
}

// retrieve forks lexical search onto the worker pool, runs vector
// search on the calling goroutine, and joins both.
func (e *Engine) retrieve(ctx context.Context, query string, embedding []float32, fetch int) (semantic []store.SemanticResult, lexical []store.LexicalResult, semMs, kwMs int64, err error) {
	lexFut := async.Submit(ctx, e.pool, func() (lexicalOutcome, error) {
		start := time.Now()
		results, err := e.index.LexicalSearch(ctx, query, fetch)
		return lexicalOutcome{results: results, ms: time.Since(start).Milliseconds()}, err
	})

	semOK := false
	if len(embedding) > 0 {
		semStart := time.Now()
		var semErr error
		semantic, semErr = e.index.SemanticSearch(ctx, embedding, fetch)
		semMs = time.Since(semStart).Milliseconds()
		switch {
		case semErr == nil:
			semOK = true
		case store.IsDimensionMismatch(semErr):
			return nil, nil, 0, 0, semErr
		default:
			e.logger.Warn("semantic_search_failed",
				slog.String("query", query),
				slog.String("error", semErr.Error()))
			semantic = nil
		}
	}

	out, lexErr := lexFut.Wait(ctx)
	lexical, kwMs = out.results, out.ms
	if lexErr != nil {
		e.logger.Warn("lexical_search_failed",
			slog.String("query", query),
			slog.String("error", lexErr.Error()))
		lexical = nil
	}

	if !semOK && lexErr != nil {
		return nil, nil, 0, 0, carrelerrors.New(carrelerrors.ErrCodeSearchFailed,
			"both retrieval paths failed", lexErr)
	}
	return semantic, lexical, semMs, kwMs, nil
}

// degradedSearch is the emergency path when the latency average blows
// past the degraded threshold: lexical only, flat scores.
func (e *Engine) degradedSearch(ctx context.Context, query string, opts Options, start time.Time) ([]*RankedCandidate, error) {
	e.logger.Warn("degraded_query_path",
		slog.String("query", query),
		slog.Float64("latency_ema_ms", e.gate.AverageMs()))

	lexical, err := e.index.LexicalSearch(ctx, query, opts.Limit)
	if err != nil {
		return nil, carrelerrors.New(carrelerrors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	results := make([]*RankedCandidate, 0, len(lexical))
	for rank, r := range lexical {
		chunk := r.Chunk
		results = append(results, &RankedCandidate{
			Chunk:        &chunk,
			Score:        placeholderScore,
			KeywordScore: r.Score,
			KeywordRank:  rank + 1,
			Trust:        chunk.FeedbackBoost,
		})
	}

	e.gate.Observe(time.Since(start))
	return results, nil
}

// rerank refines the final ordering through the cross-encoder on a
// pool worker. Any failure keeps the pre-rerank ordering.
func (e *Engine) rerank(ctx context.Context, query string, results []*RankedCandidate) []*RankedCandidate {
	if len(results) == 0 {
		return results
	}

	// Only the top N fused results go to the cross-encoder; the tail
	// keeps its fused ordering below them.
	head, tail := results, []*RankedCandidate(nil)
	if e.config.RerankTopN > 0 && e.config.RerankTopN < len(results) {
		head, tail = results[:e.config.RerankTopN], results[e.config.RerankTopN:]
	}

	docs := make([]string, len(head))
	for i, c := range head {
		docs[i] = c.Chunk.Text
	}

	fut := async.Submit(ctx, e.pool, func() ([]rerank.Result, error) {
		return e.reranker.Rerank(ctx, query, docs, 0)
	})
	ranked, err := fut.Wait(ctx)
	if err != nil {
		e.logger.Warn("rerank_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return results
	}
	if len(ranked) == 0 {
		return results
	}

	reordered := make([]*RankedCandidate, 0, len(ranked)+len(tail))
	for i, r := range ranked {
		c := head[r.Index]
		c.Score = r.Score
		c.RerankRank = i + 1
		reordered = append(reordered, c)
	}
	return append(reordered, tail...)
}

// recordTelemetry logs one observation, best-effort. The final rank
// tracks where the top semantic candidate landed after the pipeline;
// its movement across observations feeds the stability regulator.
func (e *Engine) recordTelemetry(ctx context.Context, query string, results []*RankedCandidate, semantic []store.SemanticResult, entry telemetry.Entry, start time.Time) {
	if e.log == nil {
		return
	}

	entry.Query = query
	entry.TotalMs = time.Since(start).Milliseconds()

	if len(results) > 0 {
		entry.SemanticRank = results[0].SemanticRank
		entry.KeywordRank = results[0].KeywordRank
		entry.TopScore = results[0].Score
	}

	if len(semantic) > 0 {
		entry.FinalRank = len(results) + 1
		for pos, c := range results {
			if c.Chunk.ID == semantic[0].Chunk.ID {
				entry.FinalRank = pos + 1
				break
			}
		}
		if prev, ok, err := e.log.LastFinalRank(ctx, query); err == nil && ok {
			delta := float64(entry.FinalRank - prev)
			if delta < 0 {
				delta = -delta
			}
			entry.RankDelta = delta
		}
	}

	e.log.Record(ctx, entry)
}

// Feedback records a user interaction with a result. Exploratory
// candidates are quarantined: the interaction is logged but earns no
// trust boost.
func (e *Engine) Feedback(ctx context.Context, candidateID int64, queryText string, isExploratory bool) error {
	if isExploratory {
		e.logger.Info("exploration_feedback_quarantined",
			slog.Int64("chunk_id", candidateID),
			slog.String("query", queryText))
		return nil
	}
	if err := e.index.Boost(ctx, candidateID); err != nil {
		return err
	}
	e.cache.InvalidateAll()
	return nil
}

// Ingest stores one chunk and invalidates both cache tiers.
func (e *Engine) Ingest(ctx context.Context, in store.ChunkInput) (int64, error) {
	id, err := e.index.Insert(ctx, in)
	if err != nil {
		return 0, err
	}
	e.cache.InvalidateAll()
	return id, nil
}

// Clear drops the whole index and both cache tiers.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.index.Clear(ctx); err != nil {
		return err
	}
	e.cache.InvalidateAll()
	return nil
}

// Cache exposes the result cache, for stats reporting.
func (e *Engine) Cache() *ResultCache { return e.cache }

// Close releases the engine's own resources. A shared pool is left
// running.
func (e *Engine) Close() {
	if e.ownsPool {
		e.pool.Close()
	}
}
