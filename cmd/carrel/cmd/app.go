package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embed"
	"github.com/carrelhq/carrel/internal/rerank"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/telemetry"
)

// App bundles the wired retrieval stack for one CLI invocation.
type App struct {
	Config   *config.Config
	Store    *store.SQLiteStore
	Engine   *search.Engine
	Reranker rerank.Reranker
	log      *telemetry.Log

	embedder embed.Embedder
	cross    *rerank.LocalCrossEncoder
}

// openApp loads configuration and opens the workspace store, telemetry
// log and engine. The embedding provider is connected lazily by
// Embedder, so read-only commands work with no provider running.
func openApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if workspaceFlag != "" {
		cfg.Workspace.Name = workspaceFlag
	}
	if dataDirFlag != "" {
		cfg.Workspace.DataDir = dataDirFlag
	}

	st, err := store.OpenWorkspace(cfg.Workspace.DataDir, cfg.Workspace.Name)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: st}

	log, err := telemetry.NewLog(st.DB(), slog.Default())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	app.log = log

	engineCfg := search.EngineConfig{
		RRFConstant:       cfg.Retrieval.RRFConstant,
		ExactCacheSize:    cfg.Retrieval.ExactCacheSize,
		SemanticCacheSize: cfg.Retrieval.SemanticCacheSize,
		SlowQueryMs:       cfg.Retrieval.SlowQueryMs,
		DegradedQueryMs:   cfg.Retrieval.DegradedQueryMs,
		Workers:           cfg.RetrievalWorkers(),
		RerankTopN:        cfg.Rerank.TopN,
	}

	opts := []search.EngineOption{
		search.WithTelemetry(log),
		search.WithLogger(slog.Default()),
	}

	if cfg.Rerank.Enabled {
		rrCfg := rerank.DefaultCrossEncoderConfig()
		rrCfg.Endpoint = cfg.Rerank.Endpoint
		rrCfg.Model = cfg.Rerank.Model
		if cfg.Rerank.TimeoutSeconds > 0 {
			rrCfg.Timeout = time.Duration(cfg.Rerank.TimeoutSeconds) * time.Second
		}
		cross, err := rerank.NewLocalCrossEncoder(ctx, rrCfg, st)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		app.cross = cross
		app.Reranker = cross
		opts = append(opts, search.WithReranker(cross))
	}

	engine, err := search.NewEngine(st, engineCfg, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	app.Engine = engine
	return app, nil
}

// Embedder connects the configured embedding provider on first use.
func (a *App) Embedder(ctx context.Context) (embed.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}

	timeout := embed.DefaultTimeout
	if a.Config.Embeddings.TimeoutSeconds > 0 {
		timeout = time.Duration(a.Config.Embeddings.TimeoutSeconds) * time.Second
	}

	var inner embed.Embedder
	switch a.Config.Embeddings.Provider {
	case "lmstudio":
		inner = embed.NewLMStudioEmbedder(embed.LMStudioConfig{
			Host:    a.Config.Embeddings.LMStudioHost,
			Model:   a.Config.Embeddings.Model,
			Timeout: timeout,
		})
	case "", "ollama":
		ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
			Host:    a.Config.Embeddings.OllamaHost,
			Model:   a.Config.Embeddings.Model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", a.Config.Embeddings.Provider)
	}

	a.embedder = embed.NewCachedEmbedder(inner, a.Config.Embeddings.CacheSize)
	return a.embedder, nil
}

// Close persists calibration state and releases everything.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.cross != nil {
		if err := a.cross.Calibrator().Save(ctx, a.Store, a.Config.Rerank.Model); err != nil {
			slog.Warn("calibration_save_failed", slog.String("error", err.Error()))
		}
		_ = a.cross.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
