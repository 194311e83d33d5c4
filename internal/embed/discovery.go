package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DiscoveryConfig points model discovery at the local providers.
type DiscoveryConfig struct {
	OllamaHost   string
	LMStudioHost string
	Timeout      time.Duration
}

// DiscoverModels probes both local providers concurrently and returns
// every model found, tagged with its likely capabilities. An unreachable
// provider contributes nothing; discovery only fails when neither
// answers.
func DiscoverModels(ctx context.Context, cfg DiscoveryConfig) ([]ModelInfo, error) {
	if cfg.OllamaHost == "" {
		cfg.OllamaHost = DefaultOllamaHost
	}
	if cfg.LMStudioHost == "" {
		cfg.LMStudioHost = DefaultLMStudioHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var mu sync.Mutex
	var models []ModelInfo
	var ollamaErr, lmErr error

	g, gctx := errgroup.WithContext(probeCtx)

	g.Go(func() error {
		found, err := probeOllama(gctx, cfg.OllamaHost)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			ollamaErr = err
			return nil
		}
		models = append(models, found...)
		return nil
	})

	g.Go(func() error {
		found, err := probeLMStudio(gctx, cfg.LMStudioHost)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			lmErr = err
			return nil
		}
		models = append(models, found...)
		return nil
	})

	_ = g.Wait()

	if len(models) == 0 && ollamaErr != nil && lmErr != nil {
		return nil, ollamaErr
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Name < models[j].Name
	})
	return models, nil
}

func probeOllama(ctx context.Context, host string) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{
			Name:         m.Name,
			Provider:     "ollama",
			Capabilities: classifyModel(m.Name),
		})
	}
	return models, nil
}

func probeLMStudio(ctx context.Context, host string) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, ModelInfo{
			Name:         m.ID,
			Provider:     "lmstudio",
			Capabilities: classifyModel(m.ID),
		})
	}
	return models, nil
}

// classifyModel infers capabilities from the model name. Embedding
// models are recognizable by convention; rerankers by the "rerank"
// infix; everything else is assumed to chat and summarize.
func classifyModel(name string) CapabilitySet {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "embed") || strings.Contains(lower, "minilm") ||
		strings.Contains(lower, "bge-m3"):
		return NewCapabilitySet(CapabilityEmbedding)
	case strings.Contains(lower, "rerank"):
		return NewCapabilitySet(CapabilityRerank)
	default:
		return NewCapabilitySet(CapabilityChat, CapabilitySummary)
	}
}
