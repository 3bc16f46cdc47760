// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"sync"
	"time"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// REGISTRY
// =============================================================================

// cachedModels is one provider's cached model list.
type cachedModels struct {
	models    []string
	fetchedAt time.Time
}

// Registry holds the configured provider clients and caches their model
// lists for a TTL. forceRefresh on the list operations bypasses the cache,
// mirroring the front-end's explicit refresh control.
//
// Thread-safe for concurrent use.
type Registry struct {
	clients map[Provider]Client
	ttl     time.Duration

	mu          sync.Mutex
	modelCache  map[Provider]cachedModels
	visionCache map[Provider]cachedModels
}

// NewRegistry builds a registry with both backends from the app config.
func NewRegistry(cfg *config.Config) *Registry {
	ttl := time.Duration(cfg.Generation.ModelCacheTTLSecs) * time.Second
	return NewRegistryWithClients(ttl,
		NewOllamaClient(cfg.Ollama.BaseURL),
		NewLMStudioClient(cfg.LMStudio.BaseURL),
	)
}

// NewRegistryWithClients builds a registry from explicit clients.
func NewRegistryWithClients(ttl time.Duration, clients ...Client) *Registry {
	m := make(map[Provider]Client, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &Registry{
		clients:     m,
		ttl:         ttl,
		modelCache:  make(map[Provider]cachedModels),
		visionCache: make(map[Provider]cachedModels),
	}
}

// Client returns the client for a provider.
func (r *Registry) Client(p Provider) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "no client for provider " + string(p)}
	}
	return c, nil
}

// Ping checks whether the provider's backend is reachable.
func (r *Registry) Ping(ctx context.Context, p Provider) error {
	c, err := r.Client(p)
	if err != nil {
		return err
	}
	return c.CheckRunning(ctx)
}

// ListModels returns the provider's model ids, from cache when fresh.
func (r *Registry) ListModels(ctx context.Context, p Provider, forceRefresh bool) ([]string, error) {
	return r.list(ctx, p, forceRefresh, r.modelCache, func(c Client) ([]string, error) {
		return c.ListModels(ctx)
	})
}

// ListVisionModels returns the provider's vision-capable model ids, from
// cache when fresh.
func (r *Registry) ListVisionModels(ctx context.Context, p Provider, forceRefresh bool) ([]string, error) {
	return r.list(ctx, p, forceRefresh, r.visionCache, func(c Client) ([]string, error) {
		return c.ListVisionModels(ctx)
	})
}

// Generate dispatches a generation to the provider's client.
func (r *Registry) Generate(ctx context.Context, p Provider, req GenerateRequest) (*stream.Session, error) {
	c, err := r.Client(p)
	if err != nil {
		return nil, err
	}
	return c.Generate(ctx, req)
}

// Invalidate drops all cached model lists for a provider.
func (r *Registry) Invalidate(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modelCache, p)
	delete(r.visionCache, p)
}

func (r *Registry) list(ctx context.Context, p Provider, force bool, cache map[Provider]cachedModels, fetch func(Client) ([]string, error)) ([]string, error) {
	c, err := r.Client(p)
	if err != nil {
		return nil, err
	}

	if !force && r.ttl > 0 {
		r.mu.Lock()
		entry, ok := cache[p]
		r.mu.Unlock()
		if ok && time.Since(entry.fetchedAt) < r.ttl {
			return entry.models, nil
		}
	}

	models, err := fetch(c)
	if err != nil {
		// A stale list beats an empty dropdown when the backend hiccups.
		r.mu.Lock()
		entry, ok := cache[p]
		r.mu.Unlock()
		if ok {
			return entry.models, nil
		}
		return nil, err
	}

	r.mu.Lock()
	cache[p] = cachedModels{models: models, fetchedAt: time.Now()}
	r.mu.Unlock()
	return models, nil
}
