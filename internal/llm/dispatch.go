package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DetectKind maps a credential onto its provider: OpenAI keys carry the
// "sk-" prefix, everything else is treated as a Gemini key.
func DetectKind(credential string) ProviderKind {
	if strings.HasPrefix(strings.TrimSpace(credential), "sk-") {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// Factory builds a Provider bound to one credential.
type Factory func(ctx context.Context, credential string) (Provider, error)

// Registry is the dispatch table from provider kind to factory. Built
// providers are cached per credential so repeated cycles reuse clients.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderKind]Factory
	mws       []Middleware
	cache     *lru.Cache[string, Provider]
}

// NewRegistry creates an empty registry. Middlewares are applied to every
// provider it builds, left-to-right as in Wrap.
func NewRegistry(cacheSize int, mws ...Middleware) *Registry {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, _ := lru.NewWithEvict[string, Provider](cacheSize, func(_ string, p Provider) {
		_ = p.Close()
	})
	return &Registry{
		factories: make(map[ProviderKind]Factory),
		mws:       mws,
		cache:     cache,
	}
}

// Register installs (or replaces) the factory for kind.
func (r *Registry) Register(kind ProviderKind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
	r.cache.Purge()
}

// Provider returns the cached provider for credential, building it on first use.
func (r *Registry) Provider(ctx context.Context, credential string) (Provider, error) {
	credential = strings.TrimSpace(credential)
	if p, ok := r.cache.Get(credential); ok {
		return p, nil
	}
	kind := DetectKind(credential)
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: no provider registered for %s", kind)
	}
	p, err := f(ctx, credential)
	if err != nil {
		return nil, err
	}
	p = Wrap(p, r.mws...)
	r.cache.Add(credential, p)
	return p, nil
}

// Forget drops cached providers, e.g. after the credential set was replaced.
func (r *Registry) Forget() { r.cache.Purge() }

// Defaults registers the production Gemini and OpenAI factories.
func (r *Registry) Defaults(gcfg GeminiConfig, ocfg OpenAIConfig) *Registry {
	r.Register(ProviderGemini, func(ctx context.Context, credential string) (Provider, error) {
		return NewGeminiProvider(ctx, credential, gcfg)
	})
	r.Register(ProviderOpenAI, func(_ context.Context, credential string) (Provider, error) {
		return NewOpenAIProvider(credential, ocfg)
	})
	return r
}
