package provider

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ProviderConfig is the routing metadata attached to a registered adapter.
type ProviderConfig struct {
	Name        ProviderType `json:"name"`
	Environment string       `json:"environment"` // sandbox | production
	Enabled     bool         `json:"enabled"`
	Weight      int          `json:"weight"`
	Priority    int          `json:"priority"`
}

type entry struct {
	provider Provider
	cfg      ProviderConfig
}

// Registry manages all payment providers
type Registry struct {
	providers map[ProviderType]entry
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderType]entry)}
}

// RegisterProvider adds or atomically replaces a provider.
// Replacing is how rotated secrets take effect without a restart.
func (r *Registry) RegisterProvider(p Provider, cfg ProviderConfig) {
	cfg.Name = p.Type()
	if cfg.Weight < 0 {
		cfg.Weight = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[p.Type()] = entry{provider: p, cfg: cfg}
	log.Info().
		Str("provider", string(p.Type())).
		Str("name", p.Name()).
		Str("environment", cfg.Environment).
		Bool("enabled", cfg.Enabled).
		Int("weight", cfg.Weight).
		Bool("signed_webhooks", p.WebhookSecretConfigured()).
		Msg("registered payment provider")
}

// GetProvider returns a provider by type
func (r *Registry) GetProvider(t ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.providers[t]
	if !ok {
		return nil, NewError(t, ErrProviderNotFound, "provider %s not registered", t)
	}
	return e.provider, nil
}

// Lookup resolves a provider from the name used in webhook paths.
func (r *Registry) Lookup(name string) (Provider, error) {
	t, ok := ParseProviderType(name)
	if !ok {
		return nil, NewError("", ErrProviderNotFound, "unknown provider %q", name)
	}
	return r.GetProvider(t)
}

// Config returns the routing config for a provider.
func (r *Registry) Config(t ProviderType) (ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.providers[t]
	return e.cfg, ok
}

// ListProviders returns all registered provider types, sorted
func (r *Registry) ListProviders() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	Type           ProviderType   `json:"type"`
	Name           string         `json:"name"`
	Config         ProviderConfig `json:"config"`
	Capabilities   Capabilities   `json:"capabilities"`
	SignedWebhooks bool           `json:"signed_webhooks"`
}

// GetAllProviderInfo returns information about all registered providers
func (r *Registry) GetAllProviderInfo() []*ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*ProviderInfo, 0, len(r.providers))
	for t, e := range r.providers {
		infos = append(infos, &ProviderInfo{
			Type:           t,
			Name:           e.provider.Name(),
			Config:         e.cfg,
			Capabilities:   e.provider.Capabilities(),
			SignedWebhooks: e.provider.WebhookSecretConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.providers))
	for _, e := range r.providers {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].cfg.Name < out[j].cfg.Name })
	return out
}
