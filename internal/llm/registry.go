package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/logging"
)

// ProviderError is returned when a backend provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages backend provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered backend provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("sonnet", "claude") means "sonnet" resolves to the "claude" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	// Alias lookup
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no backend provider for model %q", model)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// Chain returns the clients registered under names, in order, skipping
// names that are not registered.
func (r *Registry) Chain(names []string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Client
	for _, n := range names {
		if c, ok := r.clients[n]; ok {
			out = append(out, c)
		}
	}
	return out
}

// NewRegistryFromConfig builds a Registry holding a client for the primary
// provider and every fallback. The primary becomes the registry fallback.
func NewRegistryFromConfig(ctx context.Context, cfg config.BackendConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	names := []string{cfg.Provider}
	names = append(names, cfg.Fallbacks...)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, exists := reg.clients[name]; exists {
			continue
		}
		entry, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("provider %q is not configured", name)
		}

		var client Client
		switch name {
		case "openai":
			client = NewOpenAIClient(entry.APIKey, entry.BaseURL, entry.Model, entry.VisionModel)
		case "gemini":
			gc, err := NewGeminiClient(ctx, entry.APIKey, entry.BaseURL, entry.Model, entry.VisionModel)
			if err != nil {
				return nil, err
			}
			client = gc
		case "claude":
			client = NewClaudeAPIClient(entry.APIKey, entry.BaseURL, entry.Model, entry.VisionModel)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}

		reg.Register(name, client)
		reg.Alias(entry.Model, name)
		if entry.VisionModel != "" {
			reg.Alias(entry.VisionModel, name)
		}
	}
	reg.SetFallback(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	return reg, nil
}
