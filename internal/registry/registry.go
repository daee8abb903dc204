package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"SolGate/internal/domain/models"
	"SolGate/pkg/config"
)

// Registry holds the configured RPC providers. Providers are loaded once at
// startup; Enable/Disable toggles are the only mutation after that.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*models.Provider
	order     []string // deterministic iteration order
}

// FromConfig builds a registry from configuration, resolving API keys from
// the environment. Providers whose key env var is set but empty are kept
// disabled rather than rejected.
func FromConfig(cfgs []config.ProviderConfig) (*Registry, error) {
	r := &Registry{providers: make(map[string]*models.Provider, len(cfgs))}

	for _, pc := range cfgs {
		auth, err := parseAuth(pc.Auth)
		if err != nil {
			return nil, fmt.Errorf("provider '%s': %w", pc.Name, err)
		}

		p := &models.Provider{
			Name:           pc.Name,
			MainnetURL:     pc.MainnetURL,
			DevnetURL:      pc.DevnetURL,
			Auth:           auth,
			MonthlyQuota:   pc.MonthlyQuota,
			CostPerRequest: pc.CostPerRequest,
			Priority:       pc.Priority,
			Capabilities:   pc.Capabilities,
			Enabled:        pc.Enabled,
		}

		if pc.APIKeyEnv != "" {
			p.APIKey = os.Getenv(pc.APIKeyEnv)
			if p.APIKey == "" && auth != models.AuthNone {
				p.Enabled = false
			}
		}

		r.providers[p.Name] = p
		r.order = append(r.order, p.Name)
	}

	sort.Strings(r.order)
	return r, nil
}

func parseAuth(s string) (models.AuthStyle, error) {
	switch s {
	case "url", "":
		return models.AuthURLPath, nil
	case "header":
		return models.AuthHeader, nil
	case "none":
		return models.AuthNone, nil
	default:
		return models.AuthNone, fmt.Errorf("unknown auth style '%s'", s)
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (*models.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Enabled returns all enabled providers in name order.
func (r *Registry) Enabled() []*models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Provider, 0, len(r.order))
	for _, name := range r.order {
		if p := r.providers[name]; p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// All returns every provider in name order, enabled or not.
func (r *Registry) All() []*models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// SetEnabled toggles a provider at runtime. Returns false if the provider
// does not exist.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return false
	}
	p.Enabled = enabled
	return true
}

// Len reports the total number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
