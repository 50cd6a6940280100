package llm

import (
	"sync"
)

// Clients lazily builds and caches one Generator per provider so that
// rate limiters are shared by every caller.
type Clients struct {
	registry *Registry
	opts     []GeneratorOption

	mu   sync.Mutex
	gens map[string]Generator
}

// NewClients creates a generator cache over a registry.
func NewClients(registry *Registry, opts ...GeneratorOption) *Clients {
	return &Clients{
		registry: registry,
		opts:     opts,
		gens:     make(map[string]Generator),
	}
}

// Registry returns the underlying provider registry.
func (c *Clients) Registry() *Registry {
	return c.registry
}

// Get returns the generator for a provider, building it on first use.
func (c *Clients) Get(id string) (Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.gens[id]; ok {
		return g, nil
	}

	p, ok := c.registry.Get(id)
	if !ok || !p.Enabled {
		return nil, ErrNotConfigured
	}
	g, err := NewGenerator(p, c.opts...)
	if err != nil {
		return nil, err
	}
	c.gens[id] = g
	return g, nil
}

// Set installs a generator for a provider, replacing any cached one.
func (c *Clients) Set(id string, g Generator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id] = g
}
