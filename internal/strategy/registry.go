package strategy

import (
	"adaptive-agent-go/internal/models"
	"fmt"
	"sync"
)

// Registry owns the strategy instances in configuration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

type entry struct {
	strategy Strategy
	enabled  bool
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// BuildRegistry builds every configured strategy.
func BuildRegistry(configs []models.StrategyConfig, deps Deps) (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range configs {
		s, err := Build(cfg, deps)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s, cfg.Enabled); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a strategy. Names must be unique.
func (r *Registry) Register(s Strategy, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[s.Name()]; ok {
		return fmt.Errorf("strategy %q already registered", s.Name())
	}
	r.order = append(r.order, s.Name())
	r.entries[s.Name()] = &entry{strategy: s, enabled: enabled}
	return nil
}

// Get returns the strategy with the given name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.strategy, true
}

// SetEnabled toggles a strategy. It reports false for unknown names.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// Enabled returns the enabled strategies in registration order.
func (r *Registry) Enabled() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.enabled {
			out = append(out, e.strategy)
		}
	}
	return out
}

// Apply installs a new parameter set on the named strategy.
func (r *Registry) Apply(name string, params models.Params) error {
	s, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	s.UpdateParameters(params)
	return nil
}
