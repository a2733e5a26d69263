// internal/core/validation/registry.go
package validation

import (
	"fmt"
	"sync"

	"github.com/ammerola/household-be/internal/core/domain"
)

// ErrUnknownRule is returned when overriding a rule that was never registered
var ErrUnknownRule = fmt.Errorf("unknown rule: %w", domain.ErrNotFound)

type entry struct {
	config  RuleConfig
	rule    Rule
	factory Factory
}

// Registry holds the active rule set. Readers get immutable snapshots;
// Override swaps in a replacement entry.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

// NewRegistry builds a registry from definitions with every rule enabled
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultRegistry builds the registry of built-in rules
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in rule definitions are invalid: %v", err))
	}
	return r
}

// Register adds a rule definition, enabled with its default parameters
func (r *Registry) Register(def Definition) error {
	rule, err := def.Factory(def.Defaults)
	if err != nil {
		return fmt.Errorf("failed to build rule %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("rule %s already registered", def.Name)
	}
	r.order = append(r.order, def.Name)
	r.entries[def.Name] = entry{
		config:  RuleConfig{Name: def.Name, Enabled: true, Params: def.Defaults.Clone()},
		rule:    rule,
		factory: def.Factory,
	}
	return nil
}

// Override reconfigures a rule at runtime. Params are merged onto the current
// parameters; a nil enabled leaves the flag unchanged.
func (r *Registry) Override(name string, enabled *bool, params Params) (RuleConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[name]
	if !ok {
		return RuleConfig{}, fmt.Errorf("%s: %w", name, ErrUnknownRule)
	}

	merged := current.config.Params.Merge(params)
	rule, err := current.factory(merged)
	if err != nil {
		return RuleConfig{}, fmt.Errorf("invalid parameters for rule %s: %w", name, err)
	}

	next := entry{
		config:  RuleConfig{Name: name, Enabled: current.config.Enabled, Params: merged},
		rule:    rule,
		factory: current.factory,
	}
	if enabled != nil {
		next.config.Enabled = *enabled
	}

	r.entries[name] = next
	return next.config, nil
}

// Apply replaces configuration for every known rule in configs
func (r *Registry) Apply(configs []RuleConfig) error {
	for _, cfg := range configs {
		enabled := cfg.Enabled
		if _, err := r.Override(cfg.Name, &enabled, cfg.Params); err != nil {
			return err
		}
	}
	return nil
}

// Active returns the enabled rules in registration order
func (r *Registry) Active() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.config.Enabled {
			rules = append(rules, e.rule)
		}
	}
	return rules
}

// Configs returns the configuration of every rule in registration order
func (r *Registry) Configs() []RuleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]RuleConfig, 0, len(r.order))
	for _, name := range r.order {
		cfg := r.entries[name].config
		cfg.Params = cfg.Params.Clone()
		configs = append(configs, cfg)
	}
	return configs
}

// Config returns one rule's configuration
func (r *Registry) Config(name string) (RuleConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return RuleConfig{}, false
	}
	cfg := e.config
	cfg.Params = cfg.Params.Clone()
	return cfg, true
}
