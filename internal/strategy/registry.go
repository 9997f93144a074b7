package strategy

import (
	"fmt"
	"sort"
)

// Factory builds a strategy from its config parameter map.
type Factory func(params map[string]float64) (Strategy, error)

var factories = map[string]Factory{}

// Register makes a strategy constructible by name. Called from init() in
// each strategy file.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Available returns the registered strategy names, sorted.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates one strategy by name.
func Build(name string, params map[string]float64) (Strategy, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Available())
	}
	return factory(params)
}

// BuildAll instantiates the configured strategies preserving the configured
// order. Order matters: the engine takes the first strategy that signals for
// an instrument in a tick and skips the rest.
func BuildAll(configs []Config) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		s, err := Build(cfg.Name, cfg.Params)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// Config selects and parameterizes one strategy from the config file.
type Config struct {
	Name    string             `json:"name"`
	Enabled bool               `json:"enabled"`
	Params  map[string]float64 `json:"params,omitempty"`
}
