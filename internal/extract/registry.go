package extract

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumireader/descry/internal/config"
)

// Builder constructs a named extractor strategy. Builders are cheap;
// expensive model loading happens inside the strategy on first use.
type Builder func(cfg config.ProcessorConfig) (Strategy, error)

// builders is the closed set of known backend constructors.
var builders = map[string]Builder{
	ProcessorLexicon:   func(cfg config.ProcessorConfig) (Strategy, error) { return NewLexicon(cfg), nil },
	ProcessorProse:     func(cfg config.ProcessorConfig) (Strategy, error) { return NewProse(cfg), nil },
	ProcessorHeuristic: func(cfg config.ProcessorConfig) (Strategy, error) { return NewHeuristic(cfg), nil },
}

// Registry holds extractor strategies and their configs.
// It supports config-driven instantiation and provides thread-safe access.
// Strategies are process-wide singletons: expensive to construct, safe to
// share read-only across concurrent pipeline runs.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	configs    map[string]config.ProcessorConfig
	logger     *slog.Logger
}

// NewRegistry creates a new empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		configs:    make(map[string]config.ProcessorConfig),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers a strategy with its config by name.
func (r *Registry) Register(name string, s Strategy, cfg config.ProcessorConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
	r.configs[name] = cfg
	if r.logger != nil {
		r.logger.Info("registered extractor", "name", name, "weight", cfg.Weight)
	}
}

// Unregister removes a strategy by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategies, name)
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("unregistered extractor", "name", name)
	}
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("extractor not found: %s", name)
	}
	return s, nil
}

// Config returns the ProcessorConfig governing a strategy.
func (r *Registry) Config(name string) (config.ProcessorConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Has checks if a strategy is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.strategies[name]
	return ok
}

// List returns all registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// Active returns a snapshot map of all registered strategies.
// The engine runs correctly with as few as one active extractor.
func (r *Registry) Active() map[string]Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]Strategy, len(r.strategies))
	for name, s := range r.strategies {
		result[name] = s
	}
	return result
}

// Configs returns a snapshot of all processor configs.
func (r *Registry) Configs() map[string]config.ProcessorConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]config.ProcessorConfig, len(r.configs))
	for name, cfg := range r.configs {
		result[name] = cfg
	}
	return result
}

// BuildRegistry instantiates all enabled extractors from config.
// Construction failures are logged per-extractor and the extractor is
// omitted from the registry rather than failing the whole engine.
func BuildRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()
	r.SetLogger(logger.With("component", "registry"))

	for name, pCfg := range cfg.EnabledProcessors() {
		build, ok := builders[name]
		if !ok {
			logger.Warn("unknown extractor in config, skipping", "name", name)
			continue
		}
		s, err := build(pCfg)
		if err != nil {
			logger.Warn("extractor construction failed, omitting from active set",
				"name", name, "error", err)
			continue
		}
		r.Register(name, s, pCfg)
	}
	return r
}
