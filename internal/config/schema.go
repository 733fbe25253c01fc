package config

import "time"

// Config holds descry configuration.
// Loaded from ./config.yaml or ~/.descry/config.yaml, with DESCRY_ env overrides.
type Config struct {
	Processors map[string]ProcessorConfig `mapstructure:"processors" yaml:"processors"`
	Engine     EngineConfig               `mapstructure:"engine" yaml:"engine"`
	Enricher   EnricherConfig             `mapstructure:"enricher" yaml:"enricher"`
}

// ProcessorConfig is the per-extractor tunable state.
// A ProcessorConfig governs exactly one extractor instance for the lifetime
// of the process; extractors are long-lived singletons keyed by name.
type ProcessorConfig struct {
	Enabled              bool    `mapstructure:"enabled" yaml:"enabled"`
	Weight               float64 `mapstructure:"weight" yaml:"weight"`                               // Relative reliability, positive
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`   // Per-candidate floor applied by the adapter
	MinDescriptionLength int     `mapstructure:"min_description_length" yaml:"min_description_length"`
	MaxDescriptionLength int     `mapstructure:"max_description_length" yaml:"max_description_length"`
	MinWordCount         int     `mapstructure:"min_word_count" yaml:"min_word_count"`
}

// EngineConfig holds pipeline-level tuning.
// The adaptive and consensus thresholds are empirically chosen and kept
// configurable pending calibration against a labeled corpus.
type EngineConfig struct {
	DefaultMode        string        `mapstructure:"default_mode" yaml:"default_mode"`               // single|parallel|sequential|ensemble|adaptive
	DefaultProcessor   string        `mapstructure:"default_processor" yaml:"default_processor"`     // Used by single mode when none named
	MinOverallScore    float64       `mapstructure:"min_overall_score" yaml:"min_overall_score"`     // Candidates below are dropped
	AcceptanceFloor    float64       `mapstructure:"acceptance_floor" yaml:"acceptance_floor"`       // Weighted-confidence floor for ensemble promotion
	ConsensusThreshold float64       `mapstructure:"consensus_threshold" yaml:"consensus_threshold"` // Fraction of extractors for the consensus boost
	EnsembleComplexity float64       `mapstructure:"ensemble_complexity" yaml:"ensemble_complexity"` // Adaptive: complexity above this delegates to ensemble
	ComplexityLow      float64       `mapstructure:"complexity_low" yaml:"complexity_low"`           // Adaptive: below this a single extractor suffices
	ComplexityMid      float64       `mapstructure:"complexity_mid" yaml:"complexity_mid"`           // Adaptive: above this all extractors are involved
	OverlapRatio       float64       `mapstructure:"overlap_ratio" yaml:"overlap_ratio"`             // Span-overlap fraction for dedup merging
	ExtractorTimeout   time.Duration `mapstructure:"extractor_timeout" yaml:"extractor_timeout"`     // Per-extractor call budget
	MaxPhraseChars     int           `mapstructure:"max_phrase_chars" yaml:"max_phrase_chars"`       // Phrase extraction input cap
}

// EnricherConfig configures the optional LLM enrichment stage.
// Absence of an API key disables enrichment entirely; this is a normal,
// fully supported configuration.
type EnricherConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Gate       float64       `mapstructure:"gate" yaml:"gate"` // Minimum overall score to enrich
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Processors: map[string]ProcessorConfig{
			"lexicon": {
				Enabled:              true,
				Weight:               1.0,
				ConfidenceThreshold:  0.3,
				MinDescriptionLength: 20,
				MaxDescriptionLength: 600,
				MinWordCount:         4,
			},
			"prose": {
				Enabled:              true,
				Weight:               0.85,
				ConfidenceThreshold:  0.3,
				MinDescriptionLength: 20,
				MaxDescriptionLength: 600,
				MinWordCount:         4,
			},
			"heuristic": {
				Enabled:              true,
				Weight:               0.7,
				ConfidenceThreshold:  0.25,
				MinDescriptionLength: 20,
				MaxDescriptionLength: 600,
				MinWordCount:         4,
			},
		},
		Engine: EngineConfig{
			DefaultMode:        "ensemble",
			DefaultProcessor:   "lexicon",
			MinOverallScore:    0.35,
			AcceptanceFloor:    0.45,
			ConsensusThreshold: 0.6,
			EnsembleComplexity: 0.8,
			ComplexityLow:      0.3,
			ComplexityMid:      0.6,
			OverlapRatio:       0.5,
			ExtractorTimeout:   30 * time.Second,
			MaxPhraseChars:     5000,
		},
		Enricher: EnricherConfig{
			Enabled:    true,
			APIKey:     "${OPENAI_API_KEY}",
			Model:      "gpt-4o-mini",
			Gate:       0.6,
			Timeout:    45 * time.Second,
			MaxRetries: 3,
		},
	}
}

// GetProcessor returns a processor config by name.
func (c *Config) GetProcessor(name string) (ProcessorConfig, bool) {
	cfg, ok := c.Processors[name]
	return cfg, ok
}

// EnabledProcessors returns all enabled processor configs.
func (c *Config) EnabledProcessors() map[string]ProcessorConfig {
	result := make(map[string]ProcessorConfig)
	for name, cfg := range c.Processors {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
