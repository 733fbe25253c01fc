package engine

import (
	"log/slog"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/enrich"
	"github.com/lumireader/descry/internal/extract"
	"github.com/lumireader/descry/internal/score"
	"github.com/lumireader/descry/internal/segment"
	"github.com/lumireader/descry/internal/vote"
)

// EngineContext holds everything a pipeline run needs: the active extractors,
// their configs, the segmenter, scorer, voter, and the optional enricher.
// It is constructed once at process startup and passed into every invocation;
// there is no ambient global state, so tests build fake contexts freely.
type EngineContext struct {
	Config    *config.Config
	Registry  *extract.Registry
	Segmenter *segment.Segmenter
	Scorer    *score.Scorer
	Voter     *vote.Voter
	Enricher  enrich.Enricher // nil when enrichment is not configured
	Logger    *slog.Logger

	// Mode strategies are stateless; cache them per context.
	modes map[Mode]modeStrategy
}

// ContextOption configures an EngineContext.
type ContextOption func(*EngineContext)

// WithLogger sets the context logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(ec *EngineContext) { ec.Logger = logger }
}

// WithRegistry overrides the extractor registry (used by tests).
func WithRegistry(r *extract.Registry) ContextOption {
	return func(ec *EngineContext) { ec.Registry = r }
}

// WithSegmenter overrides the segmenter.
func WithSegmenter(s *segment.Segmenter) ContextOption {
	return func(ec *EngineContext) { ec.Segmenter = s }
}

// WithEnricher sets the optional enrichment stage.
func WithEnricher(e enrich.Enricher) ContextOption {
	return func(ec *EngineContext) { ec.Enricher = e }
}

// NewContext builds an EngineContext from configuration.
// The enricher is attached separately (see WithEnricher / enrich.FromConfig)
// so callers without credentials pay nothing.
func NewContext(cfg *config.Config, opts ...ContextOption) *EngineContext {
	ec := &EngineContext{
		Config: cfg,
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ec)
	}

	if ec.Registry == nil {
		ec.Registry = extract.BuildRegistry(cfg, ec.Logger)
	}
	if ec.Segmenter == nil {
		ec.Segmenter = segment.New(
			segment.WithLogger(ec.Logger),
			segment.WithMaxPhraseChars(cfg.Engine.MaxPhraseChars),
		)
	}
	if ec.Scorer == nil {
		ec.Scorer = score.New(cfg.Engine.MinOverallScore)
	}
	if ec.Voter == nil {
		ec.Voter = vote.New(ec.Scorer, cfg.Engine, ec.Logger)
	}

	if ec.Enricher == nil {
		ec.Logger.Info("enrichment not configured, stage will be skipped")
	}

	ec.modes = map[Mode]modeStrategy{
		ModeSingle:     &singleStrategy{},
		ModeParallel:   &parallelStrategy{},
		ModeSequential: &sequentialStrategy{},
		ModeEnsemble:   &ensembleStrategy{},
		ModeAdaptive:   &adaptiveStrategy{},
	}

	return ec
}

// mode returns the cached strategy for a mode.
func (ec *EngineContext) mode(m Mode) (modeStrategy, bool) {
	s, ok := ec.modes[m]
	return s, ok
}
