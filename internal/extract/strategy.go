// Package extract defines the extractor strategy interface, its concrete
// backend adapters, and the registry that owns their lifecycle.
//
// Adapters differ only in linguistic backend, not in contract: each maps its
// backend vocabulary onto the engine's description types, filters candidates
// against its ProcessorConfig, and attaches its own confidence. Backends load
// lazily on first use; a load failure surfaces as ErrUnavailable, never as a
// pipeline-fatal error.
package extract

import (
	"context"
	"errors"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/types"
)

// ErrUnavailable indicates an extractor backend failed to load.
// The engine treats the extractor's contribution as empty for the run.
var ErrUnavailable = errors.New("extractor unavailable")

// Strategy proposes raw descriptions from a paragraph.
// Implementations are long-lived singletons, safe for concurrent use; model
// state is read-only after load.
type Strategy interface {
	// Name returns the fixed source_processor identifier.
	Name() string

	// Extract runs the backend over the paragraph text. It returns
	// ErrUnavailable (possibly wrapped) when the backend cannot be loaded.
	Extract(ctx context.Context, p types.Paragraph) ([]types.RawDescription, error)
}

// applyConfig filters candidates by the extractor's configured thresholds.
func applyConfig(cands []types.RawDescription, cfg config.ProcessorConfig) []types.RawDescription {
	out := cands[:0]
	for _, c := range cands {
		n := len([]rune(c.Text))
		if cfg.MinDescriptionLength > 0 && n < cfg.MinDescriptionLength {
			continue
		}
		if cfg.MaxDescriptionLength > 0 && n > cfg.MaxDescriptionLength {
			continue
		}
		if cfg.MinWordCount > 0 && c.WordCount() < cfg.MinWordCount {
			continue
		}
		if c.ProcessorConfidence < cfg.ConfidenceThreshold {
			continue
		}
		out = append(out, c)
	}
	return out
}
