package engine

import (
	"errors"
	"fmt"
)

// Mode selects how the active extractors are orchestrated for a run.
type Mode string

const (
	// ModeSingle runs exactly one extractor. Fastest, lowest recall.
	ModeSingle Mode = "single"
	// ModeParallel runs all active extractors concurrently, then merges by
	// simple span-overlap dedup.
	ModeParallel Mode = "parallel"
	// ModeSequential matches parallel in outcome but invokes extractors one
	// after another, for environments where concurrent model invocation is
	// unsafe or resource-constrained.
	ModeSequential Mode = "sequential"
	// ModeEnsemble runs parallel collection then weighted consensus voting.
	// Always used when the caller wants best quality.
	ModeEnsemble Mode = "ensemble"
	// ModeAdaptive inspects text complexity and delegates to single,
	// parallel, or ensemble.
	ModeAdaptive Mode = "adaptive"
)

// ErrNoProcessors indicates no extractor is enabled or usable.
// This is the only pipeline-fatal misconfiguration: silent empty results
// would be misleading, so it propagates to the caller.
var ErrNoProcessors = errors.New("no extractors available")

// ErrUnknownMode indicates an unrecognized processing mode.
var ErrUnknownMode = errors.New("unknown processing mode")

// ErrUnknownProcessor indicates a requested extractor is not registered.
var ErrUnknownProcessor = errors.New("unknown extractor")

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeParallel, ModeSequential, ModeEnsemble, ModeAdaptive:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
