package engine

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/lumireader/descry/internal/extract"
)

// TextComplexity estimates how linguistically demanding a text is, in [0,1].
// The estimate is a deterministic function of the text: length, average
// sentence length, average word length, and the rate of name-like
// capitalized sequences each contribute a quarter.
func TextComplexity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	// Length factor: saturates at 4000 runes.
	runeCount := len([]rune(text))
	lengthF := clamp01(float64(runeCount) / 4000.0)

	// Sentence length factor: saturates at 25 words per sentence.
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentCount := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			sentCount++
		}
	}
	if sentCount == 0 {
		sentCount = 1
	}
	sentF := clamp01(float64(len(words)) / float64(sentCount) / 25.0)

	// Word length factor: saturates at 8 runes per word.
	totalRunes := 0
	for _, w := range words {
		totalRunes += len([]rune(w))
	}
	wordF := clamp01(float64(totalRunes) / float64(len(words)) / 8.0)

	// Name factor: capitalized words not at sentence starts.
	nameHits := 0
	prevTerminator := true
	for _, w := range words {
		trimmed := strings.Trim(w, ".,;:!?…«»\"'—–")
		if trimmed != "" && !prevTerminator && startsUpper(trimmed) {
			nameHits++
		}
		prevTerminator = strings.ContainsAny(w, ".!?…")
	}
	nameF := clamp01(float64(nameHits) / float64(len(words)) * 10.0)

	return 0.25*lengthF + 0.25*sentF + 0.25*wordF + 0.25*nameF
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// adaptiveStrategy analyzes the input and delegates to single, parallel, or
// ensemble. The decision is deterministic given the same text and config.
type adaptiveStrategy struct{}

func (s *adaptiveStrategy) run(ctx context.Context, in *runInput) (*runOutput, error) {
	complexity := TextComplexity(in.text)
	selected := selectProcessors(in, complexity)

	delegated := ModeSingle
	switch {
	case complexity > in.ec.Config.Engine.EnsembleComplexity || len(selected) > 2:
		delegated = ModeEnsemble
	case len(selected) == 2:
		delegated = ModeParallel
	}

	sub := *in
	sub.processors = selected

	inner, _ := in.ec.mode(delegated)
	out, err := inner.run(ctx, &sub)
	if err != nil {
		return nil, err
	}
	out.delegated = delegated
	out.complexity = complexity
	return out, nil
}

// selectProcessors picks which extractors to involve based on the configured
// complexity bands: the configured default below ComplexityLow, the two
// highest-weighted in the mid band, everything at ComplexityMid and above.
// Selection order is deterministic (weight descending, then name).
func selectProcessors(in *runInput, complexity float64) map[string]extract.Strategy {
	names := sortedNames(in.processors)
	if len(names) <= 1 || complexity >= in.ec.Config.Engine.ComplexityMid {
		return in.processors
	}

	if complexity < in.ec.Config.Engine.ComplexityLow {
		def := in.ec.Config.Engine.DefaultProcessor
		if s, ok := in.processors[def]; ok {
			return map[string]extract.Strategy{def: s}
		}
		return map[string]extract.Strategy{names[0]: in.processors[names[0]]}
	}

	// Mid band: two highest-weighted extractors.
	sort.SliceStable(names, func(i, j int) bool {
		wi := in.configs[names[i]].Weight
		wj := in.configs[names[j]].Weight
		if wi != wj {
			return wi > wj
		}
		return names[i] < names[j]
	})
	selected := make(map[string]extract.Strategy, 2)
	for _, name := range names[:2] {
		selected[name] = in.processors[name]
	}
	return selected
}
