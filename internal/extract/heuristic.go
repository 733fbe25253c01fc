package extract

import (
	"context"
	"strings"
	"unicode"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/types"
)

// ProcessorHeuristic is the source_processor identifier of the heuristic adapter.
const ProcessorHeuristic = "heuristic"

// Location cue words that, appearing near a capitalized sequence, tip the
// classification from character to location.
var locationCues = map[string]struct{}{
	"в": {}, "на": {}, "у": {}, "возле": {}, "около": {}, "над": {}, "под": {},
	"in": {}, "at": {}, "on": {}, "near": {}, "by": {}, "beyond": {},
}

// heuristicStrategy extracts candidates from capitalized sequences and
// sentence shape. It is the always-available fallback: no model assets, no
// lexicon beyond a handful of cue words.
type heuristicStrategy struct {
	cfg config.ProcessorConfig
}

// NewHeuristic creates the heuristic extractor.
func NewHeuristic(cfg config.ProcessorConfig) Strategy {
	return &heuristicStrategy{cfg: cfg}
}

func (s *heuristicStrategy) Name() string { return ProcessorHeuristic }

func (s *heuristicStrategy) Extract(ctx context.Context, p types.Paragraph) ([]types.RawDescription, error) {
	var cands []types.RawDescription
	for _, sent := range splitSentences(p.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cand, ok := s.scanSentence(p, sent); ok {
			cands = append(cands, cand)
		}
	}
	return applyConfig(cands, s.cfg), nil
}

func (s *heuristicStrategy) scanSentence(p types.Paragraph, sent sentenceSpan) (types.RawDescription, bool) {
	words := strings.Fields(sent.text)
	if len(words) < 3 {
		return types.RawDescription{}, false
	}

	var tags []types.EntityTag
	nameHits := 0
	cueBefore := false
	dType := types.TypeCharacter
	searchFrom := 0
	for i, w := range words {
		trimmed := strings.Trim(w, ".,;:!?…«»\"'—–")
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, ok := locationCues[lower]; ok {
			cueBefore = true
			continue
		}
		// Capitalized mid-sentence words are name-like; sentence-initial
		// capitals carry no signal.
		if i > 0 && isCapitalized(trimmed) {
			nameHits++
			label := "PERSON"
			if cueBefore {
				dType = types.TypeLocation
				label = "LOC"
			}
			if idx := strings.Index(sent.text[searchFrom:], trimmed); idx >= 0 {
				start := p.StartOffset + sent.start + searchFrom + idx
				tags = append(tags, types.EntityTag{
					Text:  trimmed,
					Label: label,
					Start: start,
					End:   start + len(trimmed),
				})
				searchFrom += idx + len(trimmed)
			}
		}
		cueBefore = false
	}

	if nameHits == 0 {
		// Without name-like evidence, fall back on sentence shape: long,
		// comma-rich sentences with no quoted speech read as atmosphere.
		if len(words) >= 10 && strings.Count(sent.text, ",") >= 2 && !strings.ContainsAny(sent.text, "«\"“") {
			return types.RawDescription{
				Text: sent.text,
				Span: types.Span{
					Start: p.StartOffset + sent.start,
					End:   p.StartOffset + sent.end,
				},
				Type:                types.TypeAtmosphere,
				SourceProcessor:     ProcessorHeuristic,
				ProcessorConfidence: 0.35,
			}, true
		}
		return types.RawDescription{}, false
	}

	conf := 0.4 + 0.1*float64(nameHits)
	if conf > 0.8 {
		conf = 0.8
	}

	return types.RawDescription{
		Text: sent.text,
		Span: types.Span{
			Start: p.StartOffset + sent.start,
			End:   p.StartOffset + sent.end,
		},
		Type:                dType,
		EntityTags:          tags,
		SourceProcessor:     ProcessorHeuristic,
		ProcessorConfidence: conf,
	}, true
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}
