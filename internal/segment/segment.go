// Package segment splits raw chapter text into classified paragraphs.
//
// Segmentation is a pure transform: blank-line boundaries, a lexicon-driven
// type classification, and an optional syntactic phrase-extraction pass that
// degrades to an empty map when the tagging backend is unavailable.
package segment

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/lumireader/descry/internal/types"
)

// Signal scaling constants for classification. Raw per-word rates are small;
// these bring the three signals onto a comparable [0,1] scale.
const (
	descriptiveScale = 4.0
	adjectiveScale   = 5.0
	actionScale      = 6.0
	dialogueScale    = 3.0

	// mixedBand is the relative distance within which two signals are
	// considered comparably strong.
	mixedBand = 0.10
)

// Segmenter produces classified paragraphs from chapter text.
type Segmenter struct {
	logger         *slog.Logger
	tagger         Tagger
	maxPhraseChars int

	phraseWarn sync.Once
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = logger }
}

// WithTagger overrides the POS tagging backend used for phrase extraction.
// Passing nil disables phrase extraction.
func WithTagger(t Tagger) Option {
	return func(s *Segmenter) { s.tagger = t }
}

// WithMaxPhraseChars caps how much paragraph text is fed to phrase extraction.
func WithMaxPhraseChars(n int) Option {
	return func(s *Segmenter) { s.maxPhraseChars = n }
}

// New creates a Segmenter with the default prose-backed tagger.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		logger:         slog.Default(),
		tagger:         newProseTagger(),
		maxPhraseChars: 5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "segmenter")
	return s
}

// Segment splits chapter text into ordered, classified paragraphs.
// Empty or whitespace-only spans are dropped; an empty chapter yields nil.
func (s *Segmenter) Segment(chapterText string) []types.Paragraph {
	if strings.TrimSpace(chapterText) == "" {
		return nil
	}

	var paragraphs []types.Paragraph
	for _, block := range splitBlocks(chapterText) {
		text := chapterText[block.start:block.end]
		if strings.TrimSpace(text) == "" {
			continue
		}

		pType, descScore := s.classify(text)
		p := types.Paragraph{
			Text:                 text,
			StartOffset:          block.start,
			EndOffset:            block.end,
			Type:                 pType,
			DescriptivenessScore: descScore,
		}

		// Phrase extraction only pays off on descriptive content.
		if pType == types.ParagraphDescription || pType == types.ParagraphMixed {
			p.ExtractedPhrases = s.extractPhrases(text)
		}

		paragraphs = append(paragraphs, p)
	}
	return paragraphs
}

type block struct {
	start, end int
}

// splitBlocks finds paragraph boundaries at blank lines, preserving exact
// character offsets into the chapter text.
func splitBlocks(text string) []block {
	var blocks []block
	start := -1
	i := 0
	for i < len(text) {
		// Find extent of the current line.
		lineEnd := strings.IndexByte(text[i:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += i
		}

		blank := strings.TrimSpace(text[i:lineEnd]) == ""
		if blank {
			if start >= 0 {
				blocks = append(blocks, block{start: start, end: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i = lineEnd + 1
	}
	if start >= 0 {
		blocks = append(blocks, block{start: start, end: len(text)})
	}
	return blocks
}

// classify assigns a paragraph type by majority signal and computes the
// descriptiveness score.
//
// Three signals are measured per word: descriptive-lexicon hits, dialogue
// markers, and action-verb density. When the two strongest signals land
// within 10% of each other and one of them is descriptive, the paragraph is
// classified mixed rather than losing the descriptive content; ties among
// narrative and dialogue prefer narrative.
func (s *Segmenter) classify(text string) (types.ParagraphType, float64) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return types.ParagraphNarrative, 0
	}

	var lexHits, adjHits, verbHits int
	for _, w := range words {
		nw := normalizeWord(w)
		if nw == "" {
			continue
		}
		if isDescriptiveWord(nw) {
			lexHits++
		}
		if looksAdjectival(nw) {
			adjHits++
		}
		if isActionVerb(nw) {
			verbHits++
		}
	}

	n := float64(len(words))
	lexRate := float64(lexHits) / n
	adjRate := float64(adjHits) / n
	verbRate := float64(verbHits) / n

	descriptive := clamp01(lexRate * descriptiveScale)
	narrative := clamp01(verbRate * actionScale)
	dialogue := clamp01(dialogueRate(text) * dialogueScale)

	descScore := clamp01(0.6*clamp01(lexRate*descriptiveScale) + 0.4*clamp01(adjRate*adjectiveScale))

	pType := pickType(descriptive, narrative, dialogue)
	return pType, descScore
}

// pickType resolves the majority signal with the mixed-band tie handling.
func pickType(descriptive, narrative, dialogue float64) types.ParagraphType {
	type scored struct {
		t types.ParagraphType
		v float64
	}
	// Order encodes the tie-break preference: description > narrative > dialogue.
	ranked := []scored{
		{types.ParagraphDescription, descriptive},
		{types.ParagraphNarrative, narrative},
		{types.ParagraphDialogue, dialogue},
	}

	best, second := ranked[0], scored{}
	for _, r := range ranked[1:] {
		if r.v > best.v {
			second = best
			best = r
		} else if r.v > second.v {
			second = r
		}
	}

	if best.v == 0 {
		return types.ParagraphNarrative
	}
	if second.v > 0 && best.v-second.v <= mixedBand*best.v {
		// Comparably strong signals. Keep descriptive content visible to the
		// extractors instead of under-extracting.
		if best.t == types.ParagraphDescription || second.t == types.ParagraphDescription {
			return types.ParagraphMixed
		}
		if best.t == types.ParagraphNarrative || second.t == types.ParagraphNarrative {
			return types.ParagraphNarrative
		}
	}
	return best.t
}

// dialogueRate estimates the share of the paragraph that is quoted speech.
func dialogueRate(text string) float64 {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return 0
	}
	marked := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "—"), strings.HasPrefix(trimmed, "–"),
			strings.HasPrefix(trimmed, "«"), strings.HasPrefix(trimmed, "\""),
			strings.HasPrefix(trimmed, "“"):
			marked++
		}
	}
	rate := float64(marked) / float64(len(lines))

	// Inline quotes count too, at a lower weight.
	quoteRunes := strings.Count(text, "«") + strings.Count(text, "\"") + strings.Count(text, "“")
	words := len(strings.Fields(text))
	if words > 0 {
		rate += 0.5 * float64(quoteRunes) / float64(words)
	}
	return rate
}

// extractPhrases runs the syntactic phrase pass over the paragraph, truncated
// for latency control. A tagging backend failure is logged once and degrades
// to an empty map.
func (s *Segmenter) extractPhrases(text string) map[types.PhraseKind][]string {
	if s.tagger == nil {
		return nil
	}
	if s.maxPhraseChars > 0 && len(text) > s.maxPhraseChars {
		text = truncateRunesafe(text, s.maxPhraseChars)
	}

	tokens, err := s.tagger.Tag(text)
	if err != nil {
		s.phraseWarn.Do(func() {
			s.logger.Warn("phrase extraction backend unavailable, continuing without phrases", "error", err)
		})
		return nil
	}
	return matchPhrasePatterns(tokens)
}

// truncateRunesafe cuts at a byte budget without splitting a rune.
func truncateRunesafe(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
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
