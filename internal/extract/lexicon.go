package extract

import (
	"context"
	"strings"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/types"
)

// ProcessorLexicon is the source_processor identifier of the lexicon adapter.
const ProcessorLexicon = "lexicon"

// Type lexicons for the rule-based extractor. Keys are normalized
// (lowercased, punctuation-stripped) word forms; Russian entries include the
// frequent case forms since no morphology backend is involved.
var typeLexicons = map[types.DescriptionType]map[string]struct{}{
	types.TypeLocation: {
		"замок": {}, "замка": {}, "замке": {}, "башня": {}, "башни": {},
		"лес": {}, "леса": {}, "лесу": {}, "гора": {}, "горы": {}, "горе": {},
		"холм": {}, "холме": {}, "холма": {}, "река": {}, "реки": {}, "реке": {},
		"город": {}, "города": {}, "городе": {}, "деревня": {}, "деревне": {},
		"дворец": {}, "дворца": {}, "дворце": {}, "долина": {}, "долине": {},
		"дом": {}, "дома": {}, "доме": {}, "комната": {}, "комнате": {},
		"улица": {}, "улице": {}, "поле": {}, "поля": {}, "море": {}, "моря": {},
		"castle": {}, "tower": {}, "forest": {}, "mountain": {}, "hill": {},
		"river": {}, "city": {}, "village": {}, "palace": {}, "valley": {},
		"house": {}, "room": {}, "street": {}, "meadow": {}, "sea": {},
	},
	types.TypeCharacter: {
		"маг": {}, "мага": {}, "маге": {}, "король": {}, "короля": {},
		"королева": {}, "девушка": {}, "девушки": {}, "старик": {}, "старика": {},
		"воин": {}, "воина": {}, "рыцарь": {}, "рыцаря": {}, "женщина": {},
		"мужчина": {}, "ребенок": {}, "ребёнок": {}, "незнакомец": {},
		"волшебник": {}, "колдун": {}, "принцесса": {}, "охотник": {},
		"wizard": {}, "king": {}, "queen": {}, "girl": {}, "man": {},
		"woman": {}, "knight": {}, "warrior": {}, "stranger": {}, "hunter": {},
		"child": {}, "princess": {}, "sorcerer": {}, "mage": {},
	},
	types.TypeAtmosphere: {
		"туман": {}, "тумана": {}, "тумане": {}, "сумрак": {}, "сумраке": {},
		"тишина": {}, "тишине": {}, "воздух": {}, "воздухе": {}, "запах": {},
		"аромат": {}, "холод": {}, "жара": {}, "мрак": {}, "полумрак": {},
		"свет": {}, "света": {}, "тень": {}, "тени": {}, "небо": {}, "небе": {},
		"mist": {}, "fog": {}, "twilight": {}, "silence": {}, "air": {},
		"scent": {}, "chill": {}, "gloom": {}, "shadow": {}, "sky": {},
		"darkness": {}, "glow": {},
	},
	types.TypeObject: {
		"меч": {}, "меча": {}, "книга": {}, "книги": {}, "кольцо": {},
		"кольца": {}, "стол": {}, "столе": {}, "кубок": {}, "свиток": {},
		"плащ": {}, "корона": {}, "короны": {}, "амулет": {}, "зеркало": {},
		"дверь": {}, "двери": {}, "окно": {}, "окна": {}, "камин": {},
		"sword": {}, "book": {}, "ring": {}, "table": {}, "goblet": {},
		"scroll": {}, "cloak": {}, "crown": {}, "amulet": {}, "mirror": {},
		"door": {}, "window": {}, "hearth": {}, "lantern": {},
	},
}

// lexiconStrategy is the rule-based RU/EN extractor. It requires no model
// assets and never fails to load.
type lexiconStrategy struct {
	cfg config.ProcessorConfig
}

// NewLexicon creates the lexicon-backed extractor.
func NewLexicon(cfg config.ProcessorConfig) Strategy {
	return &lexiconStrategy{cfg: cfg}
}

func (s *lexiconStrategy) Name() string { return ProcessorLexicon }

func (s *lexiconStrategy) Extract(ctx context.Context, p types.Paragraph) ([]types.RawDescription, error) {
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

// scanSentence checks one sentence for lexicon evidence and builds a
// candidate when a dominant description type emerges.
func (s *lexiconStrategy) scanSentence(p types.Paragraph, sent sentenceSpan) (types.RawDescription, bool) {
	words := strings.Fields(sent.text)
	if len(words) == 0 {
		return types.RawDescription{}, false
	}

	hits := map[types.DescriptionType]int{}
	var tags []types.EntityTag
	adjCount := 0
	searchFrom := 0
	for _, w := range words {
		nw := normalizeToken(w)
		if nw == "" {
			continue
		}
		if looksDescriptive(nw) {
			adjCount++
		}
		for dType, lex := range typeLexicons {
			if _, ok := lex[nw]; !ok {
				continue
			}
			hits[dType]++
			// Locate the surface form for the entity tag offset.
			// Tag offsets are chapter-relative, same as the candidate span.
			if idx := indexFold(sent.text[searchFrom:], w); idx >= 0 {
				start := p.StartOffset + sent.start + searchFrom + idx
				tags = append(tags, types.EntityTag{
					Text:  strings.Trim(w, ".,;:!?…«»\"'"),
					Label: strings.ToUpper(string(dType)),
					Start: start,
					End:   start + len(w),
				})
				searchFrom += idx + len(w)
			}
			break
		}
	}

	best, bestCount := types.TypeAction, 0
	for dType, c := range hits {
		if c > bestCount || (c == bestCount && dType.Priority() < best.Priority()) {
			best, bestCount = dType, c
		}
	}
	if bestCount == 0 {
		return types.RawDescription{}, false
	}

	conf := 0.45 + 0.12*float64(bestCount) + 0.05*float64(adjCount)
	if conf > 0.95 {
		conf = 0.95
	}

	return types.RawDescription{
		Text: sent.text,
		Span: types.Span{
			Start: p.StartOffset + sent.start,
			End:   p.StartOffset + sent.end,
		},
		Type:                best,
		EntityTags:          tags,
		SourceProcessor:     ProcessorLexicon,
		ProcessorConfidence: conf,
	}, true
}

// normalizeToken lowercases and strips surrounding punctuation.
func normalizeToken(w string) string {
	return strings.Trim(strings.ToLower(w), ".,;:!?…()[]{}«»\"'—–-")
}

// looksDescriptive is a cheap adjectival check mirroring the segmenter's
// lexicon heuristics, used only for confidence shaping.
func looksDescriptive(w string) bool {
	runes := []rune(w)
	if len(runes) < 5 {
		return false
	}
	for _, suf := range []string{"ый", "ий", "ой", "ая", "ое", "ые", "ous", "ful", "ive"} {
		if strings.HasSuffix(w, suf) {
			return true
		}
	}
	return false
}

// indexFold finds a word case-insensitively in s.
func indexFold(s, w string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(w))
}
