package segment

import "strings"

// Descriptive lexicon: adjectives and sensory nouns that signal visual,
// illustratable content. Covers Russian and English since uploaded books
// are predominantly Russian with a long tail of English originals.
var descriptiveWords = map[string]struct{}{
	// Russian adjectives and sensory nouns
	"высокий": {}, "темный": {}, "тёмный": {}, "светлый": {}, "огромный": {},
	"древний": {}, "старый": {}, "мрачный": {}, "прекрасный": {}, "туманный": {},
	"холодный": {}, "теплый": {}, "тёплый": {}, "яркий": {}, "бледный": {},
	"зеленый": {}, "зелёный": {}, "красный": {}, "черный": {}, "чёрный": {},
	"белый": {}, "серый": {}, "золотой": {}, "серебряный": {}, "каменный": {},
	"деревянный": {}, "узкий": {}, "широкий": {}, "глубокий": {}, "тихий": {},
	"замок": {}, "башня": {}, "лес": {}, "гора": {}, "холм": {}, "река": {},
	"море": {}, "небо": {}, "туман": {}, "свет": {}, "тень": {}, "стена": {},
	"долина": {}, "поле": {}, "дворец": {}, "город": {}, "деревня": {},
	"запах": {}, "аромат": {}, "шум": {}, "тишина": {}, "сумрак": {},
	// English adjectives and sensory nouns
	"tall": {}, "dark": {}, "ancient": {}, "old": {}, "gloomy": {}, "vast": {},
	"misty": {}, "cold": {}, "warm": {}, "bright": {}, "pale": {}, "narrow": {},
	"wide": {}, "deep": {}, "silent": {}, "golden": {}, "silver": {}, "stone": {},
	"wooden": {}, "crimson": {}, "emerald": {}, "shadowy": {}, "towering": {},
	"castle": {}, "tower": {}, "forest": {}, "mountain": {}, "hill": {}, "river": {},
	"valley": {}, "meadow": {}, "palace": {}, "village": {}, "mist": {}, "shadow": {},
	"twilight": {}, "fragrance": {}, "scent": {}, "silence": {}, "glow": {},
}

// Action verbs signalling narrative (event-driven) text.
var actionVerbs = map[string]struct{}{
	// Russian
	"пошел": {}, "пошёл": {}, "пошла": {}, "побежал": {}, "побежала": {},
	"схватил": {}, "ударил": {}, "прыгнул": {}, "вскочил": {}, "бросился": {},
	"крикнул": {}, "закричал": {}, "выстрелил": {}, "упал": {}, "вбежал": {},
	"вышел": {}, "вошел": {}, "вошёл": {}, "открыл": {}, "закрыл": {},
	"взял": {}, "бросил": {}, "поднял": {}, "повернулся": {}, "обернулся": {},
	// English
	"ran": {}, "jumped": {}, "grabbed": {}, "struck": {}, "leaped": {},
	"shouted": {}, "screamed": {}, "fired": {}, "fell": {}, "rushed": {},
	"entered": {}, "opened": {}, "closed": {}, "took": {}, "threw": {},
	"turned": {}, "lifted": {}, "dashed": {}, "charged": {}, "fled": {},
}

// Adjective suffixes used when a word is absent from the lexicon.
// Russian full-form adjective endings plus common English derivational suffixes.
var adjectiveSuffixes = []string{
	// Russian
	"ый", "ий", "ой", "ая", "яя", "ое", "ее", "ые", "ие", "ого", "его",
	"ому", "ему", "ыми", "ими", "ых", "их",
	// English
	"ous", "ful", "ive", "less", "able", "ible", "ent", "ant",
}

// LexicalDensity returns the fraction of words in text that carry
// descriptive signal (lexicon hits plus adjectival forms). Used by the
// segmenter's classification and by the confidence scorer's lexical factor.
func LexicalDensity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		nw := normalizeWord(w)
		if nw == "" {
			continue
		}
		if isDescriptiveWord(nw) || looksAdjectival(nw) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// normalizeWord lowercases and strips surrounding punctuation.
func normalizeWord(w string) string {
	return strings.Trim(strings.ToLower(w), ".,;:!?…()[]{}«»\"'—–-")
}

// isDescriptiveWord reports whether a normalized word is in the descriptive lexicon.
func isDescriptiveWord(w string) bool {
	_, ok := descriptiveWords[w]
	return ok
}

// isActionVerb reports whether a normalized word is a known action verb.
func isActionVerb(w string) bool {
	_, ok := actionVerbs[w]
	return ok
}

// looksAdjectival reports whether a word is a lexicon adjective or carries an
// adjective suffix. Suffix matching requires a minimum stem so short function
// words ("их", "able") do not count.
func looksAdjectival(w string) bool {
	if isDescriptiveWord(w) {
		return true
	}
	runes := []rune(w)
	if len(runes) < 5 {
		return false
	}
	for _, suf := range adjectiveSuffixes {
		if strings.HasSuffix(w, suf) && len(runes) >= len([]rune(suf))+3 {
			return true
		}
	}
	return false
}
