package segment

import (
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/lumireader/descry/internal/types"
)

// Per-kind caps on returned phrases, ordered by position in text.
const (
	maxAdjNoun      = 20
	maxAdjAdjNoun   = 10
	maxNounPrepNoun = 15
)

// Token is a POS-tagged token in document order.
type Token struct {
	Text string
	Tag  string // Penn Treebank tag (JJ, NN, IN, ...)
}

// Tagger produces POS-tagged tokens for a text.
// Implementations may load models lazily; errors indicate the backend is
// unavailable and phrase extraction should be skipped.
type Tagger interface {
	Tag(text string) ([]Token, error)
}

// proseTagger wraps the prose POS tagger.
type proseTagger struct{}

func newProseTagger() Tagger {
	return &proseTagger{}
}

func (t *proseTagger) Tag(text string) ([]Token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, err
	}
	raw := doc.Tokens()
	tokens := make([]Token, 0, len(raw))
	for _, tok := range raw {
		tokens = append(tokens, Token{Text: tok.Text, Tag: tok.Tag})
	}
	return tokens, nil
}

// matchPhrasePatterns scans the token stream for the three supported
// syntactic patterns. Results keep document order; per-kind caps apply.
func matchPhrasePatterns(tokens []Token) map[types.PhraseKind][]string {
	phrases := map[types.PhraseKind][]string{}

	add := func(kind types.PhraseKind, limit int, words ...string) {
		if len(phrases[kind]) >= limit {
			return
		}
		phrases[kind] = append(phrases[kind], strings.Join(words, " "))
	}

	for i := 0; i < len(tokens); i++ {
		// adjective + adjective + noun
		if i+2 < len(tokens) && isAdjTag(tokens[i].Tag) && isAdjTag(tokens[i+1].Tag) && isNounTag(tokens[i+2].Tag) {
			add(types.PhraseAdjAdjNoun, maxAdjAdjNoun, tokens[i].Text, tokens[i+1].Text, tokens[i+2].Text)
		}
		// adjective + noun
		if i+1 < len(tokens) && isAdjTag(tokens[i].Tag) && isNounTag(tokens[i+1].Tag) {
			add(types.PhraseAdjNoun, maxAdjNoun, tokens[i].Text, tokens[i+1].Text)
		}
		// noun + preposition + noun
		if i+2 < len(tokens) && isNounTag(tokens[i].Tag) && tokens[i+1].Tag == "IN" && isNounTag(tokens[i+2].Tag) {
			add(types.PhraseNounPrepNoun, maxNounPrepNoun, tokens[i].Text, tokens[i+1].Text, tokens[i+2].Text)
		}
	}

	if len(phrases) == 0 {
		return nil
	}
	return phrases
}

func isAdjTag(tag string) bool {
	return strings.HasPrefix(tag, "JJ")
}

func isNounTag(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}
