// Package types provides shared types used across multiple packages.
// This package has no dependencies on other descry packages to avoid import cycles.
package types

// ParagraphType classifies the dominant signal in a paragraph.
type ParagraphType string

const (
	// ParagraphDescription indicates predominantly descriptive text.
	ParagraphDescription ParagraphType = "description"
	// ParagraphNarrative indicates action/event narration.
	ParagraphNarrative ParagraphType = "narrative"
	// ParagraphDialogue indicates quoted speech.
	ParagraphDialogue ParagraphType = "dialogue"
	// ParagraphMixed indicates two comparably strong signals.
	ParagraphMixed ParagraphType = "mixed"
)

// PhraseKind identifies a syntactic pattern produced by phrase extraction.
type PhraseKind string

const (
	// PhraseAdjNoun is an adjective+noun pattern ("dark castle").
	PhraseAdjNoun PhraseKind = "adj_noun"
	// PhraseAdjAdjNoun is an adjective+adjective+noun pattern.
	PhraseAdjAdjNoun PhraseKind = "adj_adj_noun"
	// PhraseNounPrepNoun is a noun+preposition+noun pattern ("castle on hill").
	PhraseNounPrepNoun PhraseKind = "noun_prep_noun"
)

// Paragraph is a contiguous span of chapter text produced by the segmenter.
// Paragraphs are immutable once produced and owned by the pipeline invocation
// that created them.
type Paragraph struct {
	Text                 string                  `json:"text"`
	StartOffset          int                     `json:"start_offset"`
	EndOffset            int                     `json:"end_offset"`
	Type                 ParagraphType           `json:"type"`
	DescriptivenessScore float64                 `json:"descriptiveness_score"`
	ExtractedPhrases     map[PhraseKind][]string `json:"extracted_phrases,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the paragraph.
func (p Paragraph) WordCount() int {
	return countWords(p.Text)
}

// DescriptionType categorizes an extracted description for downstream
// image-generation prioritization.
type DescriptionType string

const (
	TypeLocation   DescriptionType = "location"
	TypeCharacter  DescriptionType = "character"
	TypeAtmosphere DescriptionType = "atmosphere"
	TypeObject     DescriptionType = "object"
	TypeAction     DescriptionType = "action"
)

// Priority returns the static illustration-value rank of a description type.
// Lower is better: locations and characters are the most useful to illustrate.
func (t DescriptionType) Priority() int {
	switch t {
	case TypeLocation:
		return 0
	case TypeCharacter:
		return 1
	case TypeAtmosphere:
		return 2
	case TypeObject:
		return 3
	case TypeAction:
		return 4
	default:
		return 5
	}
}

// ParseDescriptionType converts a string to a DescriptionType.
// Returns TypeObject if the string is not recognized.
func ParseDescriptionType(s string) DescriptionType {
	switch DescriptionType(s) {
	case TypeLocation, TypeCharacter, TypeAtmosphere, TypeObject, TypeAction:
		return DescriptionType(s)
	default:
		return TypeObject
	}
}

// Span is a half-open character range [Start, End) into the chapter text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in characters.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Overlap returns the number of overlapping characters between two spans.
func (s Span) Overlap(other Span) int {
	lo := s.Start
	if other.Start > lo {
		lo = other.Start
	}
	hi := s.End
	if other.End < hi {
		hi = other.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// EntityTag is a named entity detected inside a description span.
type EntityTag struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// RawDescription is one extractor's proposal for a description span.
// Created per extractor invocation, never mutated, consumed by the
// voter/scorer stage.
type RawDescription struct {
	Text                string          `json:"text"`
	Span                Span            `json:"span"`
	Type                DescriptionType `json:"type"`
	EntityTags          []EntityTag     `json:"entity_tags,omitempty"`
	SourceProcessor     string          `json:"source_processor"`
	ProcessorConfidence float64         `json:"processor_confidence"`
}

// WordCount returns the number of whitespace-separated words in the candidate text.
func (d RawDescription) WordCount() int {
	return countWords(d.Text)
}

// ConfidenceBreakdown holds the per-factor components of a candidate's score.
// Each component is in [0,1]; the overall score is a pure function of this
// struct (see the score package).
type ConfidenceBreakdown struct {
	Lexical       float64 `json:"lexical"`
	Structural    float64 `json:"structural"`
	EntityDensity float64 `json:"entity_density"`
	TypePriority  float64 `json:"type_priority"`
}

// CompleteDescription is the fused, scored candidate returned to the caller.
// Immutable once produced.
type CompleteDescription struct {
	Text                   string              `json:"text"`
	Type                   DescriptionType     `json:"type"`
	ChapterOffset          int                 `json:"chapter_offset"`
	Span                   Span                `json:"span"`
	ConfidenceBreakdown    ConfidenceBreakdown `json:"confidence_breakdown"`
	OverallScore           float64             `json:"overall_score"`
	ConsensusStrength      float64             `json:"consensus_strength"`
	ContributingProcessors []string            `json:"contributing_processors"`
	EntityTags             []EntityTag         `json:"entity_tags,omitempty"`
	EnrichmentMetadata     map[string]any      `json:"enrichment_metadata,omitempty"`
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}
