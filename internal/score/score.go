// Package score implements the multi-factor confidence model.
//
// Each candidate gets a four-component breakdown (lexical, structural,
// entity density, type priority), every component in [0,1], combined by a
// fixed weighted sum. The overall score is a pure function of the breakdown:
// recomputing it from a stored breakdown reproduces the stored value.
package score

import (
	"github.com/lumireader/descry/internal/segment"
	"github.com/lumireader/descry/internal/types"
)

// Weights are the fixed factor weights. They must sum to 1.0.
type Weights struct {
	Lexical       float64
	Structural    float64
	EntityDensity float64
	TypePriority  float64
}

// DefaultWeights reflect downstream image-generation value: lexical signal
// and type priority dominate, structure and entity density corroborate.
var DefaultWeights = Weights{
	Lexical:       0.30,
	Structural:    0.25,
	EntityDensity: 0.20,
	TypePriority:  0.25,
}

// typePriorities is the static illustration-value table.
var typePriorities = map[types.DescriptionType]float64{
	types.TypeLocation:   1.0,
	types.TypeCharacter:  0.9,
	types.TypeAtmosphere: 0.7,
	types.TypeObject:     0.6,
	types.TypeAction:     0.4,
}

// entityDensityNorm is the entities-per-100-words rate treated as saturation.
const entityDensityNorm = 10.0

// Overall combines a breakdown into the overall score using the default
// weights. Pure function, no hidden state.
func Overall(b types.ConfidenceBreakdown) float64 {
	return OverallWith(DefaultWeights, b)
}

// OverallWith combines a breakdown using explicit weights.
func OverallWith(w Weights, b types.ConfidenceBreakdown) float64 {
	return w.Lexical*b.Lexical +
		w.Structural*b.Structural +
		w.EntityDensity*b.EntityDensity +
		w.TypePriority*b.TypePriority
}

// TypePriority returns the static priority factor for a description type.
func TypePriority(t types.DescriptionType) float64 {
	if p, ok := typePriorities[t]; ok {
		return p
	}
	return 0.5
}

// Scorer computes confidence breakdowns for raw candidates.
type Scorer struct {
	weights    Weights
	minOverall float64
}

// New creates a Scorer. Candidates scoring below minOverall are dropped by
// Keep, not merely ranked low.
func New(minOverall float64) *Scorer {
	return &Scorer{weights: DefaultWeights, minOverall: minOverall}
}

// Breakdown computes the four factors for a raw description, given the
// structural signal inherited from its paragraph.
func (s *Scorer) Breakdown(d types.RawDescription, structural float64) types.ConfidenceBreakdown {
	return types.ConfidenceBreakdown{
		Lexical:       clamp01(segment.LexicalDensity(d.Text) * 3.0),
		Structural:    clamp01(structural),
		EntityDensity: entityDensity(len(d.EntityTags), d.WordCount()),
		TypePriority:  TypePriority(d.Type),
	}
}

// Score computes breakdown plus overall for a raw description.
func (s *Scorer) Score(d types.RawDescription, structural float64) (types.ConfidenceBreakdown, float64) {
	b := s.Breakdown(d, structural)
	return b, OverallWith(s.weights, b)
}

// Keep reports whether a candidate's overall score clears the floor.
func (s *Scorer) Keep(overall float64) bool {
	return overall >= s.minOverall
}

// entityDensity normalizes tagged entities per 100 words into [0,1].
func entityDensity(entities, wordCount int) float64 {
	if wordCount == 0 {
		return 0
	}
	per100 := float64(entities) / float64(wordCount) * 100.0
	return clamp01(per100 / entityDensityNorm)
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
