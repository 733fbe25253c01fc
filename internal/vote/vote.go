// Package vote merges overlapping extractor proposals into fused candidates.
//
// It owns the span-overlap grouping rule shared by every processing mode and
// the weighted consensus promotion used by ensemble mode: a group survives
// when one contributor's weighted confidence clears the acceptance floor, or
// when a majority of active extractors independently proposed it.
package vote

import (
	"log/slog"
	"sort"

	"github.com/thoas/go-funk"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/score"
	"github.com/lumireader/descry/internal/types"
)

// GroupOverlapping partitions raw descriptions into groups of proposals for
// the same underlying span. Two candidates belong together when their spans
// overlap by more than overlapRatio of the shorter span's length and they
// share the same description type.
//
// Input order does not affect the result: candidates are canonically ordered
// before grouping, keeping extraction reproducible.
func GroupOverlapping(raws []types.RawDescription, overlapRatio float64) [][]types.RawDescription {
	sorted := make([]types.RawDescription, len(raws))
	copy(sorted, raws)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		if a.Type != b.Type {
			return a.Type.Priority() < b.Type.Priority()
		}
		return a.SourceProcessor < b.SourceProcessor
	})

	var groups [][]types.RawDescription
	for _, d := range sorted {
		joined := false
		for gi, group := range groups {
			if sameSpan(group, d, overlapRatio) {
				groups[gi] = append(group, d)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, []types.RawDescription{d})
		}
	}
	return groups
}

// sameSpan checks d against every member of the group.
func sameSpan(group []types.RawDescription, d types.RawDescription, overlapRatio float64) bool {
	for _, m := range group {
		if m.Type != d.Type {
			return false
		}
		shorter := m.Span.Len()
		if d.Span.Len() < shorter {
			shorter = d.Span.Len()
		}
		if shorter == 0 {
			return false
		}
		if float64(m.Span.Overlap(d.Span)) > overlapRatio*float64(shorter) {
			return true
		}
	}
	return false
}

// Representative returns the member kept as the merged candidate's text:
// the longest text, with ties resolved by confidence then source name.
func Representative(group []types.RawDescription) types.RawDescription {
	best := group[0]
	for _, m := range group[1:] {
		if len(m.Text) > len(best.Text) {
			best = m
			continue
		}
		if len(m.Text) == len(best.Text) {
			if m.ProcessorConfidence > best.ProcessorConfidence ||
				(m.ProcessorConfidence == best.ProcessorConfidence && m.SourceProcessor < best.SourceProcessor) {
				best = m
			}
		}
	}
	return best
}

// Contributors returns the distinct source processors in a group, ordered by
// descending member confidence then name.
func Contributors(group []types.RawDescription) []string {
	sorted := make([]types.RawDescription, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ProcessorConfidence != sorted[j].ProcessorConfidence {
			return sorted[i].ProcessorConfidence > sorted[j].ProcessorConfidence
		}
		return sorted[i].SourceProcessor < sorted[j].SourceProcessor
	})
	names := make([]string, 0, len(sorted))
	for _, m := range sorted {
		names = append(names, m.SourceProcessor)
	}
	return funk.UniqString(names)
}

// mergeEntityTags unions the entity tags of a group, deduplicated by offsets.
func mergeEntityTags(group []types.RawDescription) []types.EntityTag {
	seen := map[[2]int]struct{}{}
	var tags []types.EntityTag
	for _, m := range group {
		for _, t := range m.EntityTags {
			key := [2]int{t.Start, t.End}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Start < tags[j].Start })
	return tags
}

// Voter applies weighted consensus to grouped proposals.
type Voter struct {
	scorer             *score.Scorer
	acceptanceFloor    float64
	consensusThreshold float64
	overlapRatio       float64
	logger             *slog.Logger
}

// New creates a Voter from engine tuning.
func New(scorer *score.Scorer, engCfg config.EngineConfig, logger *slog.Logger) *Voter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Voter{
		scorer:             scorer,
		acceptanceFloor:    engCfg.AcceptanceFloor,
		consensusThreshold: engCfg.ConsensusThreshold,
		overlapRatio:       engCfg.OverlapRatio,
		logger:             logger.With("component", "voter"),
	}
}

// Vote merges per-processor proposals into complete descriptions.
//
// structuralFor supplies the paragraph descriptiveness for a span;
// activeCount is the number of extractors active for this run and is the
// denominator of consensus_strength.
func (v *Voter) Vote(
	perProcessor map[string][]types.RawDescription,
	configs map[string]config.ProcessorConfig,
	structuralFor func(types.Span) float64,
	activeCount int,
) []types.CompleteDescription {
	if activeCount <= 0 {
		return nil
	}

	var all []types.RawDescription
	for _, raws := range perProcessor {
		all = append(all, raws...)
	}
	if len(all) == 0 {
		return nil
	}

	var out []types.CompleteDescription
	for _, group := range GroupOverlapping(all, v.overlapRatio) {
		contributors := Contributors(group)
		consensus := float64(len(contributors)) / float64(activeCount)

		if !v.accepted(group, configs, consensus) {
			continue
		}

		rep := Representative(group)
		merged := rep
		merged.EntityTags = mergeEntityTags(group)

		breakdown, overall := v.scorer.Score(merged, structuralFor(rep.Span))
		if !v.scorer.Keep(overall) {
			continue
		}

		out = append(out, types.CompleteDescription{
			Text:                   rep.Text,
			Type:                   rep.Type,
			ChapterOffset:          rep.Span.Start,
			Span:                   rep.Span,
			ConfidenceBreakdown:    breakdown,
			OverallScore:           overall,
			ConsensusStrength:      consensus,
			ContributingProcessors: contributors,
			EntityTags:             merged.EntityTags,
		})
	}

	SortDescriptions(out)
	return out
}

// accepted applies the promotion rule: weighted confidence above the floor,
// or corroboration by a majority of active extractors.
func (v *Voter) accepted(group []types.RawDescription, configs map[string]config.ProcessorConfig, consensus float64) bool {
	if consensus >= v.consensusThreshold {
		return true
	}
	for _, m := range group {
		weight := 1.0
		if cfg, ok := configs[m.SourceProcessor]; ok {
			weight = cfg.Weight
		}
		if m.ProcessorConfidence*weight >= v.acceptanceFloor {
			return true
		}
	}
	return false
}

// SortDescriptions orders candidates by descending overall score; exact ties
// fall back to description-type priority (location > character > atmosphere >
// object > action) and then to chapter position for stability.
func SortDescriptions(descs []types.CompleteDescription) {
	sort.SliceStable(descs, func(i, j int) bool {
		a, b := descs[i], descs[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.Type != b.Type {
			return a.Type.Priority() < b.Type.Priority()
		}
		return a.ChapterOffset < b.ChapterOffset
	})
}
