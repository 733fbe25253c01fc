// Package engine orchestrates the description-extraction pipeline: segment,
// extract via one of five processing modes, vote, score, optionally enrich.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lumireader/descry/internal/types"
)

// ExtractionResult is the bundle returned to the caller for one chapter run.
type ExtractionResult struct {
	RunID           string                      `json:"run_id"`
	ChapterID       string                      `json:"chapter_id"`
	Descriptions    []types.CompleteDescription `json:"descriptions"`
	ProcessorsUsed  []string                    `json:"processors_used"`
	Mode            Mode                        `json:"mode"`
	DelegatedMode   Mode                        `json:"delegated_mode,omitempty"` // Set by adaptive mode
	QualityMetrics  map[string]float64          `json:"quality_metrics"`
	Recommendations []string                    `json:"recommendations"`
	ProcessingTime  float64                     `json:"processing_time"` // seconds
}

// ExtractOption adjusts a single Extract call.
type ExtractOption func(*extractOptions)

type extractOptions struct {
	mode      Mode
	processor string
}

// WithMode overrides the configured default processing mode.
func WithMode(m Mode) ExtractOption {
	return func(o *extractOptions) { o.mode = m }
}

// WithProcessor names the extractor for single mode. Implies single mode
// unless a mode is set explicitly.
func WithProcessor(name string) ExtractOption {
	return func(o *extractOptions) { o.processor = name }
}

// Engine is the synchronous per-chapter extraction entry point.
// It is safe for concurrent use; all per-run state lives on the stack.
type Engine struct {
	ec *EngineContext
}

// New creates an Engine around a context built at startup.
func New(ec *EngineContext) *Engine {
	return &Engine{ec: ec}
}

// Extract runs the pipeline over one chapter's text.
//
// An empty chapter is a valid degenerate input and yields an empty result,
// not an error. The only error conditions are caller cancellation, an
// unknown mode or extractor, and ErrNoProcessors when the active set is
// empty. Returned descriptions are ordered by descending overall score.
func (e *Engine) Extract(ctx context.Context, chapterText, chapterID string, opts ...ExtractOption) (*ExtractionResult, error) {
	start := time.Now()

	o := extractOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	mode := o.mode
	if mode == "" {
		if o.processor != "" {
			mode = ModeSingle
		} else {
			var err error
			mode, err = ParseMode(e.ec.Config.Engine.DefaultMode)
			if err != nil {
				return nil, err
			}
		}
	}
	strategy, ok := e.ec.mode(mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	active := e.ec.Registry.Active()
	if len(active) == 0 {
		return nil, ErrNoProcessors
	}
	if o.processor != "" && !e.ec.Registry.Has(o.processor) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcessor, o.processor)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ExtractionResult{
		RunID:     uuid.NewString(),
		ChapterID: chapterID,
		Mode:      mode,
	}
	logger := e.ec.Logger.With("run_id", result.RunID, "chapter_id", chapterID, "mode", mode)

	paragraphs := e.ec.Segmenter.Segment(chapterText)
	relevant := relevantParagraphs(paragraphs)
	if len(relevant) == 0 {
		// Degenerate but valid: no paragraphs produced, or nothing worth
		// extracting from.
		logger.Debug("no extractable paragraphs", "total", len(paragraphs))
		result.Descriptions = []types.CompleteDescription{}
		result.QualityMetrics = qualityMetrics(result.Descriptions, paragraphs, 0)
		result.Recommendations = recommendations(result, len(active))
		result.ProcessingTime = time.Since(start).Seconds()
		return result, nil
	}

	in := &runInput{
		ec:            e.ec,
		text:          chapterText,
		paragraphs:    relevant,
		processors:    active,
		configs:       e.ec.Registry.Configs(),
		structuralFor: structuralLookup(paragraphs),
		timeout:       e.ec.Config.Engine.ExtractorTimeout,
		singleName:    o.processor,
	}

	out, err := strategy.run(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Superseded run: discard partial results.
		return nil, err
	}

	result.Descriptions = out.descriptions
	if result.Descriptions == nil {
		result.Descriptions = []types.CompleteDescription{}
	}
	result.ProcessorsUsed = out.processorsUsed
	result.DelegatedMode = out.delegated

	e.enrichTop(ctx, logger, result.Descriptions)

	result.QualityMetrics = qualityMetrics(result.Descriptions, paragraphs, out.complexity)
	result.Recommendations = recommendations(result, len(active))
	result.ProcessingTime = time.Since(start).Seconds()

	logger.Info("extraction complete",
		"descriptions", len(result.Descriptions),
		"processors", result.ProcessorsUsed,
		"duration", time.Since(start))
	return result, nil
}

// enrichTop runs the optional enrichment stage over gate-clearing candidates.
// Failures are contained per candidate.
func (e *Engine) enrichTop(ctx context.Context, logger *slog.Logger, descs []types.CompleteDescription) {
	if e.ec.Enricher == nil {
		return
	}
	gate := e.ec.Config.Enricher.Gate
	for i := range descs {
		if descs[i].OverallScore < gate {
			continue
		}
		metadata, err := e.ec.Enricher.Enrich(ctx, descs[i])
		if err != nil {
			logger.Warn("enrichment failed for candidate, continuing", "offset", descs[i].ChapterOffset, "error", err)
			continue
		}
		descs[i].EnrichmentMetadata = metadata
	}
}

// relevantParagraphs filters to spans worth running extractors over:
// descriptive or mixed paragraphs, plus anything with meaningful
// descriptiveness regardless of classification.
func relevantParagraphs(paragraphs []types.Paragraph) []types.Paragraph {
	var out []types.Paragraph
	for _, p := range paragraphs {
		if p.Type == types.ParagraphDescription || p.Type == types.ParagraphMixed || p.DescriptivenessScore >= 0.25 {
			out = append(out, p)
		}
	}
	return out
}

// structuralLookup maps a candidate span to its paragraph's descriptiveness.
func structuralLookup(paragraphs []types.Paragraph) func(types.Span) float64 {
	return func(s types.Span) float64 {
		idx := sort.Search(len(paragraphs), func(i int) bool {
			return paragraphs[i].EndOffset > s.Start
		})
		if idx < len(paragraphs) && paragraphs[idx].StartOffset <= s.Start {
			return paragraphs[idx].DescriptivenessScore
		}
		return 0
	}
}

// qualityMetrics summarizes a run for the caller.
func qualityMetrics(descs []types.CompleteDescription, paragraphs []types.Paragraph, complexity float64) map[string]float64 {
	m := map[string]float64{
		"description_count": float64(len(descs)),
		"paragraph_count":   float64(len(paragraphs)),
	}

	descriptive := 0
	for _, p := range paragraphs {
		if p.Type == types.ParagraphDescription || p.Type == types.ParagraphMixed {
			descriptive++
		}
	}
	if len(paragraphs) > 0 {
		m["descriptive_paragraph_ratio"] = float64(descriptive) / float64(len(paragraphs))
	}

	if len(descs) > 0 {
		var sum, sumConsensus float64
		for _, d := range descs {
			sum += d.OverallScore
			sumConsensus += d.ConsensusStrength
		}
		m["avg_score"] = sum / float64(len(descs))
		m["max_score"] = descs[0].OverallScore
		m["avg_consensus"] = sumConsensus / float64(len(descs))
	}
	if complexity > 0 {
		m["text_complexity"] = complexity
	}
	return m
}

// recommendations derives caller-facing hints from the run outcome.
func recommendations(r *ExtractionResult, activeCount int) []string {
	var recs []string
	if activeCount == 1 {
		recs = append(recs, "only one extractor active; enable more for consensus voting")
	}
	if len(r.Descriptions) == 0 {
		recs = append(recs, "no notable descriptions found in this chapter")
		return recs
	}
	if avg, ok := r.QualityMetrics["avg_score"]; ok && avg < 0.5 {
		recs = append(recs, "low average confidence; consider ensemble mode for better quality")
	}
	if avgC, ok := r.QualityMetrics["avg_consensus"]; ok && avgC < 0.5 && activeCount > 1 {
		recs = append(recs, "extractors disagree on most candidates; review before illustration")
	}
	return recs
}
