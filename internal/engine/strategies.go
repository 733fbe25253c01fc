package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/extract"
	"github.com/lumireader/descry/internal/types"
	"github.com/lumireader/descry/internal/vote"
)

// runInput bundles everything a processing-mode strategy needs for one run.
// Strategies are pure with respect to this input: same input, same output.
type runInput struct {
	ec            *EngineContext
	text          string
	paragraphs    []types.Paragraph
	processors    map[string]extract.Strategy
	configs       map[string]config.ProcessorConfig
	structuralFor func(types.Span) float64
	timeout       time.Duration
	// singleName is the explicitly requested extractor, if any.
	singleName string
}

// runOutput is a strategy's result bundle before enrichment.
type runOutput struct {
	descriptions   []types.CompleteDescription
	processorsUsed []string
	// Adaptive reporting
	delegated  Mode
	complexity float64
}

// modeStrategy orchestrates extractor invocation for one processing mode.
type modeStrategy interface {
	run(ctx context.Context, in *runInput) (*runOutput, error)
}

// runExtractor invokes one extractor over all relevant paragraphs under the
// per-call time budget. Unavailability, timeout, and backend errors are
// contained here: the extractor's contribution becomes empty for this run.
func runExtractor(ctx context.Context, in *runInput, name string, s extract.Strategy) []types.RawDescription {
	callCtx := ctx
	if in.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, in.timeout)
		defer cancel()
	}

	logger := in.ec.Logger
	var raws []types.RawDescription
	for _, p := range in.paragraphs {
		out, err := s.Extract(callCtx, p)
		if err != nil {
			switch {
			case errors.Is(err, extract.ErrUnavailable):
				logger.Warn("extractor unavailable, contribution empty", "extractor", name, "error", err)
			case errors.Is(err, context.DeadlineExceeded):
				logger.Warn("extractor timed out, contribution empty", "extractor", name)
			case errors.Is(err, context.Canceled):
				// Caller cancellation; the engine discards partial results.
			default:
				logger.Warn("extractor failed, contribution empty", "extractor", name, "error", err)
			}
			return nil
		}
		raws = append(raws, out...)
	}
	return raws
}

// collectParallel fans out one goroutine per extractor and joins before
// returning. Every extractor completes or individually fails; a slow one
// cannot block the run past its own time budget.
func collectParallel(ctx context.Context, in *runInput) map[string][]types.RawDescription {
	names := sortedNames(in.processors)
	results := make([]([]types.RawDescription), len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = runExtractor(ctx, in, name, in.processors[name])
		}(i, name)
	}
	wg.Wait()

	perProcessor := make(map[string][]types.RawDescription, len(names))
	for i, name := range names {
		perProcessor[name] = results[i]
	}
	return perProcessor
}

// collectSequential invokes extractors one after another.
func collectSequential(ctx context.Context, in *runInput) map[string][]types.RawDescription {
	perProcessor := make(map[string][]types.RawDescription, len(in.processors))
	for _, name := range sortedNames(in.processors) {
		if ctx.Err() != nil {
			break
		}
		perProcessor[name] = runExtractor(ctx, in, name, in.processors[name])
	}
	return perProcessor
}

// fuse applies the shared dedup rule without consensus weighting: groups are
// merged unconditionally, scored, floor-filtered, and sorted.
func fuse(in *runInput, perProcessor map[string][]types.RawDescription, activeCount int) []types.CompleteDescription {
	var all []types.RawDescription
	for _, raws := range perProcessor {
		all = append(all, raws...)
	}
	if len(all) == 0 || activeCount == 0 {
		return nil
	}

	scorer := in.ec.Scorer
	var out []types.CompleteDescription
	for _, group := range vote.GroupOverlapping(all, in.ec.Config.Engine.OverlapRatio) {
		rep := vote.Representative(group)
		contributors := vote.Contributors(group)

		breakdown, overall := scorer.Score(rep, in.structuralFor(rep.Span))
		if !scorer.Keep(overall) {
			continue
		}

		out = append(out, types.CompleteDescription{
			Text:                   rep.Text,
			Type:                   rep.Type,
			ChapterOffset:          rep.Span.Start,
			Span:                   rep.Span,
			ConfidenceBreakdown:    breakdown,
			OverallScore:           overall,
			ConsensusStrength:      float64(len(contributors)) / float64(activeCount),
			ContributingProcessors: contributors,
			EntityTags:             rep.EntityTags,
		})
	}
	vote.SortDescriptions(out)
	return out
}

// singleStrategy runs exactly one extractor.
type singleStrategy struct{}

func (s *singleStrategy) run(ctx context.Context, in *runInput) (*runOutput, error) {
	name := in.singleName
	if name == "" {
		name = in.ec.Config.Engine.DefaultProcessor
	}
	proc, ok := in.processors[name]
	if !ok {
		// Fall back to any active extractor, deterministically.
		names := sortedNames(in.processors)
		if len(names) == 0 {
			return nil, ErrNoProcessors
		}
		name = names[0]
		proc = in.processors[name]
	}

	perProcessor := map[string][]types.RawDescription{
		name: runExtractor(ctx, in, name, proc),
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &runOutput{
		descriptions:   fuse(in, perProcessor, 1),
		processorsUsed: []string{name},
	}, nil
}

// parallelStrategy runs all selected extractors concurrently and merges by
// simple span-overlap dedup.
type parallelStrategy struct{}

func (s *parallelStrategy) run(ctx context.Context, in *runInput) (*runOutput, error) {
	perProcessor := collectParallel(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &runOutput{
		descriptions:   fuse(in, perProcessor, len(in.processors)),
		processorsUsed: sortedNames(in.processors),
	}, nil
}

// sequentialStrategy matches parallel in outcome with serial invocation.
type sequentialStrategy struct{}

func (s *sequentialStrategy) run(ctx context.Context, in *runInput) (*runOutput, error) {
	perProcessor := collectSequential(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &runOutput{
		descriptions:   fuse(in, perProcessor, len(in.processors)),
		processorsUsed: sortedNames(in.processors),
	}, nil
}

// ensembleStrategy runs parallel collection, then weighted consensus voting.
type ensembleStrategy struct{}

func (s *ensembleStrategy) run(ctx context.Context, in *runInput) (*runOutput, error) {
	perProcessor := collectParallel(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	descs := in.ec.Voter.Vote(perProcessor, in.configs, in.structuralFor, len(in.processors))
	return &runOutput{
		descriptions:   descs,
		processorsUsed: sortedNames(in.processors),
	}, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
