package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/extract"
	"github.com/lumireader/descry/internal/segment"
	"github.com/lumireader/descry/internal/types"
)

const descriptiveSentence = "Высокий темный замок возвышался на холме."

var chapterText = descriptiveSentence + "\n\n— Привет, — сказал он."

func locationRaw(conf float64) types.RawDescription {
	return types.RawDescription{
		Text:                descriptiveSentence,
		Span:                types.Span{Start: 0, End: len(descriptiveSentence)},
		Type:                types.TypeLocation,
		ProcessorConfidence: conf,
	}
}

// testContext builds an engine context over mock extractors only.
func testContext(t *testing.T, mocks map[string]*extract.MockStrategy, mutate func(*config.Config)) *EngineContext {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Processors = map[string]config.ProcessorConfig{}
	reg := extract.NewRegistry()
	for name, m := range mocks {
		pCfg := config.ProcessorConfig{Enabled: true, Weight: 1.0}
		cfg.Processors[name] = pCfg
		reg.Register(name, m, pCfg)
	}
	if mutate != nil {
		mutate(cfg)
	}

	return NewContext(cfg,
		WithRegistry(reg),
		WithSegmenter(segment.New(segment.WithTagger(nil))),
	)
}

func TestExtractEmptyChapter(t *testing.T) {
	mock := extract.NewMock()
	mock.Results = []types.RawDescription{locationRaw(0.8)}
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil))

	result, err := e.Extract(context.Background(), "", "ch-1")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for empty chapter", err)
	}
	if len(result.Descriptions) != 0 {
		t.Errorf("Descriptions = %d, want 0", len(result.Descriptions))
	}
	if result.ProcessingTime < 0 {
		t.Errorf("ProcessingTime = %f, want >= 0", result.ProcessingTime)
	}
	if mock.Calls() != 0 {
		t.Error("extractors must not run on an empty chapter")
	}
}

func TestExtractNoProcessors(t *testing.T) {
	e := New(testContext(t, nil, nil))

	_, err := e.Extract(context.Background(), chapterText, "ch-1")
	if !errors.Is(err, ErrNoProcessors) {
		t.Errorf("error = %v, want ErrNoProcessors", err)
	}
}

func TestExtractUnknownMode(t *testing.T) {
	mock := extract.NewMock()
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil))

	_, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(Mode("bogus")))
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("error = %v, want ErrUnknownMode", err)
	}
}

func TestExtractUnknownProcessor(t *testing.T) {
	mock := extract.NewMock()
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil))

	_, err := e.Extract(context.Background(), chapterText, "ch-1", WithProcessor("nope"))
	if !errors.Is(err, ErrUnknownProcessor) {
		t.Errorf("error = %v, want ErrUnknownProcessor", err)
	}
}

func TestExtractDeterministic(t *testing.T) {
	mkMocks := func() map[string]*extract.MockStrategy {
		a := extract.NewMock()
		a.StrategyName = "a"
		a.Results = []types.RawDescription{locationRaw(0.8)}
		b := extract.NewMock()
		b.StrategyName = "b"
		b.Results = []types.RawDescription{locationRaw(0.7)}
		return map[string]*extract.MockStrategy{"a": a, "b": b}
	}
	e := New(testContext(t, mkMocks(), nil))

	first, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(first.Descriptions) != len(second.Descriptions) {
		t.Fatalf("description counts differ: %d vs %d", len(first.Descriptions), len(second.Descriptions))
	}
	for i := range first.Descriptions {
		f, s := first.Descriptions[i], second.Descriptions[i]
		if f.OverallScore != s.OverallScore {
			t.Errorf("scores differ at %d: %f vs %f", i, f.OverallScore, s.OverallScore)
		}
		if f.Text != s.Text || f.Type != s.Type {
			t.Errorf("ordering differs at %d", i)
		}
	}
}

func TestExtractOrderingInvariant(t *testing.T) {
	a := extract.NewMock()
	a.StrategyName = "a"
	a.Results = []types.RawDescription{
		locationRaw(0.9),
		{
			Text:                "Он побежал быстро к двери и вышел прочь.",
			Span:                types.Span{Start: 10, End: 30},
			Type:                types.TypeAction,
			ProcessorConfidence: 0.7,
		},
	}
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": a}, nil))

	result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeParallel))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for i := 1; i < len(result.Descriptions); i++ {
		if result.Descriptions[i].OverallScore > result.Descriptions[i-1].OverallScore {
			t.Error("overall score must be non-increasing across the result")
		}
	}
}

func TestEnsembleSingleExtractorFallback(t *testing.T) {
	a := extract.NewMock()
	a.StrategyName = "a"
	a.Results = []types.RawDescription{locationRaw(0.8)}
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": a}, nil))

	result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(result.Descriptions) == 0 {
		t.Fatal("expected descriptions from single-extractor ensemble")
	}
	for _, d := range result.Descriptions {
		if d.ConsensusStrength != 1.0 {
			t.Errorf("ConsensusStrength = %f, want 1.0 with one active extractor", d.ConsensusStrength)
		}
	}
}

func TestScenarioLocationRankedFirst(t *testing.T) {
	// End-to-end over real extractors: the lexicon adapter must find the
	// castle and the location must rank first.
	cfg := config.DefaultConfig()
	delete(cfg.Processors, "prose") // English NER adds nothing on Russian text
	reg := extract.BuildRegistry(cfg, nil)
	ec := NewContext(cfg, WithRegistry(reg), WithSegmenter(segment.New(segment.WithTagger(nil))))

	result, err := New(ec).Extract(context.Background(), descriptiveSentence, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(result.Descriptions) == 0 {
		t.Fatal("expected a non-empty description list")
	}
	if result.Descriptions[0].Type != types.TypeLocation {
		t.Errorf("first description type = %s, want location", result.Descriptions[0].Type)
	}
}

func TestDialogueOnlyChapter(t *testing.T) {
	cfg := config.DefaultConfig()
	delete(cfg.Processors, "prose")
	reg := extract.BuildRegistry(cfg, nil)
	ec := NewContext(cfg, WithRegistry(reg), WithSegmenter(segment.New(segment.WithTagger(nil))))

	text := "— Ты куда? — спросил он.\n\n— Не знаю, — ответила она.\n\n— Тогда молчи."
	result, err := New(ec).Extract(context.Background(), text, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v, dialogue-only chapter must not fail", err)
	}
	for _, d := range result.Descriptions {
		if d.OverallScore > 0.6 {
			t.Errorf("dialogue-only chapter produced high-scoring candidate: %+v", d)
		}
	}
}

func TestExtractorTimeoutContained(t *testing.T) {
	slow := extract.NewMock()
	slow.StrategyName = "slow"
	slow.Latency = 500 * time.Millisecond
	slow.Results = []types.RawDescription{locationRaw(0.9)}

	fast := extract.NewMock()
	fast.StrategyName = "fast"
	fast.Results = []types.RawDescription{locationRaw(0.8)}

	e := New(testContext(t, map[string]*extract.MockStrategy{"slow": slow, "fast": fast},
		func(cfg *config.Config) {
			cfg.Engine.ExtractorTimeout = 50 * time.Millisecond
		}))

	result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeParallel))
	if err != nil {
		t.Fatalf("Extract() error = %v, timeout must not fail the batch", err)
	}
	if len(result.Descriptions) == 0 {
		t.Fatal("expected the fast extractor's contribution to survive")
	}
	for _, d := range result.Descriptions {
		for _, p := range d.ContributingProcessors {
			if p == "slow" {
				t.Error("timed-out extractor must contribute nothing")
			}
		}
	}
}

func TestExtractCancellation(t *testing.T) {
	mock := extract.NewMock()
	mock.Results = []types.RawDescription{locationRaw(0.8)}
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Extract(ctx, chapterText, "ch-1"); err == nil {
		t.Error("expected error from cancelled context, partial results must be discarded")
	}
}

func TestSequentialMatchesParallel(t *testing.T) {
	mkMocks := func() map[string]*extract.MockStrategy {
		a := extract.NewMock()
		a.StrategyName = "a"
		a.Results = []types.RawDescription{locationRaw(0.8)}
		b := extract.NewMock()
		b.StrategyName = "b"
		b.Results = []types.RawDescription{locationRaw(0.7)}
		return map[string]*extract.MockStrategy{"a": a, "b": b}
	}
	e := New(testContext(t, mkMocks(), nil))

	par, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeParallel))
	if err != nil {
		t.Fatalf("parallel error = %v", err)
	}
	seq, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeSequential))
	if err != nil {
		t.Fatalf("sequential error = %v", err)
	}

	if len(par.Descriptions) != len(seq.Descriptions) {
		t.Fatalf("description counts differ: %d vs %d", len(par.Descriptions), len(seq.Descriptions))
	}
	for i := range par.Descriptions {
		if par.Descriptions[i].OverallScore != seq.Descriptions[i].OverallScore {
			t.Errorf("scores differ at %d", i)
		}
	}
}

func TestAdaptiveDeterministic(t *testing.T) {
	mkMocks := func() map[string]*extract.MockStrategy {
		a := extract.NewMock()
		a.StrategyName = "a"
		a.Results = []types.RawDescription{locationRaw(0.8)}
		b := extract.NewMock()
		b.StrategyName = "b"
		b.Results = []types.RawDescription{locationRaw(0.7)}
		c := extract.NewMock()
		c.StrategyName = "c"
		c.Results = []types.RawDescription{locationRaw(0.6)}
		return map[string]*extract.MockStrategy{"a": a, "b": b, "c": c}
	}
	e := New(testContext(t, mkMocks(), nil))

	first, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeAdaptive))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeAdaptive))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(first.Descriptions) != len(second.Descriptions) {
		t.Fatal("adaptive mode must be deterministic for identical input")
	}
	if len(first.ProcessorsUsed) != len(second.ProcessorsUsed) {
		t.Fatal("adaptive processor selection must be deterministic")
	}
}

func TestAdaptiveDelegation(t *testing.T) {
	mkMocks := func() map[string]*extract.MockStrategy {
		a := extract.NewMock()
		a.StrategyName = "a"
		a.Results = []types.RawDescription{locationRaw(0.8)}
		b := extract.NewMock()
		b.StrategyName = "b"
		b.Results = []types.RawDescription{locationRaw(0.7)}
		c := extract.NewMock()
		c.StrategyName = "c"
		c.Results = []types.RawDescription{locationRaw(0.6)}
		return map[string]*extract.MockStrategy{"a": a, "b": b, "c": c}
	}

	t.Run("mid band lowered pulls in all extractors", func(t *testing.T) {
		e := New(testContext(t, mkMocks(), func(cfg *config.Config) {
			cfg.Engine.ComplexityMid = 0
		}))

		result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeAdaptive))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if result.Mode != ModeAdaptive {
			t.Errorf("Mode = %s, want adaptive", result.Mode)
		}
		if result.DelegatedMode != ModeEnsemble {
			t.Errorf("DelegatedMode = %s, want ensemble with three extractors selected", result.DelegatedMode)
		}
		if len(result.ProcessorsUsed) != 3 {
			t.Errorf("ProcessorsUsed = %v, want all three", result.ProcessorsUsed)
		}
	})

	t.Run("low band raised forces single extractor", func(t *testing.T) {
		e := New(testContext(t, mkMocks(), func(cfg *config.Config) {
			cfg.Engine.ComplexityLow = 1.0
			cfg.Engine.ComplexityMid = 1.0
		}))

		result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeAdaptive))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if result.DelegatedMode != ModeSingle {
			t.Errorf("DelegatedMode = %s, want single below the low band", result.DelegatedMode)
		}
		if len(result.ProcessorsUsed) != 1 {
			t.Errorf("ProcessorsUsed = %v, want one extractor", result.ProcessorsUsed)
		}
	})

	t.Run("non-adaptive runs report no delegation", func(t *testing.T) {
		e := New(testContext(t, mkMocks(), nil))

		result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if result.DelegatedMode != "" {
			t.Errorf("DelegatedMode = %s, want empty outside adaptive mode", result.DelegatedMode)
		}
	})
}

func TestTextComplexity(t *testing.T) {
	if got := TextComplexity(""); got != 0 {
		t.Errorf("TextComplexity(\"\") = %f, want 0", got)
	}

	simple := "Кот спал."
	hard := "Величественный Эрмитаж возвышался над набережной, и Александр, увидев Екатерину возле Зимнего дворца, замер, пораженный игрой вечернего света на бесконечных фасадах, отражавшихся в свинцовой воде Невы."
	if TextComplexity(simple) >= TextComplexity(hard) {
		t.Error("complexity must grow with longer, denser, name-rich text")
	}

	for _, text := range []string{simple, hard, chapterText} {
		c := TextComplexity(text)
		if c < 0 || c > 1 {
			t.Errorf("TextComplexity(%q) = %f, want [0,1]", text, c)
		}
		if c != TextComplexity(text) {
			t.Error("complexity must be deterministic")
		}
	}
}

// fakeEnricher returns fixed metadata and records calls.
type fakeEnricher struct {
	calls int
	fail  bool
}

func (f *fakeEnricher) Enrich(ctx context.Context, d types.CompleteDescription) (map[string]any, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("enrichment backend down")
	}
	return map[string]any{"subject": "castle", "mood": "ominous", "time_of_day": "evening"}, nil
}

func TestEnrichmentGate(t *testing.T) {
	t.Run("below gate untouched", func(t *testing.T) {
		mock := extract.NewMock()
		mock.Results = []types.RawDescription{locationRaw(0.8)}
		fake := &fakeEnricher{}
		ec := testContext(t, map[string]*extract.MockStrategy{"a": mock},
			func(cfg *config.Config) { cfg.Enricher.Gate = 0.99 })
		ec.Enricher = fake

		result, err := New(ec).Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if fake.calls != 0 {
			t.Errorf("enricher called %d times, want 0 below gate", fake.calls)
		}
		for _, d := range result.Descriptions {
			if len(d.EnrichmentMetadata) != 0 {
				t.Error("sub-gate candidate must have empty enrichment metadata")
			}
		}
	})

	t.Run("above gate enriched", func(t *testing.T) {
		mock := extract.NewMock()
		mock.Results = []types.RawDescription{locationRaw(0.8)}
		fake := &fakeEnricher{}
		ec := testContext(t, map[string]*extract.MockStrategy{"a": mock},
			func(cfg *config.Config) { cfg.Enricher.Gate = 0.5 })
		ec.Enricher = fake

		result, err := New(ec).Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if fake.calls == 0 {
			t.Fatal("expected enricher calls above gate")
		}
		if len(result.Descriptions) == 0 || len(result.Descriptions[0].EnrichmentMetadata) == 0 {
			t.Error("expected enrichment metadata on top candidate")
		}
	})

	t.Run("per-candidate failure contained", func(t *testing.T) {
		mock := extract.NewMock()
		mock.Results = []types.RawDescription{locationRaw(0.8)}
		fake := &fakeEnricher{fail: true}
		ec := testContext(t, map[string]*extract.MockStrategy{"a": mock},
			func(cfg *config.Config) { cfg.Enricher.Gate = 0.5 })
		ec.Enricher = fake

		result, err := New(ec).Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
		if err != nil {
			t.Fatalf("Extract() error = %v, enrichment failure must not abort the batch", err)
		}
		if len(result.Descriptions) == 0 {
			t.Fatal("candidates must survive enrichment failure")
		}
		if len(result.Descriptions[0].EnrichmentMetadata) != 0 {
			t.Error("failed candidate must have empty metadata")
		}
	})

	t.Run("nil enricher is a no-op", func(t *testing.T) {
		mock := extract.NewMock()
		mock.Results = []types.RawDescription{locationRaw(0.8)}
		ec := testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil)

		result, err := New(ec).Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(result.Descriptions) == 0 {
			t.Fatal("expected descriptions without enricher")
		}
	})
}

func TestQualityMetricsAndRecommendations(t *testing.T) {
	mock := extract.NewMock()
	mock.Results = []types.RawDescription{locationRaw(0.8)}
	e := New(testContext(t, map[string]*extract.MockStrategy{"a": mock}, nil))

	result, err := e.Extract(context.Background(), chapterText, "ch-1", WithMode(ModeEnsemble))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.QualityMetrics["description_count"] != float64(len(result.Descriptions)) {
		t.Error("description_count metric mismatch")
	}
	if result.QualityMetrics["paragraph_count"] == 0 {
		t.Error("paragraph_count metric missing")
	}
	if len(result.Recommendations) == 0 {
		t.Error("single active extractor should produce a recommendation")
	}
	if result.RunID == "" {
		t.Error("expected run id")
	}
}
