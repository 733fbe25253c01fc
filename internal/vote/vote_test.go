package vote

import (
	"testing"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/score"
	"github.com/lumireader/descry/internal/types"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AcceptanceFloor:    0.45,
		ConsensusThreshold: 0.6,
		OverlapRatio:       0.5,
	}
}

func flatStructural(types.Span) float64 { return 0.6 }

func raw(source string, start, end int, dType types.DescriptionType, conf float64, text string) types.RawDescription {
	return types.RawDescription{
		Text:                text,
		Span:                types.Span{Start: start, End: end},
		Type:                dType,
		SourceProcessor:     source,
		ProcessorConfidence: conf,
	}
}

func TestGroupOverlapping(t *testing.T) {
	t.Run("merges overlapping same type", func(t *testing.T) {
		groups := GroupOverlapping([]types.RawDescription{
			raw("a", 10, 30, types.TypeCharacter, 0.8, "старый маг у окна"),
			raw("b", 12, 32, types.TypeCharacter, 0.7, "старый маг у окна дома"),
		}, 0.5)
		if len(groups) != 1 {
			t.Fatalf("got %d groups, want 1", len(groups))
		}
		if len(groups[0]) != 2 {
			t.Errorf("group has %d members, want 2", len(groups[0]))
		}
	})

	t.Run("different types never merge", func(t *testing.T) {
		groups := GroupOverlapping([]types.RawDescription{
			raw("a", 10, 30, types.TypeCharacter, 0.8, "x"),
			raw("b", 10, 30, types.TypeLocation, 0.7, "x"),
		}, 0.5)
		if len(groups) != 2 {
			t.Errorf("got %d groups, want 2", len(groups))
		}
	})

	t.Run("insufficient overlap stays separate", func(t *testing.T) {
		groups := GroupOverlapping([]types.RawDescription{
			raw("a", 0, 20, types.TypeLocation, 0.8, "x"),
			raw("b", 18, 40, types.TypeLocation, 0.7, "y"),
		}, 0.5)
		if len(groups) != 2 {
			t.Errorf("got %d groups, want 2", len(groups))
		}
	})

	t.Run("input order does not matter", func(t *testing.T) {
		a := raw("a", 10, 30, types.TypeCharacter, 0.8, "один")
		b := raw("b", 12, 32, types.TypeCharacter, 0.7, "два")
		c := raw("c", 100, 140, types.TypeLocation, 0.9, "три")

		g1 := GroupOverlapping([]types.RawDescription{a, b, c}, 0.5)
		g2 := GroupOverlapping([]types.RawDescription{c, b, a}, 0.5)
		if len(g1) != len(g2) {
			t.Fatalf("group counts differ: %d vs %d", len(g1), len(g2))
		}
	})
}

func TestDedupIdempotent(t *testing.T) {
	raws := []types.RawDescription{
		raw("a", 10, 30, types.TypeCharacter, 0.8, "старый маг у окна"),
		raw("b", 12, 32, types.TypeCharacter, 0.7, "старый маг у окна дома"),
		raw("c", 100, 140, types.TypeLocation, 0.9, "темный замок на холме"),
	}

	groups := GroupOverlapping(raws, 0.5)
	merged := make([]types.RawDescription, 0, len(groups))
	for _, g := range groups {
		merged = append(merged, Representative(g))
	}

	// Fixed point: regrouping an already-merged list produces no further merges.
	again := GroupOverlapping(merged, 0.5)
	if len(again) != len(merged) {
		t.Fatalf("regrouping merged list changed group count: %d vs %d", len(again), len(merged))
	}
	for _, g := range again {
		if len(g) != 1 {
			t.Errorf("group has %d members after second pass, want 1", len(g))
		}
	}
}

func TestRepresentativeKeepsLongerText(t *testing.T) {
	group := []types.RawDescription{
		raw("a", 10, 30, types.TypeCharacter, 0.9, "старый маг"),
		raw("b", 10, 36, types.TypeCharacter, 0.6, "старый маг в сером плаще"),
	}
	rep := Representative(group)
	if rep.Text != "старый маг в сером плаще" {
		t.Errorf("Representative kept %q, want the longer text", rep.Text)
	}
}

func TestVoteConsensusMerge(t *testing.T) {
	// Scenario: two extractors independently propose overlapping CHARACTER
	// spans covering the same phrase.
	voter := New(score.New(0), testEngineConfig(), nil)

	perProcessor := map[string][]types.RawDescription{
		"a": {raw("a", 10, 40, types.TypeCharacter, 0.7, "старый маг в сером плаще стоял")},
		"b": {raw("b", 12, 42, types.TypeCharacter, 0.65, "старый маг в сером плаще стоял тихо")},
	}
	configs := map[string]config.ProcessorConfig{
		"a": {Weight: 1.0},
		"b": {Weight: 0.9},
	}

	out := voter.Vote(perProcessor, configs, flatStructural, 2)
	if len(out) != 1 {
		t.Fatalf("got %d descriptions, want 1 merged", len(out))
	}
	d := out[0]
	if d.ConsensusStrength < 0.5 {
		t.Errorf("ConsensusStrength = %f, want >= 0.5", d.ConsensusStrength)
	}
	if len(d.ContributingProcessors) != 2 {
		t.Errorf("ContributingProcessors = %v, want 2 entries", d.ContributingProcessors)
	}
}

func TestVoteAcceptanceFloor(t *testing.T) {
	voter := New(score.New(0), testEngineConfig(), nil)

	t.Run("weak single signal rejected", func(t *testing.T) {
		perProcessor := map[string][]types.RawDescription{
			"a": {raw("a", 0, 30, types.TypeLocation, 0.3, "неуверенное описание замка")},
		}
		configs := map[string]config.ProcessorConfig{"a": {Weight: 1.0}}

		// 1 of 3 active extractors: no consensus, weighted confidence 0.3 < 0.45.
		out := voter.Vote(perProcessor, configs, flatStructural, 3)
		if len(out) != 0 {
			t.Errorf("got %d descriptions, want 0", len(out))
		}
	})

	t.Run("weak signal kept via consensus boost", func(t *testing.T) {
		perProcessor := map[string][]types.RawDescription{
			"a": {raw("a", 0, 30, types.TypeLocation, 0.3, "неуверенное описание замка")},
			"b": {raw("b", 2, 32, types.TypeLocation, 0.3, "неуверенное описание замка и")},
		}
		configs := map[string]config.ProcessorConfig{"a": {Weight: 1.0}, "b": {Weight: 1.0}}

		// 2 of 3 active extractors agree: 66% >= 60% consensus threshold.
		out := voter.Vote(perProcessor, configs, flatStructural, 3)
		if len(out) != 1 {
			t.Errorf("got %d descriptions, want 1 via consensus", len(out))
		}
	})

	t.Run("weight scales confidence below the floor", func(t *testing.T) {
		// Identical confidence, different weight: 0.5*0.8 = 0.40 < 0.45.
		perProcessor := map[string][]types.RawDescription{
			"a": {raw("a", 0, 30, types.TypeLocation, 0.5, "описание замка средней силы")},
		}
		configs := map[string]config.ProcessorConfig{"a": {Weight: 0.8}}

		out := voter.Vote(perProcessor, configs, flatStructural, 3)
		if len(out) != 0 {
			t.Errorf("got %d descriptions, want 0 when the weighted confidence misses the floor", len(out))
		}
	})

	t.Run("full weight clears the floor at same confidence", func(t *testing.T) {
		perProcessor := map[string][]types.RawDescription{
			"a": {raw("a", 0, 30, types.TypeLocation, 0.5, "описание замка средней силы")},
		}
		configs := map[string]config.ProcessorConfig{"a": {Weight: 1.0}}

		out := voter.Vote(perProcessor, configs, flatStructural, 3)
		if len(out) != 1 {
			t.Errorf("got %d descriptions, want 1 at weight 1.0", len(out))
		}
	})

	t.Run("strong weighted signal kept alone", func(t *testing.T) {
		perProcessor := map[string][]types.RawDescription{
			"a": {raw("a", 0, 30, types.TypeLocation, 0.8, "уверенное описание замка тут")},
		}
		configs := map[string]config.ProcessorConfig{"a": {Weight: 1.0}}

		out := voter.Vote(perProcessor, configs, flatStructural, 3)
		if len(out) != 1 {
			t.Errorf("got %d descriptions, want 1", len(out))
		}
	})
}

func TestSortDescriptionsTieBreak(t *testing.T) {
	descs := []types.CompleteDescription{
		{Type: types.TypeAction, OverallScore: 0.5, ChapterOffset: 0},
		{Type: types.TypeLocation, OverallScore: 0.5, ChapterOffset: 10},
		{Type: types.TypeCharacter, OverallScore: 0.5, ChapterOffset: 5},
		{Type: types.TypeObject, OverallScore: 0.9, ChapterOffset: 50},
	}
	SortDescriptions(descs)

	if descs[0].OverallScore != 0.9 {
		t.Errorf("highest score must rank first, got %f", descs[0].OverallScore)
	}
	if descs[1].Type != types.TypeLocation || descs[2].Type != types.TypeCharacter || descs[3].Type != types.TypeAction {
		t.Errorf("tie-break order wrong: %s, %s, %s", descs[1].Type, descs[2].Type, descs[3].Type)
	}

	// Ordering invariant: non-increasing overall score.
	for i := 1; i < len(descs); i++ {
		if descs[i].OverallScore > descs[i-1].OverallScore {
			t.Error("overall score must be non-increasing")
		}
	}
}
