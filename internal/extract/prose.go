package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	prose "github.com/jdkato/prose/v2"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/types"
)

// ProcessorProse is the source_processor identifier of the prose adapter.
const ProcessorProse = "prose"

// proseStrategy wraps the prose NLP backend (tokenizer, POS tagger, NER).
// The model loads lazily on first use; load failure is memoized and surfaces
// as ErrUnavailable on every call.
type proseStrategy struct {
	cfg config.ProcessorConfig

	loadOnce sync.Once
	loadErr  error
}

// NewProse creates the prose-backed extractor. Construction is cheap; the
// model is not touched until the first Extract call.
func NewProse(cfg config.ProcessorConfig) Strategy {
	return &proseStrategy{cfg: cfg}
}

func (s *proseStrategy) Name() string { return ProcessorProse }

// ensureLoaded probes the backend once. prose ships its model in the binary,
// but the probe keeps the two-phase contract uniform across adapters.
func (s *proseStrategy) ensureLoaded() error {
	s.loadOnce.Do(func() {
		if _, err := prose.NewDocument("probe", prose.WithSegmentation(false)); err != nil {
			s.loadErr = fmt.Errorf("%w: prose backend: %v", ErrUnavailable, err)
		}
	})
	return s.loadErr
}

func (s *proseStrategy) Extract(ctx context.Context, p types.Paragraph) ([]types.RawDescription, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	var cands []types.RawDescription
	for _, sent := range splitSentences(p.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := prose.NewDocument(sent.text, prose.WithSegmentation(false))
		if err != nil {
			continue
		}
		entities := doc.Entities()
		if len(entities) == 0 {
			continue
		}

		var tags []types.EntityTag
		counts := map[types.DescriptionType]int{}
		searchFrom := 0
		for _, ent := range entities {
			dType := mapProseLabel(ent.Label)
			counts[dType]++
			if idx := strings.Index(sent.text[searchFrom:], ent.Text); idx >= 0 {
				start := p.StartOffset + sent.start + searchFrom + idx
				tags = append(tags, types.EntityTag{
					Text:  ent.Text,
					Label: ent.Label,
					Start: start,
					End:   start + len(ent.Text),
				})
				searchFrom += idx + len(ent.Text)
			}
		}

		best, bestCount := types.TypeObject, 0
		for dType, c := range counts {
			if c > bestCount || (c == bestCount && dType.Priority() < best.Priority()) {
				best, bestCount = dType, c
			}
		}

		conf := 0.55 + 0.1*float64(len(entities))
		if conf > 0.9 {
			conf = 0.9
		}

		cands = append(cands, types.RawDescription{
			Text: sent.text,
			Span: types.Span{
				Start: p.StartOffset + sent.start,
				End:   p.StartOffset + sent.end,
			},
			Type:                best,
			EntityTags:          tags,
			SourceProcessor:     ProcessorProse,
			ProcessorConfidence: conf,
		})
	}
	return applyConfig(cands, s.cfg), nil
}

// mapProseLabel converts prose NER labels to description types.
func mapProseLabel(label string) types.DescriptionType {
	switch label {
	case "GPE", "LOC", "FAC":
		return types.TypeLocation
	case "PERSON":
		return types.TypeCharacter
	case "EVENT":
		return types.TypeAction
	default:
		return types.TypeObject
	}
}
