package extract

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lumireader/descry/internal/types"
)

const MockName = "mock"

// MockStrategy is a Strategy for testing.
type MockStrategy struct {
	// Configurable behavior
	StrategyName string
	Latency      time.Duration
	Err          error
	Results      []types.RawDescription

	// State
	callCount atomic.Int64
}

// NewMock creates a new mock strategy with sensible defaults.
func NewMock() *MockStrategy {
	return &MockStrategy{StrategyName: MockName}
}

// Name returns the strategy identifier.
func (m *MockStrategy) Name() string {
	if m.StrategyName == "" {
		return MockName
	}
	return m.StrategyName
}

// Calls returns how many times Extract has been invoked.
func (m *MockStrategy) Calls() int64 {
	return m.callCount.Load()
}

// Extract returns the configured results after the configured latency,
// stamping each result with this strategy's name.
func (m *MockStrategy) Extract(ctx context.Context, p types.Paragraph) ([]types.RawDescription, error) {
	m.callCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]types.RawDescription, 0, len(m.Results))
	for _, d := range m.Results {
		d.SourceProcessor = m.Name()
		out = append(out, d)
	}
	return out, nil
}
