package graph

import (
	"context"
)

// Strategy is the root subgraph of an agent program. It adds the
// lifecycle ceremony a run needs around plain subgraph execution:
// strategy-started and strategy-finished pipeline events, and problem
// reporting to the environment on any failure before propagating it.
type Strategy struct {
	*Subgraph
}

// Execute runs the strategy.
func (s *Strategy) Execute(ctx context.Context, ec *ExecContext, input any) (any, error) {
	output, err := s.run(ctx, ec, input)
	if err != nil {
		if ec.env != nil {
			ec.env.ReportProblem(ctx, err)
		}
		return nil, err
	}
	return output, nil
}

func (s *Strategy) run(ctx context.Context, ec *ExecContext, input any) (any, error) {
	if err := ec.pipeline.Trigger(ctx, StrategyStartedEvent{
		RunID:    ec.runID,
		Strategy: s.Name(),
		Input:    input,
	}); err != nil {
		return nil, err
	}

	output, err := s.Subgraph.Execute(ctx, ec, input)
	if err != nil {
		return nil, err
	}

	if err := ec.pipeline.Trigger(ctx, StrategyFinishedEvent{
		RunID:    ec.runID,
		Strategy: s.Name(),
		Result:   output,
	}); err != nil {
		return nil, err
	}

	return output, nil
}

// StrategyBuilder builds the root subgraph of an agent.
type StrategyBuilder struct {
	*SubgraphBuilder
}

// NewStrategyBuilder creates a strategy builder.
func NewStrategyBuilder(name string) *StrategyBuilder {
	return &StrategyBuilder{SubgraphBuilder: NewSubgraphBuilder(name)}
}

// Build validates and returns the strategy.
func (b *StrategyBuilder) Build() (*Strategy, error) {
	sub, err := b.SubgraphBuilder.Build()
	if err != nil {
		return nil, err
	}
	return &Strategy{Subgraph: sub}, nil
}
