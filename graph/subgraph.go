package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/agentgraph/log"
)

// Subgraph is a named, self-contained region of the graph with exactly
// one start node and one finish node. A subgraph is itself a node, so
// regions compose: a parent graph routes into the subgraph's start and
// picks up the finish node's value as the subgraph node's output.
type Subgraph struct {
	baseNode // name and the edges leaving the subgraph when used as a node

	start  *StartNode
	finish *FinishNode
	policy ToolSelectionPolicy
	logger log.Logger
}

var _ Node = (*Subgraph)(nil)

// Kind identifies the node variant.
func (s *Subgraph) Kind() NodeKind { return NodeKindSubgraph }

// Start returns the start anchor.
func (s *Subgraph) Start() Node { return s.start }

// Finish returns the finish anchor.
func (s *Subgraph) Finish() Node { return s.finish }

// ToolPolicy returns the tool selection policy scoped to this region.
func (s *Subgraph) ToolPolicy() ToolSelectionPolicy { return s.policy }

// Execute runs the subgraph's internal loop: execute the current node,
// resolve the next edge, repeat until the finish node is reached. A
// node output no edge accepts is a fatal routing failure.
func (s *Subgraph) Execute(ctx context.Context, ec *ExecContext, input any) (any, error) {
	restore := ec.pushToolPolicy(s.policy)
	defer restore()

	current := Node(s.start)
	value := input

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := executeUnsafe(ctx, ec, current, value)
		if err != nil {
			return nil, err
		}

		if current == Node(s.finish) {
			return output, nil
		}

		resolved, err := current.ResolveEdge(ctx, ec, output)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			return nil, &NoEdgeError{Node: current.Name(), Output: output}
		}

		s.logger.Debug("subgraph %s: %s -> %s", s.name, current.Name(), resolved.Edge.Target().Name())
		current = resolved.Edge.Target()
		value = resolved.Output
	}
}

// executeUnsafe wraps a node's execute with the pipeline's before/after
// hooks and the current-node context tag. Anchor nodes are identity
// pass-throughs: they fire no hooks and do not count against the
// iteration budget. The after hook is deliberately not a "finally": it
// fires only on success.
func executeUnsafe(ctx context.Context, ec *ExecContext, n Node, input any) (any, error) {
	switch n.Kind() {
	case NodeKindStart, NodeKindFinish:
		return n.Execute(ctx, ec, input)
	case NodeKindTask:
		if err := ec.nextIteration(); err != nil {
			return nil, err
		}
	}

	ctx = withCurrentNode(ctx, n.Name())

	if err := ec.pipeline.Trigger(ctx, BeforeNodeEvent{
		RunID:    ec.runID,
		NodeName: n.Name(),
		Input:    input,
	}); err != nil {
		return nil, err
	}

	output, err := n.Execute(ctx, ec, input)
	if err != nil {
		return nil, err
	}

	if err := ec.pipeline.Trigger(ctx, AfterNodeEvent{
		RunID:    ec.runID,
		NodeName: n.Name(),
		Input:    input,
		Output:   output,
	}); err != nil {
		return nil, err
	}

	return output, nil
}

// SubgraphBuilder wires a subgraph: nodes, edges between them, and the
// region's tool policy. Construction errors (duplicate names, edges on
// the finish node) accumulate and surface at Build, before any run
// starts.
type SubgraphBuilder struct {
	name   string
	policy ToolSelectionPolicy
	logger log.Logger

	start  *StartNode
	finish *FinishNode
	names  map[string]struct{}
	errs   []error
}

// NewSubgraphBuilder creates a builder. The start and finish anchors
// derive their names from the subgraph name, keeping them unique
// across nested subgraphs.
func NewSubgraphBuilder(name string) *SubgraphBuilder {
	return &SubgraphBuilder{
		name:   name,
		logger: log.GetDefaultLogger(),
		start:  newStartNode(name),
		finish: newFinishNode(name),
		names:  make(map[string]struct{}),
	}
}

// WithToolPolicy sets the tool selection policy for the region.
func (b *SubgraphBuilder) WithToolPolicy(p ToolSelectionPolicy) *SubgraphBuilder {
	b.policy = p
	return b
}

// WithLogger sets the logger used for routing decisions.
func (b *SubgraphBuilder) WithLogger(logger log.Logger) *SubgraphBuilder {
	b.logger = logger
	return b
}

// Start returns the start anchor for edge wiring.
func (b *SubgraphBuilder) Start() Node { return b.start }

// Finish returns the finish anchor for edge wiring.
func (b *SubgraphBuilder) Finish() Node { return b.finish }

// AddNode registers a node in the subgraph's namespace. A duplicate
// name is a construction error. The node is returned for chaining.
func (b *SubgraphBuilder) AddNode(n Node) Node {
	if _, ok := b.names[n.Name()]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %q in subgraph %q", ErrDuplicateNode, n.Name(), b.name))
		return n
	}
	b.names[n.Name()] = struct{}{}
	return n
}

// Connect wires from -> to, recording any construction error.
func (b *SubgraphBuilder) Connect(from, to Node, opts ...EdgeOption) *SubgraphBuilder {
	if err := Connect(from, to, opts...); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build validates and returns the subgraph.
func (b *SubgraphBuilder) Build() (*Subgraph, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return &Subgraph{
		baseNode: baseNode{name: b.name},
		start:    b.start,
		finish:   b.finish,
		policy:   b.policy,
		logger:   b.logger,
	}, nil
}
