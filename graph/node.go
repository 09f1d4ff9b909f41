package graph

import (
	"context"
	"fmt"
	"reflect"
)

// NodeKind identifies the node variant.
type NodeKind int

const (
	// NodeKindTask is a generic execution node created with NewNode.
	NodeKindTask NodeKind = iota

	// NodeKindStart is the entry anchor of a subgraph.
	NodeKindStart

	// NodeKindFinish is the exit anchor of a subgraph.
	NodeKindFinish

	// NodeKindSubgraph is a subgraph used as a node in a parent graph.
	NodeKindSubgraph
)

// String returns the string representation of NodeKind.
func (k NodeKind) String() string {
	switch k {
	case NodeKindTask:
		return "task"
	case NodeKindStart:
		return "start"
	case NodeKindFinish:
		return "finish"
	case NodeKindSubgraph:
		return "subgraph"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Node is a single unit of work in the agent graph. Nodes are built at
// graph-construction time and immutable afterwards except for edge
// list growth while the graph is being wired.
type Node interface {
	// Name is the node's unique identifier within its owning subgraph.
	Name() string

	// Kind identifies the node variant.
	Kind() NodeKind

	// Execute performs the node's unit of work. Blocking work inside
	// (LLM calls, tool calls) honors ctx cancellation.
	Execute(ctx context.Context, ec *ExecContext, input any) (any, error)

	// AddEdge appends an outgoing edge. Edge order is resolution order.
	AddEdge(e *Edge) error

	// Edges returns the outgoing edges in declaration order.
	Edges() []*Edge

	// ResolveEdge scans the edges in order and returns the first one
	// whose predicate accepts output, paired with the transformed
	// value. It returns (nil, nil) when no edge matches.
	ResolveEdge(ctx context.Context, ec *ExecContext, output any) (*ResolvedEdge, error)
}

// baseNode carries the name and edge list shared by all variants.
type baseNode struct {
	name  string
	edges []*Edge
}

func (n *baseNode) Name() string { return n.name }

func (n *baseNode) AddEdge(e *Edge) error {
	if e == nil || e.target == nil {
		return ErrNilEdgeTarget
	}
	n.edges = append(n.edges, e)
	return nil
}

func (n *baseNode) Edges() []*Edge { return n.edges }

// ResolveEdge implements first-match-wins routing. The predicate sees
// the untransformed output; the transform runs only on acceptance.
func (n *baseNode) ResolveEdge(ctx context.Context, ec *ExecContext, output any) (*ResolvedEdge, error) {
	for _, e := range n.edges {
		if !e.accepts(ctx, ec, output) {
			continue
		}
		transformed, err := e.apply(ctx, ec, output)
		if err != nil {
			return nil, err
		}
		return &ResolvedEdge{Edge: e, Output: transformed}, nil
	}
	return nil, nil
}

// TaskNode is the generic execution node. Its input and output types
// are checked at the boundary by the NewNode wrapper.
type TaskNode struct {
	baseNode
	run func(ctx context.Context, ec *ExecContext, input any) (any, error)
}

var _ Node = (*TaskNode)(nil)

// NewNode creates a task node from a typed execute function. The
// wrapper asserts the dynamic input type and returns a
// *TypeMismatchError on a miswired payload instead of panicking.
func NewNode[In, Out any](name string, fn func(ctx context.Context, ec *ExecContext, input In) (Out, error)) *TaskNode {
	return &TaskNode{
		baseNode: baseNode{name: name},
		run: func(ctx context.Context, ec *ExecContext, input any) (any, error) {
			in, ok := input.(In)
			if !ok {
				// Allow a nil payload for interface-typed inputs.
				if input == nil && reflect.TypeFor[In]().Kind() == reflect.Interface {
					var zero In
					return fn(ctx, ec, zero)
				}
				return nil, &TypeMismatchError{
					Node: name,
					Want: reflect.TypeFor[In](),
					Got:  reflect.TypeOf(input),
				}
			}
			return fn(ctx, ec, in)
		},
	}
}

// NewTransformNode creates a task node from a pure function that needs
// neither the context nor the execution environment.
func NewTransformNode[In, Out any](name string, fn func(input In) (Out, error)) *TaskNode {
	return NewNode(name, func(_ context.Context, _ *ExecContext, input In) (Out, error) {
		return fn(input)
	})
}

// Kind identifies the node variant.
func (n *TaskNode) Kind() NodeKind { return NodeKindTask }

// Execute runs the node's function.
func (n *TaskNode) Execute(ctx context.Context, ec *ExecContext, input any) (any, error) {
	return n.run(ctx, ec, input)
}

const (
	startNamePrefix  = "__start__"
	finishNamePrefix = "__finish__"
)

// StartNode is the entry anchor of a subgraph. It is an identity node:
// Execute returns its input unchanged.
type StartNode struct {
	baseNode
}

var _ Node = (*StartNode)(nil)

func newStartNode(subgraphName string) *StartNode {
	return &StartNode{baseNode: baseNode{name: startNamePrefix + subgraphName}}
}

// Kind identifies the node variant.
func (n *StartNode) Kind() NodeKind { return NodeKindStart }

// Execute returns input unchanged.
func (n *StartNode) Execute(_ context.Context, _ *ExecContext, input any) (any, error) {
	return input, nil
}

// FinishNode is the exit anchor of a subgraph. It is an identity node
// and a dead end: adding an outgoing edge is a construction error.
type FinishNode struct {
	baseNode
}

var _ Node = (*FinishNode)(nil)

func newFinishNode(subgraphName string) *FinishNode {
	return &FinishNode{baseNode: baseNode{name: finishNamePrefix + subgraphName}}
}

// Kind identifies the node variant.
func (n *FinishNode) Kind() NodeKind { return NodeKindFinish }

// Execute returns input unchanged.
func (n *FinishNode) Execute(_ context.Context, _ *ExecContext, input any) (any, error) {
	return input, nil
}

// AddEdge always fails: a finish node has no outgoing edges.
func (n *FinishNode) AddEdge(*Edge) error {
	return fmt.Errorf("%w: %s", ErrFinishNodeEdge, n.name)
}
