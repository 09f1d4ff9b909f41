package graph

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrFinishNodeEdge is returned when an edge is added to a finish node.
	ErrFinishNodeEdge = errors.New("finish nodes cannot have outgoing edges")

	// ErrDuplicateNode is returned when two nodes in one subgraph share a name.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrNilEdgeTarget is returned when an edge is created without a target node.
	ErrNilEdgeTarget = errors.New("edge target must not be nil")

	// ErrAgentClosed is returned when Run is called on a closed agent.
	ErrAgentClosed = errors.New("agent is closed")
)

// NoEdgeError reports a routing failure: a node produced an output and
// none of its edges accepted it. A dangling transition is a bug in the
// graph, never silently dropped.
type NoEdgeError struct {
	// Node is the name of the node whose output went unrouted.
	Node string

	// Output is the value no edge accepted.
	Output any
}

func (e *NoEdgeError) Error() string {
	return fmt.Sprintf("no edge matched output of node %q (output type %T)", e.Node, e.Output)
}

// MaxIterationsError reports that a run exceeded its iteration budget.
// It is a distinct type so callers can tell "agent got stuck looping"
// apart from other failures.
type MaxIterationsError struct {
	// Limit is the configured maximum number of node executions.
	Limit int64
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("maximum iterations exceeded (%d node executions)", e.Limit)
}

// TypeMismatchError reports a payload of the wrong dynamic type hitting
// a typed boundary: a node input or an edge transform. The conversion
// is checked so a miswired graph fails with the node and types named,
// not with a cast panic mid-run.
type TypeMismatchError struct {
	// Node is the name of the node at whose boundary the mismatch occurred.
	Node string

	// Want is the expected type.
	Want reflect.Type

	// Got is the actual type of the payload (nil for a nil payload).
	Got reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("node %q: payload type mismatch: want %v, got %v", e.Node, e.Want, e.Got)
}
