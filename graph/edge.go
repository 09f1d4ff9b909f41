package graph

import (
	"context"
	"reflect"
)

// Predicate decides whether an edge accepts a node output. It receives
// the untransformed output.
type Predicate func(ctx context.Context, ec *ExecContext, output any) bool

// Transform converts an accepted output into the target node's input.
type Transform func(ctx context.Context, ec *ExecContext, output any) (any, error)

// Edge is a directed, conditionally-taken connection from a source
// node's output to a target node. Edges are owned by their source node
// and never mutated after graph construction. Declaration order is the
// resolution order: agent authors rely on it for disambiguation, so it
// is never reordered or indexed away.
type Edge struct {
	target    Node
	predicate Predicate
	transform Transform
}

// EdgeOption configures an edge at construction time.
type EdgeOption func(*Edge)

// NewEdge creates an edge to target. Without options the edge always
// accepts and forwards the output unchanged.
func NewEdge(target Node, opts ...EdgeOption) *Edge {
	e := &Edge{target: target}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Target returns the node this edge points to.
func (e *Edge) Target() Node { return e.target }

// WithPredicate sets the edge predicate.
func WithPredicate(p Predicate) EdgeOption {
	return func(e *Edge) { e.predicate = p }
}

// WithTransform sets the edge transform.
func WithTransform(t Transform) EdgeOption {
	return func(e *Edge) { e.transform = t }
}

// When builds a typed predicate. An output of a different dynamic type
// simply does not match, letting a later edge take it.
func When[T any](fn func(ctx context.Context, ec *ExecContext, output T) bool) Predicate {
	return func(ctx context.Context, ec *ExecContext, output any) bool {
		v, ok := output.(T)
		if !ok {
			return false
		}
		return fn(ctx, ec, v)
	}
}

// Map builds a typed transform with a checked conversion: a payload of
// the wrong dynamic type is a *TypeMismatchError, not a cast panic.
func Map[In, Out any](fn func(ctx context.Context, ec *ExecContext, output In) (Out, error)) Transform {
	return func(ctx context.Context, ec *ExecContext, output any) (any, error) {
		v, ok := output.(In)
		if !ok {
			return nil, &TypeMismatchError{
				Want: reflect.TypeFor[In](),
				Got:  reflect.TypeOf(output),
			}
		}
		return fn(ctx, ec, v)
	}
}

// accepts evaluates the predicate, defaulting to "always accept".
func (e *Edge) accepts(ctx context.Context, ec *ExecContext, output any) bool {
	if e.predicate == nil {
		return true
	}
	return e.predicate(ctx, ec, output)
}

// apply runs the transform, defaulting to identity.
func (e *Edge) apply(ctx context.Context, ec *ExecContext, output any) (any, error) {
	if e.transform == nil {
		return output, nil
	}
	return e.transform(ctx, ec, output)
}

// ResolvedEdge pairs the edge chosen by the resolver with the
// transformed output it carries to the target node. It is transient:
// produced once per resolution step, never persisted.
type ResolvedEdge struct {
	Edge   *Edge
	Output any
}

// Connect wires from -> to with the given options. It is shorthand for
// from.AddEdge(NewEdge(to, opts...)).
func Connect(from, to Node, opts ...EdgeOption) error {
	return from.AddEdge(NewEdge(to, opts...))
}
