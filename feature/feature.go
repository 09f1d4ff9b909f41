// Package feature defines the contract between the engine and its
// cross-cutting features: a Feature installs handlers into an agent's
// interception pipeline at construction time, and a MessageSink is
// where observing features deliver formatted events.
//
// Features are explicit dependencies: the agent owns the pipeline and
// the installed feature instances. There is no process-wide registry.
package feature

import (
	"context"

	"github.com/smallnest/agentgraph/graph"
)

// Feature is a cross-cutting capability (tracing, telemetry, history)
// that observes execution through the interception pipeline.
type Feature interface {
	// Key identifies the feature's registrations in the pipeline.
	Key() string

	// Install registers the feature's handlers. It is called once, at
	// agent construction time.
	Install(p *graph.InterceptionPipeline) error
}

// MessageSink receives events from observing features. Delivery order
// matches the pipeline's hook invocation order.
type MessageSink interface {
	ProcessMessage(ctx context.Context, event graph.Event) error
}

// MessageSinkFunc is a function adapter for MessageSink.
type MessageSinkFunc func(ctx context.Context, event graph.Event) error

// ProcessMessage implements the MessageSink interface.
func (f MessageSinkFunc) ProcessMessage(ctx context.Context, event graph.Event) error {
	return f(ctx, event)
}
