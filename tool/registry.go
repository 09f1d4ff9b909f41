package tool

import (
	"context"
	"encoding/json"

	"github.com/tmc/langchaingo/tools"
)

// Registry holds the tools available to an agent, keyed by name, and
// executes calls against them. Registration happens at agent build
// time; execution is read-only, so no locking is needed.
type Registry struct {
	tools map[string]tools.Tool
	order []string
}

// NewRegistry creates a registry from the given tools. Later tools
// with the same name replace earlier ones.
func NewRegistry(ts ...tools.Tool) *Registry {
	r := &Registry{tools: make(map[string]tools.Tool, len(ts))}
	for _, t := range ts {
		if _, ok := r.tools[t.Name()]; !ok {
			r.order = append(r.order, t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (tools.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Validate checks that the call names a registered tool and that its
// arguments are well-formed JSON (or empty). A bad call returns a
// *ValidationError; Validate never executes anything.
func (r *Registry) Validate(call Call) error {
	if _, ok := r.tools[call.Name]; !ok {
		return &ValidationError{Call: call, Reason: "tool is not registered"}
	}
	if call.Arguments != "" && !json.Valid([]byte(call.Arguments)) {
		return &ValidationError{Call: call, Reason: "arguments are not valid JSON"}
	}
	return nil
}

// Execute runs the call against the registered tool. Validation
// problems come back as a *ValidationError; the tool's own failure is
// captured in the Result, not returned as an error.
func (r *Registry) Execute(ctx context.Context, call Call) (Result, error) {
	if err := r.Validate(call); err != nil {
		return Result{}, err
	}

	input := call.Arguments
	// langchaingo tools take a single string input; unwrap the
	// {"input": "..."} convention used by the tool schema.
	if call.Arguments != "" {
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err == nil {
			if v, ok := args["input"].(string); ok {
				input = v
			}
		}
	}

	out, err := r.tools[call.Name].Call(ctx, input)
	if err != nil {
		return Failure(call, "%v", err), nil
	}
	return Success(call, out), nil
}
