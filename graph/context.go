package graph

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/tool"
)

// Environment is the engine's only view of the outside world: it
// executes tool calls and receives problem reports. Tool-level
// failures come back inside the Result, never as a panic or error.
type Environment interface {
	// ExecuteTool runs a tool call and returns its result.
	ExecuteTool(ctx context.Context, call tool.Call) tool.Result

	// ReportProblem surfaces a fatal run failure to the outside world.
	ReportProblem(ctx context.Context, err error)
}

// ExecContext is the per-run execution context, shared by reference
// across all nodes and edges of one strategy run. It carries the
// environment, the LLM session and executor, the interception
// pipeline, the typed key/value store and the iteration budget. It is
// destroyed with the run.
type ExecContext struct {
	runID    string
	env      Environment
	session  *llm.Session
	executor llm.PromptExecutor
	pipeline *InterceptionPipeline
	tools    []llms.Tool

	maxIterations int64
	iterations    atomic.Int64

	mu       sync.Mutex
	values   map[storageKey]any
	policies []ToolSelectionPolicy
}

// ExecContextConfig configures a run's execution context.
type ExecContextConfig struct {
	RunID         string
	Environment   Environment
	Session       *llm.Session
	Executor      llm.PromptExecutor
	Pipeline      *InterceptionPipeline
	Tools         []llms.Tool
	MaxIterations int
}

// NewExecContext creates the execution context for one run.
func NewExecContext(cfg ExecContextConfig) *ExecContext {
	p := cfg.Pipeline
	if p == nil {
		p = NewPipeline()
	}
	return &ExecContext{
		runID:         cfg.RunID,
		env:           cfg.Environment,
		session:       cfg.Session,
		executor:      cfg.Executor,
		pipeline:      p,
		tools:         cfg.Tools,
		maxIterations: int64(cfg.MaxIterations),
		values:        make(map[storageKey]any),
	}
}

// RunID returns the run identifier.
func (ec *ExecContext) RunID() string { return ec.runID }

// Environment returns the environment handle.
func (ec *ExecContext) Environment() Environment { return ec.env }

// Session returns the run's LLM session.
func (ec *ExecContext) Session() *llm.Session { return ec.session }

// Executor returns the prompt executor.
func (ec *ExecContext) Executor() llm.PromptExecutor { return ec.executor }

// Pipeline returns the interception pipeline.
func (ec *ExecContext) Pipeline() *InterceptionPipeline { return ec.pipeline }

// Iterations returns the number of task-node executions so far.
func (ec *ExecContext) Iterations() int64 { return ec.iterations.Load() }

// nextIteration charges one node execution against the budget.
// Increment-then-compare keeps the accounting exact under concurrent
// fan-out branches.
func (ec *ExecContext) nextIteration() error {
	n := ec.iterations.Add(1)
	if ec.maxIterations > 0 && n > ec.maxIterations {
		return &MaxIterationsError{Limit: ec.maxIterations}
	}
	return nil
}

// AvailableTools returns the agent tool list filtered by the tool
// selection policy of the innermost subgraph currently executing.
func (ec *ExecContext) AvailableTools() []llms.Tool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if len(ec.policies) == 0 {
		return ec.tools
	}
	return ec.policies[len(ec.policies)-1].Filter(ec.tools)
}

// pushToolPolicy scopes a policy to a subgraph execution. The returned
// func restores the previous scope.
func (ec *ExecContext) pushToolPolicy(p ToolSelectionPolicy) func() {
	ec.mu.Lock()
	ec.policies = append(ec.policies, p)
	ec.mu.Unlock()
	return func() {
		ec.mu.Lock()
		ec.policies = ec.policies[:len(ec.policies)-1]
		ec.mu.Unlock()
	}
}

// storageKey is the (type, name) compound key of the shared store.
type storageKey struct {
	name string
	typ  reflect.Type
}

// StorageKey identifies a typed value in the run's shared store. Keys
// with the same name but different types do not collide.
type StorageKey[T any] struct {
	name string
}

// NewStorageKey creates a storage key.
func NewStorageKey[T any](name string) StorageKey[T] {
	return StorageKey[T]{name: name}
}

// Name returns the key name.
func (k StorageKey[T]) Name() string { return k.name }

// SetValue stores a value under key, overwriting any previous value.
func SetValue[T any](ec *ExecContext, key StorageKey[T], value T) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.values[storageKey{name: key.name, typ: reflect.TypeFor[T]()}] = value
}

// GetValue retrieves the value stored under key.
func GetValue[T any](ec *ExecContext, key StorageKey[T]) (T, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.values[storageKey{name: key.name, typ: reflect.TypeFor[T]()}]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RequireValue retrieves the value stored under key, failing loudly
// when it is absent.
func RequireValue[T any](ec *ExecContext, key StorageKey[T]) (T, error) {
	v, ok := GetValue(ec, key)
	if !ok {
		return v, fmt.Errorf("no value stored for key %q (type %v)", key.name, reflect.TypeFor[T]())
	}
	return v, nil
}

// currentNodeKey tags the context with the name of the executing node
// so nested diagnostics (an LLM call made inside the node) can be
// attributed back to it.
type currentNodeKey struct{}

func withCurrentNode(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, currentNodeKey{}, name)
}

// CurrentNode returns the name of the node executing in ctx, or ""
// outside a node span.
func CurrentNode(ctx context.Context) string {
	if name, ok := ctx.Value(currentNodeKey{}).(string); ok {
		return name
	}
	return ""
}

// ToolSelectionPolicy controls which of the agent's tools are offered
// to LLM nodes while execution is inside a subgraph. The zero value
// offers all tools.
type ToolSelectionPolicy struct {
	mode  toolPolicyMode
	names []string
}

type toolPolicyMode int

const (
	toolPolicyAll toolPolicyMode = iota
	toolPolicyNone
	toolPolicyNamed
)

// AllTools offers every agent tool.
func AllTools() ToolSelectionPolicy { return ToolSelectionPolicy{mode: toolPolicyAll} }

// NoTools offers no tools.
func NoTools() ToolSelectionPolicy { return ToolSelectionPolicy{mode: toolPolicyNone} }

// NamedTools offers only the named tools.
func NamedTools(names ...string) ToolSelectionPolicy {
	return ToolSelectionPolicy{mode: toolPolicyNamed, names: names}
}

// Filter applies the policy to a tool list.
func (p ToolSelectionPolicy) Filter(tools []llms.Tool) []llms.Tool {
	switch p.mode {
	case toolPolicyNone:
		return nil
	case toolPolicyNamed:
		var out []llms.Tool
		for _, t := range tools {
			if t.Function == nil {
				continue
			}
			for _, name := range p.names {
				if t.Function.Name == name {
					out = append(out, t)
					break
				}
			}
		}
		return out
	default:
		return tools
	}
}
