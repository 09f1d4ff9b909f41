// Package agent provides the public agent surface: building an agent
// from a strategy, a prompt executor, tools and features, then running
// it to completion.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"

	"github.com/smallnest/agentgraph/feature"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/tool"
)

// DefaultMaxIterations bounds a run when no explicit limit is set.
const DefaultMaxIterations = 50

// Agent drives a strategy from an initial input to a terminal output.
// Features and pipeline registrations accumulate for the agent's
// lifetime; each Run gets a fresh execution context and session.
type Agent struct {
	id       string
	strategy *graph.Strategy
	executor llm.PromptExecutor
	pipeline *graph.InterceptionPipeline
	env      graph.Environment
	logger   log.Logger

	model         string
	systemPrompt  string
	toolDefs      []llms.Tool
	registry      *tool.Registry
	maxIterations int

	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures an agent at construction time.
type Option func(*Agent)

// WithModel sets the model name requests are sent to.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

// WithSystemPrompt seeds every run's session with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithTools registers langchaingo tools: they become the agent's tool
// registry and their definitions are offered to LLM nodes.
func WithTools(ts ...tools.Tool) Option {
	return func(a *Agent) {
		a.registry = tool.NewRegistry(ts...)
		a.toolDefs = tool.Definitions(ts...)
	}
}

// WithEnvironment replaces the default tool-registry environment.
func WithEnvironment(env graph.Environment) Option {
	return func(a *Agent) { a.env = env }
}

// WithMaxIterations bounds the number of node executions per run.
func WithMaxIterations(n int) Option {
	return func(a *Agent) { a.maxIterations = n }
}

// WithLogger sets the agent logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithPipeline replaces the default pipeline, e.g. to enable handler
// isolation.
func WithPipeline(p *graph.InterceptionPipeline) Option {
	return func(a *Agent) { a.pipeline = p }
}

// New builds an agent and installs its features. Feature installation
// happens here, once, so the pipeline is read-only by the time a run
// starts.
func New(strategy *graph.Strategy, executor llm.PromptExecutor, features []feature.Feature, opts ...Option) (*Agent, error) {
	if strategy == nil {
		return nil, fmt.Errorf("agent: strategy must not be nil")
	}

	a := &Agent{
		id:            uuid.NewString(),
		strategy:      strategy,
		executor:      executor,
		pipeline:      graph.NewPipeline(),
		logger:        log.GetDefaultLogger(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.env == nil {
		a.env = NewToolEnvironment(a.registry, a.logger)
	}

	for _, f := range features {
		if err := f.Install(a.pipeline); err != nil {
			return nil, fmt.Errorf("agent: installing feature %q: %w", f.Key(), err)
		}
	}

	return a, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Pipeline returns the agent's interception pipeline.
func (a *Agent) Pipeline() *graph.InterceptionPipeline { return a.pipeline }

// Run executes the strategy with the given input and returns the
// terminal output. Any fatal condition (routing failure, iteration
// budget, hook failure, node error) is reported through the
// environment and returned; there is no silent failure mode.
func (a *Agent) Run(ctx context.Context, input any) (any, error) {
	if a.closed.Load() {
		return nil, graph.ErrAgentClosed
	}

	runID := uuid.NewString()
	session := llm.NewSession(a.model, a.systemPrompt)

	ec := graph.NewExecContext(graph.ExecContextConfig{
		RunID:         runID,
		Environment:   a.env,
		Session:       session,
		Executor:      a.executor,
		Pipeline:      a.pipeline,
		Tools:         a.toolDefs,
		MaxIterations: a.maxIterations,
	})

	if err := a.pipeline.Trigger(ctx, graph.AgentStartedEvent{
		RunID:   runID,
		AgentID: a.id,
		Input:   input,
	}); err != nil {
		a.env.ReportProblem(ctx, err)
		return nil, err
	}

	output, err := a.strategy.Execute(ctx, ec, input)
	if err != nil {
		// The strategy already reported the problem; surface the run
		// error to the pipeline, then propagate.
		if tErr := a.pipeline.Trigger(ctx, graph.AgentRunErrorEvent{
			RunID:   runID,
			AgentID: a.id,
			Err:     err,
		}); tErr != nil {
			a.logger.Error("agent %s: run-error hook failed: %v", a.id, tErr)
		}
		return nil, err
	}

	if err := a.pipeline.Trigger(ctx, graph.AgentFinishedEvent{
		RunID:   runID,
		AgentID: a.id,
		Output:  output,
	}); err != nil {
		a.env.ReportProblem(ctx, err)
		return nil, err
	}

	return output, nil
}

// Close releases the agent. It is idempotent; the before-closed hook
// fires exactly once.
func (a *Agent) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		err = a.pipeline.Trigger(ctx, graph.AgentBeforeClosedEvent{AgentID: a.id})
	})
	return err
}
