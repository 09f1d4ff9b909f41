package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/agentgraph/log"
)

// HookType identifies a lifecycle point features can intercept.
type HookType string

const (
	// HookBeforeNode fires strictly before a node's execute body starts.
	HookBeforeNode HookType = "before-node"

	// HookAfterNode fires strictly after a node returns successfully.
	// It does not fire when the node fails, so hooks can distinguish
	// success from failure.
	HookAfterNode HookType = "after-node"

	// HookBeforeLLMCall fires before a prompt is sent to the executor.
	HookBeforeLLMCall HookType = "before-llm-call"

	// HookAfterLLMCall fires after the executor returns responses.
	HookAfterLLMCall HookType = "after-llm-call"

	// HookToolCall fires when a tool call is dispatched.
	HookToolCall HookType = "tool-call"

	// HookToolResult fires when a tool call succeeds.
	HookToolResult HookType = "tool-call-result"

	// HookToolValidationError fires when a tool call is malformed.
	HookToolValidationError HookType = "tool-validation-error"

	// HookToolCallFailure fires when a tool reports a failure.
	HookToolCallFailure HookType = "tool-call-failure"

	// HookStrategyStarted fires when strategy execution begins.
	HookStrategyStarted HookType = "strategy-started"

	// HookStrategyFinished fires when strategy execution completes.
	HookStrategyFinished HookType = "strategy-finished"

	// HookAgentStarted fires at the top of an agent run.
	HookAgentStarted HookType = "agent-started"

	// HookAgentFinished fires when an agent run completes successfully.
	HookAgentFinished HookType = "agent-finished"

	// HookAgentRunError fires when an agent run fails.
	HookAgentRunError HookType = "agent-run-error"

	// HookAgentBeforeClosed fires once, when the agent is closed.
	HookAgentBeforeClosed HookType = "agent-before-closed"
)

// AllHooks returns every hook type, in lifecycle order.
func AllHooks() []HookType {
	return []HookType{
		HookAgentStarted,
		HookStrategyStarted,
		HookBeforeNode,
		HookBeforeLLMCall,
		HookAfterLLMCall,
		HookToolCall,
		HookToolResult,
		HookToolValidationError,
		HookToolCallFailure,
		HookAfterNode,
		HookStrategyFinished,
		HookAgentFinished,
		HookAgentRunError,
		HookAgentBeforeClosed,
	}
}

// Handler is a hook callback. A non-nil error aborts the remaining
// handlers and the triggering operation unless the pipeline runs in
// isolation mode.
type Handler func(ctx context.Context, event Event) error

// registration pairs a handler with the feature key that installed it.
// The key exists for unregistration, not uniqueness: one feature may
// register many handlers on one hook.
type registration struct {
	featureKey string
	handler    Handler
}

// InterceptionPipeline is the ordered registry of lifecycle hooks.
// Features register during agent construction; the engine triggers
// hooks synchronously during execution. Registration is guarded by an
// RWMutex; the hot path only read-locks, so concurrent fan-out
// branches can trigger freely.
type InterceptionPipeline struct {
	mu       sync.RWMutex
	handlers map[HookType][]registration

	isolate bool
	logger  log.Logger
}

// PipelineOption configures the pipeline.
type PipelineOption func(*InterceptionPipeline)

// WithHandlerIsolation makes the pipeline log and continue past a
// failing handler instead of aborting the triggering operation. The
// default is fail-loud: feature bugs surface instead of being
// swallowed.
func WithHandlerIsolation(logger log.Logger) PipelineOption {
	return func(p *InterceptionPipeline) {
		p.isolate = true
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...PipelineOption) *InterceptionPipeline {
	p := &InterceptionPipeline{
		handlers: make(map[HookType][]registration),
		logger:   log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a handler for the hook. Handlers run in registration
// order; the same feature key may appear any number of times.
func (p *InterceptionPipeline) Register(hook HookType, featureKey string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[hook] = append(p.handlers[hook], registration{featureKey: featureKey, handler: h})
}

// RegisterAll adds the handler to every hook type.
func (p *InterceptionPipeline) RegisterAll(featureKey string, h Handler) {
	for _, hook := range AllHooks() {
		p.Register(hook, featureKey, h)
	}
}

// Unregister removes every handler the feature registered on the hook.
func (p *InterceptionPipeline) Unregister(hook HookType, featureKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	regs := p.handlers[hook]
	kept := regs[:0]
	for _, r := range regs {
		if r.featureKey != featureKey {
			kept = append(kept, r)
		}
	}
	p.handlers[hook] = kept
}

// HandlerCount returns the number of handlers registered on the hook.
func (p *InterceptionPipeline) HandlerCount(hook HookType) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers[hook])
}

// Trigger invokes every handler registered for the event's hook, in
// registration order, synchronously. Without isolation the first
// handler error aborts the rest and is returned to the caller.
func (p *InterceptionPipeline) Trigger(ctx context.Context, event Event) error {
	p.mu.RLock()
	regs := p.handlers[event.Hook()]
	p.mu.RUnlock()

	for _, r := range regs {
		if err := r.handler(ctx, event); err != nil {
			if p.isolate {
				p.logger.Error("pipeline handler %q failed on %s: %v", r.featureKey, event.Hook(), err)
				continue
			}
			return fmt.Errorf("pipeline handler %q failed on %s: %w", r.featureKey, event.Hook(), err)
		}
	}
	return nil
}
