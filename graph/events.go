package graph

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentgraph/tool"
)

// Event is the immutable payload delivered to pipeline handlers. Each
// hook has its own event type carrying what that lifecycle point knows,
// never raw engine internals.
type Event interface {
	// Hook identifies the lifecycle point this event belongs to.
	Hook() HookType
}

// BeforeNodeEvent fires before a node executes.
type BeforeNodeEvent struct {
	RunID    string
	NodeName string
	Input    any
}

func (BeforeNodeEvent) Hook() HookType { return HookBeforeNode }

// AfterNodeEvent fires after a node executes successfully.
type AfterNodeEvent struct {
	RunID    string
	NodeName string
	Input    any
	Output   any
}

func (AfterNodeEvent) Hook() HookType { return HookAfterNode }

// BeforeLLMCallEvent fires before a prompt is sent to the executor.
type BeforeLLMCallEvent struct {
	RunID     string
	NodeName  string
	SessionID string
	Model     string
	Prompt    []llms.MessageContent
	Tools     []llms.Tool
}

func (BeforeLLMCallEvent) Hook() HookType { return HookBeforeLLMCall }

// AfterLLMCallEvent fires after the executor returns responses.
type AfterLLMCallEvent struct {
	RunID     string
	NodeName  string
	SessionID string
	Model     string
	Responses []llms.MessageContent
}

func (AfterLLMCallEvent) Hook() HookType { return HookAfterLLMCall }

// ToolCallEvent fires when a tool call is dispatched.
type ToolCallEvent struct {
	RunID    string
	NodeName string
	Call     tool.Call
}

func (ToolCallEvent) Hook() HookType { return HookToolCall }

// ToolResultEvent fires when a tool call succeeds.
type ToolResultEvent struct {
	RunID    string
	NodeName string
	Call     tool.Call
	Result   tool.Result
}

func (ToolResultEvent) Hook() HookType { return HookToolResult }

// ToolValidationErrorEvent fires when a tool call is malformed.
type ToolValidationErrorEvent struct {
	RunID    string
	NodeName string
	Call     tool.Call
	Err      error
}

func (ToolValidationErrorEvent) Hook() HookType { return HookToolValidationError }

// ToolCallFailureEvent fires when a tool reports a failure.
type ToolCallFailureEvent struct {
	RunID    string
	NodeName string
	Call     tool.Call
	Result   tool.Result
}

func (ToolCallFailureEvent) Hook() HookType { return HookToolCallFailure }

// StrategyStartedEvent fires when strategy execution begins.
type StrategyStartedEvent struct {
	RunID    string
	Strategy string
	Input    any
}

func (StrategyStartedEvent) Hook() HookType { return HookStrategyStarted }

// StrategyFinishedEvent fires when strategy execution completes.
type StrategyFinishedEvent struct {
	RunID    string
	Strategy string
	Result   any
}

func (StrategyFinishedEvent) Hook() HookType { return HookStrategyFinished }

// AgentStartedEvent fires at the top of an agent run.
type AgentStartedEvent struct {
	RunID   string
	AgentID string
	Input   any
}

func (AgentStartedEvent) Hook() HookType { return HookAgentStarted }

// AgentFinishedEvent fires when an agent run completes successfully.
type AgentFinishedEvent struct {
	RunID   string
	AgentID string
	Output  any
}

func (AgentFinishedEvent) Hook() HookType { return HookAgentFinished }

// AgentRunErrorEvent fires when an agent run fails.
type AgentRunErrorEvent struct {
	RunID   string
	AgentID string
	Err     error
}

func (AgentRunErrorEvent) Hook() HookType { return HookAgentRunError }

// AgentBeforeClosedEvent fires once, when the agent is closed.
type AgentBeforeClosedEvent struct {
	AgentID string
}

func (AgentBeforeClosedEvent) Hook() HookType { return HookAgentBeforeClosed }
