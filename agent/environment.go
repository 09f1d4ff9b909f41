package agent

import (
	"context"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/tool"
)

// ToolEnvironment is the default environment: tool calls run against a
// registry, problems go to the logger. Validation failures become
// failed results so the graph can feed them back to the model.
type ToolEnvironment struct {
	registry *tool.Registry
	logger   log.Logger
}

var _ graph.Environment = (*ToolEnvironment)(nil)

// NewToolEnvironment creates an environment over the given registry.
// A nil registry rejects every call.
func NewToolEnvironment(registry *tool.Registry, logger log.Logger) *ToolEnvironment {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &ToolEnvironment{registry: registry, logger: logger}
}

// ExecuteTool runs the call against the registry.
func (e *ToolEnvironment) ExecuteTool(ctx context.Context, call tool.Call) tool.Result {
	if e.registry == nil {
		return tool.Failure(call, "no tools registered")
	}
	result, err := e.registry.Execute(ctx, call)
	if err != nil {
		return tool.Failure(call, "%v", err)
	}
	return result
}

// ReportProblem logs the failure.
func (e *ToolEnvironment) ReportProblem(_ context.Context, err error) {
	e.logger.Error("agent run problem: %v", err)
}
