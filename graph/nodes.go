package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentgraph/tool"
)

// NewLLMRequestNode creates a node that sends its string input to the
// model as a human message and outputs the response messages. The
// before/after LLM hooks nest inside this node's span, and the tools
// offered are the agent tools filtered by the enclosing subgraph's
// policy.
func NewLLMRequestNode(name string) *TaskNode {
	return NewNode(name, func(ctx context.Context, ec *ExecContext, prompt string) ([]llms.MessageContent, error) {
		session := ec.Session()
		if session == nil {
			return nil, fmt.Errorf("node %q: no llm session on execution context", name)
		}
		if ec.Executor() == nil {
			return nil, fmt.Errorf("node %q: no prompt executor on execution context", name)
		}

		if prompt != "" {
			session.Append(llms.TextParts(llms.ChatMessageTypeHuman, prompt))
		}
		messages := session.Messages()
		tools := ec.AvailableTools()

		if err := ec.pipeline.Trigger(ctx, BeforeLLMCallEvent{
			RunID:     ec.runID,
			NodeName:  CurrentNode(ctx),
			SessionID: session.ID(),
			Model:     session.Model(),
			Prompt:    messages,
			Tools:     tools,
		}); err != nil {
			return nil, err
		}

		responses, err := ec.Executor().Execute(ctx, messages, session.Model(), tools)
		if err != nil {
			return nil, err
		}

		if err := ec.pipeline.Trigger(ctx, AfterLLMCallEvent{
			RunID:     ec.runID,
			NodeName:  CurrentNode(ctx),
			SessionID: session.ID(),
			Model:     session.Model(),
			Responses: responses,
		}); err != nil {
			return nil, err
		}

		session.Append(responses...)
		return responses, nil
	})
}

// NewToolCallNode creates a node that executes its tool.Call input
// through the environment and outputs the tool.Result. Malformed
// arguments fire the validation hook and come back as a failed result
// so the graph can feed the problem back to the model; they are not a
// run-fatal error.
func NewToolCallNode(name string) *TaskNode {
	return NewNode(name, func(ctx context.Context, ec *ExecContext, call tool.Call) (tool.Result, error) {
		if err := ec.pipeline.Trigger(ctx, ToolCallEvent{
			RunID:    ec.runID,
			NodeName: CurrentNode(ctx),
			Call:     call,
		}); err != nil {
			return tool.Result{}, err
		}

		if call.Arguments != "" && !json.Valid([]byte(call.Arguments)) {
			verr := &tool.ValidationError{Call: call, Reason: "arguments are not valid JSON"}
			if err := ec.pipeline.Trigger(ctx, ToolValidationErrorEvent{
				RunID:    ec.runID,
				NodeName: CurrentNode(ctx),
				Call:     call,
				Err:      verr,
			}); err != nil {
				return tool.Result{}, err
			}
			return tool.Failure(call, "%v", verr), nil
		}

		result := ec.Environment().ExecuteTool(ctx, call)

		var ev Event
		if result.Successful {
			ev = ToolResultEvent{RunID: ec.runID, NodeName: CurrentNode(ctx), Call: call, Result: result}
		} else {
			ev = ToolCallFailureEvent{RunID: ec.runID, NodeName: CurrentNode(ctx), Call: call, Result: result}
		}
		if err := ec.pipeline.Trigger(ctx, ev); err != nil {
			return tool.Result{}, err
		}

		return result, nil
	})
}

// NewToolResultMessageNode creates a node that turns a tool.Result into
// the tool response message appended to the session, outputting the
// result content string. It is the usual bridge back into an LLM node.
func NewToolResultMessageNode(name string) *TaskNode {
	return NewNode(name, func(_ context.Context, ec *ExecContext, result tool.Result) (string, error) {
		session := ec.Session()
		if session != nil {
			session.Append(llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: result.CallID,
						Name:       result.Name,
						Content:    result.Content(),
					},
				},
			})
		}
		return result.Content(), nil
	})
}

// FirstToolCall extracts the first tool call from response messages.
func FirstToolCall(msgs []llms.MessageContent) (tool.Call, bool) {
	for _, msg := range msgs {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.ToolCall); ok && tc.FunctionCall != nil {
				return tool.Call{
					ID:        tc.ID,
					Name:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
				}, true
			}
		}
	}
	return tool.Call{}, false
}

// AssistantText extracts the concatenated text parts of response
// messages.
func AssistantText(msgs []llms.MessageContent) (string, bool) {
	var text string
	for _, msg := range msgs {
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				text += tp.Text
			}
		}
	}
	return text, text != ""
}

// OnToolCall configures an edge that matches LLM responses containing
// a tool call and carries the first call to the target node. Declare
// it before a plain-text fallback edge: resolution is first-match.
func OnToolCall() EdgeOption {
	return func(e *Edge) {
		e.predicate = When(func(_ context.Context, _ *ExecContext, msgs []llms.MessageContent) bool {
			_, ok := FirstToolCall(msgs)
			return ok
		})
		e.transform = Map(func(_ context.Context, _ *ExecContext, msgs []llms.MessageContent) (tool.Call, error) {
			call, ok := FirstToolCall(msgs)
			if !ok {
				return tool.Call{}, fmt.Errorf("no tool call in llm response")
			}
			return call, nil
		})
	}
}

// OnAssistantText configures an edge that matches LLM responses with
// assistant text and carries the text to the target node.
func OnAssistantText() EdgeOption {
	return func(e *Edge) {
		e.predicate = When(func(_ context.Context, _ *ExecContext, msgs []llms.MessageContent) bool {
			_, ok := AssistantText(msgs)
			return ok
		})
		e.transform = Map(func(_ context.Context, _ *ExecContext, msgs []llms.MessageContent) (string, error) {
			text, _ := AssistantText(msgs)
			return text, nil
		})
	}
}
