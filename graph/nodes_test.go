package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/tool"
)

// scriptedExecutor replays canned responses, one per Execute call.
type scriptedExecutor struct {
	responses [][]llms.MessageContent
	calls     int
	lastTools []llms.Tool
}

func (e *scriptedExecutor) Execute(_ context.Context, _ []llms.MessageContent, _ string, tools []llms.Tool) ([]llms.MessageContent, error) {
	e.lastTools = tools
	if e.calls >= len(e.responses) {
		return nil, context.Canceled
	}
	resp := e.responses[e.calls]
	e.calls++
	return resp, nil
}

func (e *scriptedExecutor) ExecuteStreaming(context.Context, []llms.MessageContent, string) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk)
	close(out)
	return out
}

func textResponse(text string) []llms.MessageContent {
	return []llms.MessageContent{{
		Role:  llms.ChatMessageTypeAI,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}}
}

func toolCallResponse(id, name, args string) []llms.MessageContent {
	return []llms.MessageContent{{
		Role: llms.ChatMessageTypeAI,
		Parts: []llms.ContentPart{llms.ToolCall{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}
}

func newLLMContext(exec llm.PromptExecutor, rec *eventRecorder) *ExecContext {
	p := NewPipeline()
	if rec != nil {
		p.RegisterAll("recorder", rec.handler())
	}
	return NewExecContext(ExecContextConfig{
		RunID:         "run",
		Environment:   &recordingEnv{},
		Session:       llm.NewSession("test-model", "you are a test"),
		Executor:      exec,
		Pipeline:      p,
		Tools:         testToolDefs("search"),
		MaxIterations: 10,
	})
}

func TestLLMRequestNodeHookOrdering(t *testing.T) {
	rec := &eventRecorder{}
	exec := &scriptedExecutor{responses: [][]llms.MessageContent{textResponse("hi there")}}
	ec := newLLMContext(exec, rec)

	b := NewSubgraphBuilder("chat")
	n := b.AddNode(NewLLMRequestNode("ask"))
	b.Connect(b.Start(), n)
	b.Connect(n, b.Finish())
	s, err := b.Build()
	require.NoError(t, err)

	out, err := s.Execute(context.Background(), ec, "hello")
	require.NoError(t, err)

	msgs, ok := out.([]llms.MessageContent)
	require.True(t, ok)
	text, ok := AssistantText(msgs)
	require.True(t, ok)
	assert.Equal(t, "hi there", text)

	// The LLM hook pair nests inside the node hook pair.
	assert.Equal(t, []HookType{
		HookBeforeNode,
		HookBeforeLLMCall,
		HookAfterLLMCall,
		HookAfterNode,
	}, rec.hooks())

	before, ok := rec.events[1].(BeforeLLMCallEvent)
	require.True(t, ok)
	assert.Equal(t, "ask", before.NodeName)
	assert.Equal(t, "test-model", before.Model)

	// System prompt, human message, assistant response.
	assert.Equal(t, 3, ec.Session().Len())
}

func TestLLMRequestNodeOffersScopedTools(t *testing.T) {
	exec := &scriptedExecutor{responses: [][]llms.MessageContent{textResponse("ok")}}
	ec := newLLMContext(exec, nil)

	b := NewSubgraphBuilder("quiet").WithToolPolicy(NoTools())
	n := b.AddNode(NewLLMRequestNode("ask"))
	b.Connect(b.Start(), n)
	b.Connect(n, b.Finish())
	s, err := b.Build()
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), ec, "hello")
	require.NoError(t, err)
	assert.Empty(t, exec.lastTools)
}

func TestLLMRequestNodeRequiresSession(t *testing.T) {
	ec := NewExecContext(ExecContextConfig{RunID: "r"})
	n := NewLLMRequestNode("ask")

	_, err := n.Execute(context.Background(), ec, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
}

func TestToolCallNodeSuccess(t *testing.T) {
	rec := &eventRecorder{}
	p := NewPipeline()
	p.RegisterAll("recorder", rec.handler())
	env := &recordingEnv{results: map[string]tool.Result{
		"search": {Successful: true, Result: []byte(`"found it"`)},
	}}
	ec := NewExecContext(ExecContextConfig{RunID: "r", Environment: env, Pipeline: p})

	n := NewToolCallNode("callTool")
	out, err := n.Execute(context.Background(), ec, tool.Call{
		ID: "c1", Name: "search", Arguments: `{"input":"go"}`,
	})
	require.NoError(t, err)

	result, ok := out.(tool.Result)
	require.True(t, ok)
	assert.True(t, result.Successful)
	assert.Equal(t, "found it", result.Content())
	assert.Equal(t, "c1", result.CallID)

	assert.Equal(t, []HookType{HookToolCall, HookToolResult}, rec.hooks())
}

func TestToolCallNodeFailure(t *testing.T) {
	rec := &eventRecorder{}
	p := NewPipeline()
	p.RegisterAll("recorder", rec.handler())
	ec := NewExecContext(ExecContextConfig{RunID: "r", Environment: &recordingEnv{}, Pipeline: p})

	n := NewToolCallNode("callTool")
	out, err := n.Execute(context.Background(), ec, tool.Call{ID: "c1", Name: "missing"})
	require.NoError(t, err, "tool failures are results, not node errors")

	result := out.(tool.Result)
	assert.False(t, result.Successful)
	assert.Equal(t, []HookType{HookToolCall, HookToolCallFailure}, rec.hooks())
}

func TestToolCallNodeMalformedArguments(t *testing.T) {
	rec := &eventRecorder{}
	p := NewPipeline()
	p.RegisterAll("recorder", rec.handler())
	env := &recordingEnv{results: map[string]tool.Result{
		"search": {Successful: true, Result: []byte(`"x"`)},
	}}
	ec := NewExecContext(ExecContextConfig{RunID: "r", Environment: env, Pipeline: p})

	n := NewToolCallNode("callTool")
	out, err := n.Execute(context.Background(), ec, tool.Call{
		ID: "c1", Name: "search", Arguments: `{not json`,
	})
	require.NoError(t, err)

	result := out.(tool.Result)
	assert.False(t, result.Successful)
	assert.Contains(t, result.ErrorMessage, "not valid JSON")

	// Validation failures never reach the environment.
	assert.Equal(t, []HookType{HookToolCall, HookToolValidationError}, rec.hooks())
}

func TestToolResultMessageNode(t *testing.T) {
	session := llm.NewSession("m", "")
	ec := NewExecContext(ExecContextConfig{RunID: "r", Session: session})

	n := NewToolResultMessageNode("feedback")
	result := tool.Success(tool.Call{ID: "c1", Name: "search"}, "42 results")

	out, err := n.Execute(context.Background(), ec, result)
	require.NoError(t, err)
	assert.Equal(t, "42 results", out)

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, llms.ChatMessageTypeTool, msgs[0].Role)
	resp, ok := msgs[0].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ToolCallID)
	assert.Equal(t, "42 results", resp.Content)
}

func TestFirstToolCall(t *testing.T) {
	call, ok := FirstToolCall(toolCallResponse("c1", "search", `{"input":"x"}`))
	require.True(t, ok)
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, `{"input":"x"}`, call.Arguments)

	_, ok = FirstToolCall(textResponse("no tools here"))
	assert.False(t, ok)
}

func TestAssistantText(t *testing.T) {
	text, ok := AssistantText(textResponse("hello"))
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = AssistantText(toolCallResponse("c1", "search", "{}"))
	assert.False(t, ok)
}

func TestOnToolCallAndOnAssistantTextRouting(t *testing.T) {
	ec := newTestContext()
	source := NewNode("llm", func(_ context.Context, _ *ExecContext, msgs []llms.MessageContent) ([]llms.MessageContent, error) {
		return msgs, nil
	})
	toolTarget := NewToolCallNode("runTool")
	textTarget := echoNode("answer")

	// Tool edge first, text fallback second.
	require.NoError(t, source.AddEdge(NewEdge(toolTarget, OnToolCall())))
	require.NoError(t, source.AddEdge(NewEdge(textTarget, OnAssistantText())))

	resolved, err := source.ResolveEdge(context.Background(), ec, toolCallResponse("c1", "search", "{}"))
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "runTool", resolved.Edge.Target().Name())
	call, ok := resolved.Output.(tool.Call)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)

	resolved, err = source.ResolveEdge(context.Background(), ec, textResponse("done"))
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "answer", resolved.Edge.Target().Name())
	assert.Equal(t, "done", resolved.Output)
}

func TestReactLoopTerminatesOnText(t *testing.T) {
	rec := &eventRecorder{}
	exec := &scriptedExecutor{responses: [][]llms.MessageContent{
		toolCallResponse("c1", "search", `{"input":"weather"}`),
		textResponse("it is sunny"),
	}}
	p := NewPipeline()
	p.RegisterAll("recorder", rec.handler())
	env := &recordingEnv{results: map[string]tool.Result{
		"search": {Successful: true, Result: []byte(`"sunny"`)},
	}}
	ec := NewExecContext(ExecContextConfig{
		RunID:         "r",
		Environment:   env,
		Session:       llm.NewSession("test-model", ""),
		Executor:      exec,
		Pipeline:      p,
		Tools:         testToolDefs("search"),
		MaxIterations: 20,
	})

	b := NewStrategyBuilder("react")
	think := b.AddNode(NewLLMRequestNode("think"))
	act := b.AddNode(NewToolCallNode("act"))
	observe := b.AddNode(NewToolResultMessageNode("observe"))
	b.Connect(b.Start(), think)
	b.Connect(think, act, OnToolCall())
	b.Connect(think, b.Finish(), OnAssistantText())
	b.Connect(act, observe)
	b.Connect(observe, think, WithTransform(func(context.Context, *ExecContext, any) (any, error) {
		// The observation is already in the session; loop back with an
		// empty prompt.
		return "", nil
	}))
	s, err := b.Build()
	require.NoError(t, err)

	out, err := s.Execute(context.Background(), ec, "what's the weather?")
	require.NoError(t, err)
	assert.Equal(t, "it is sunny", out)

	assert.Equal(t, 2, exec.calls)
	// think, act, observe, think.
	assert.Equal(t, int64(4), ec.Iterations())
}
