// Package graph implements the agent execution graph engine: typed
// nodes connected by conditionally-taken edges, subgraphs composing
// regions behind start/finish anchors, the strategy lifecycle, and the
// interception pipeline that lets features observe every execution
// event without the engine depending on any of them.
//
// # Execution model
//
// A run drives one Strategy from an initial input to a terminal
// output. Inside each subgraph execution proceeds through exactly one
// node at a time: the node executes, the resolver scans its outgoing
// edges in declaration order and follows the first edge whose
// predicate accepts the output, and the transformed output becomes the
// next node's input. Reaching the finish anchor ends the region and
// yields its value unchanged.
//
// Routing is strictly first-match-wins. Declaring a tool-call edge
// before a plain-text fallback edge is how agent authors disambiguate,
// so the edge list is scanned as an ordered slice and nothing else.
// An output no edge accepts is a fatal routing error, never dropped.
//
// # Building graphs
//
//	b := graph.NewStrategyBuilder("qa")
//	ask := b.AddNode(graph.NewLLMRequestNode("ask"))
//	call := b.AddNode(graph.NewToolCallNode("call"))
//	send := b.AddNode(graph.NewToolResultMessageNode("send"))
//
//	b.Connect(b.Start(), ask)
//	b.Connect(ask, call, graph.OnToolCall())
//	b.Connect(ask, b.Finish(), graph.OnAssistantText())
//	b.Connect(call, send)
//	b.Connect(send, ask)
//
//	strategy, err := b.Build()
//
// Construction problems (duplicate node names, an edge added to a
// finish node) surface at Build, before any run starts.
//
// # Interception pipeline
//
// Features register (hook, featureKey, handler) triples during agent
// construction. The engine triggers hooks synchronously, in
// registration order, at every lifecycle point: around nodes, around
// LLM calls, around tool calls, and at strategy/agent boundaries. A
// failing handler aborts the triggering operation by default;
// WithHandlerIsolation opts into log-and-continue.
package graph
