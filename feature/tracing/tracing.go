// Package tracing is a pipeline feature that forwards every execution
// event as a formatted message to one or more sinks. It is the
// debugging view of a run: node transitions, LLM calls, tool calls,
// in the exact order the engine fired them.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/smallnest/agentgraph/feature"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/log"
)

// FeatureKey identifies the tracing feature in the pipeline.
const FeatureKey = "tracing"

// Tracing forwards pipeline events to message sinks.
type Tracing struct {
	sinks []feature.MessageSink
}

var _ feature.Feature = (*Tracing)(nil)

// New creates the tracing feature with the given sinks.
func New(sinks ...feature.MessageSink) *Tracing {
	return &Tracing{sinks: sinks}
}

// Key identifies the feature.
func (t *Tracing) Key() string { return FeatureKey }

// Install registers a forwarding handler on every hook.
func (t *Tracing) Install(p *graph.InterceptionPipeline) error {
	p.RegisterAll(FeatureKey, func(ctx context.Context, event graph.Event) error {
		for _, sink := range t.sinks {
			if err := sink.ProcessMessage(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

// Format renders an event as a single trace line.
func Format(event graph.Event) string {
	switch ev := event.(type) {
	case graph.BeforeNodeEvent:
		return fmt.Sprintf("[%s] node=%s input=%v", ev.Hook(), ev.NodeName, ev.Input)
	case graph.AfterNodeEvent:
		return fmt.Sprintf("[%s] node=%s output=%v", ev.Hook(), ev.NodeName, ev.Output)
	case graph.BeforeLLMCallEvent:
		return fmt.Sprintf("[%s] node=%s model=%s session=%s messages=%d tools=%d",
			ev.Hook(), ev.NodeName, ev.Model, ev.SessionID, len(ev.Prompt), len(ev.Tools))
	case graph.AfterLLMCallEvent:
		return fmt.Sprintf("[%s] node=%s model=%s responses=%d",
			ev.Hook(), ev.NodeName, ev.Model, len(ev.Responses))
	case graph.ToolCallEvent:
		return fmt.Sprintf("[%s] node=%s tool=%s args=%s", ev.Hook(), ev.NodeName, ev.Call.Name, ev.Call.Arguments)
	case graph.ToolResultEvent:
		return fmt.Sprintf("[%s] node=%s tool=%s result=%s", ev.Hook(), ev.NodeName, ev.Call.Name, ev.Result.Content())
	case graph.ToolValidationErrorEvent:
		return fmt.Sprintf("[%s] node=%s tool=%s err=%v", ev.Hook(), ev.NodeName, ev.Call.Name, ev.Err)
	case graph.ToolCallFailureEvent:
		return fmt.Sprintf("[%s] node=%s tool=%s err=%s", ev.Hook(), ev.NodeName, ev.Call.Name, ev.Result.ErrorMessage)
	case graph.StrategyStartedEvent:
		return fmt.Sprintf("[%s] strategy=%s run=%s", ev.Hook(), ev.Strategy, ev.RunID)
	case graph.StrategyFinishedEvent:
		return fmt.Sprintf("[%s] strategy=%s run=%s result=%v", ev.Hook(), ev.Strategy, ev.RunID, ev.Result)
	case graph.AgentStartedEvent:
		return fmt.Sprintf("[%s] agent=%s run=%s", ev.Hook(), ev.AgentID, ev.RunID)
	case graph.AgentFinishedEvent:
		return fmt.Sprintf("[%s] agent=%s run=%s output=%v", ev.Hook(), ev.AgentID, ev.RunID, ev.Output)
	case graph.AgentRunErrorEvent:
		return fmt.Sprintf("[%s] agent=%s run=%s err=%v", ev.Hook(), ev.AgentID, ev.RunID, ev.Err)
	case graph.AgentBeforeClosedEvent:
		return fmt.Sprintf("[%s] agent=%s", ev.Hook(), ev.AgentID)
	default:
		return fmt.Sprintf("[%s] %v", event.Hook(), event)
	}
}

// WriterSink writes one trace line per event to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ feature.MessageSink = (*WriterSink)(nil)

// NewWriterSink creates a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// ProcessMessage writes the formatted event.
func (s *WriterSink) ProcessMessage(_ context.Context, event graph.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, Format(event))
	return err
}

// LoggerSink forwards events to a log.Logger at debug level.
type LoggerSink struct {
	logger log.Logger
}

var _ feature.MessageSink = (*LoggerSink)(nil)

// NewLoggerSink creates a sink over the logger.
func NewLoggerSink(logger log.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// ProcessMessage logs the formatted event.
func (s *LoggerSink) ProcessMessage(_ context.Context, event graph.Event) error {
	s.logger.Debug("%s", Format(event))
	return nil
}
