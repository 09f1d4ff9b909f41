// Package telemetry is a pipeline feature that maps execution events
// onto OpenTelemetry spans: one span per strategy, node and LLM call,
// attributed with run id, node name and model. Exporter configuration
// stays with the application; the feature only needs a TracerProvider.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smallnest/agentgraph/feature"
	"github.com/smallnest/agentgraph/graph"
)

// FeatureKey identifies the telemetry feature in the pipeline.
const FeatureKey = "telemetry"

const tracerName = "github.com/smallnest/agentgraph/feature/telemetry"

// Telemetry opens and closes spans from pipeline events. Span
// bookkeeping is keyed by run id plus span identity, so concurrent
// runs through one agent stay separated.
type Telemetry struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ feature.Feature = (*Telemetry)(nil)

// New creates the telemetry feature from a tracer provider.
func New(tp trace.TracerProvider) *Telemetry {
	return &Telemetry{
		tracer: tp.Tracer(tracerName),
		spans:  make(map[string]trace.Span),
	}
}

// Key identifies the feature.
func (t *Telemetry) Key() string { return FeatureKey }

func (t *Telemetry) startSpan(ctx context.Context, key, name string, attrs ...attribute.KeyValue) {
	_, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	t.mu.Lock()
	t.spans[key] = span
	t.mu.Unlock()
}

func (t *Telemetry) endSpan(key string, err error) {
	t.mu.Lock()
	span, ok := t.spans[key]
	delete(t.spans, key)
	t.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Install registers span handlers on the lifecycle hooks.
func (t *Telemetry) Install(p *graph.InterceptionPipeline) error {
	p.Register(graph.HookStrategyStarted, FeatureKey, func(ctx context.Context, event graph.Event) error {
		ev := event.(graph.StrategyStartedEvent)
		t.startSpan(ctx, ev.RunID+"/strategy", "strategy "+ev.Strategy,
			attribute.String("agentgraph.run_id", ev.RunID),
			attribute.String("agentgraph.strategy", ev.Strategy),
		)
		return nil
	})
	p.Register(graph.HookStrategyFinished, FeatureKey, func(_ context.Context, event graph.Event) error {
		ev := event.(graph.StrategyFinishedEvent)
		t.endSpan(ev.RunID+"/strategy", nil)
		return nil
	})

	p.Register(graph.HookBeforeNode, FeatureKey, func(ctx context.Context, event graph.Event) error {
		ev := event.(graph.BeforeNodeEvent)
		t.startSpan(ctx, ev.RunID+"/node/"+ev.NodeName, "node "+ev.NodeName,
			attribute.String("agentgraph.run_id", ev.RunID),
			attribute.String("agentgraph.node", ev.NodeName),
		)
		return nil
	})
	p.Register(graph.HookAfterNode, FeatureKey, func(_ context.Context, event graph.Event) error {
		ev := event.(graph.AfterNodeEvent)
		t.endSpan(ev.RunID+"/node/"+ev.NodeName, nil)
		return nil
	})

	p.Register(graph.HookBeforeLLMCall, FeatureKey, func(ctx context.Context, event graph.Event) error {
		ev := event.(graph.BeforeLLMCallEvent)
		t.startSpan(ctx, ev.RunID+"/llm/"+ev.NodeName, "llm call",
			attribute.String("agentgraph.run_id", ev.RunID),
			attribute.String("agentgraph.node", ev.NodeName),
			attribute.String("agentgraph.model", ev.Model),
			attribute.String("agentgraph.session_id", ev.SessionID),
			attribute.Int("agentgraph.prompt_messages", len(ev.Prompt)),
		)
		return nil
	})
	p.Register(graph.HookAfterLLMCall, FeatureKey, func(_ context.Context, event graph.Event) error {
		ev := event.(graph.AfterLLMCallEvent)
		t.endSpan(ev.RunID+"/llm/"+ev.NodeName, nil)
		return nil
	})

	p.Register(graph.HookAgentRunError, FeatureKey, func(_ context.Context, event graph.Event) error {
		ev := event.(graph.AgentRunErrorEvent)
		// Close whatever the failed run left open, with the error on
		// the strategy span.
		t.mu.Lock()
		var keys []string
		for key := range t.spans {
			if len(key) >= len(ev.RunID) && key[:len(ev.RunID)] == ev.RunID {
				keys = append(keys, key)
			}
		}
		t.mu.Unlock()
		for _, key := range keys {
			t.endSpan(key, ev.Err)
		}
		return nil
	})

	return nil
}
