// Package history is a pipeline feature that persists each node
// transition of a run as a store.Record, giving runs a queryable
// execution history.
package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/agentgraph/feature"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/store"
)

// FeatureKey identifies the history feature in the pipeline.
const FeatureKey = "history"

// History records node transitions into a store.Store.
type History struct {
	store store.Store

	mu   sync.Mutex
	seqs map[string]int
}

var _ feature.Feature = (*History)(nil)

// New creates the history feature over the given store.
func New(s store.Store) *History {
	return &History{store: s, seqs: make(map[string]int)}
}

// Key identifies the feature.
func (h *History) Key() string { return FeatureKey }

func (h *History) nextSeq(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqs[runID]++
	return h.seqs[runID]
}

func (h *History) forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.seqs, runID)
}

// Install registers the recording handlers. Saving runs on the hot
// path, so a failing store aborts the run unless the pipeline runs in
// isolation mode.
func (h *History) Install(p *graph.InterceptionPipeline) error {
	p.Register(graph.HookAfterNode, FeatureKey, func(ctx context.Context, event graph.Event) error {
		ev := event.(graph.AfterNodeEvent)

		payload, err := json.Marshal(ev.Output)
		if err != nil {
			// Non-JSON node outputs are recorded without a payload.
			payload = nil
		}

		return h.store.Save(ctx, &store.Record{
			ID:        uuid.NewString(),
			RunID:     ev.RunID,
			NodeName:  ev.NodeName,
			Payload:   payload,
			Sequence:  h.nextSeq(ev.RunID),
			Timestamp: time.Now(),
		})
	})

	p.Register(graph.HookAgentFinished, FeatureKey, func(_ context.Context, event graph.Event) error {
		h.forget(event.(graph.AgentFinishedEvent).RunID)
		return nil
	})
	p.Register(graph.HookAgentRunError, FeatureKey, func(_ context.Context, event graph.Event) error {
		h.forget(event.(graph.AgentRunErrorEvent).RunID)
		return nil
	})

	return nil
}
