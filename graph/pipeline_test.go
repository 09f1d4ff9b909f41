package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/log"
)

func TestPipelineInvokesInRegistrationOrder(t *testing.T) {
	p := NewPipeline()
	var order []string

	p.Register(HookAfterNode, "first", func(context.Context, Event) error {
		order = append(order, "first")
		return nil
	})
	p.Register(HookAfterNode, "second", func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	})

	err := p.Trigger(context.Background(), AfterNodeEvent{NodeName: "n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPipelineSameFeatureRegisteredTwice(t *testing.T) {
	p := NewPipeline()
	var calls int

	// One feature, two registrations on the same hook: both fire.
	p.Register(HookAfterNode, "dup", func(context.Context, Event) error {
		calls++
		return nil
	})
	p.Register(HookAfterNode, "dup", func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, p.Trigger(context.Background(), AfterNodeEvent{NodeName: "n"}))
	assert.Equal(t, 2, calls)
}

func TestPipelineOnlyMatchingHookFires(t *testing.T) {
	p := NewPipeline()
	var fired []HookType

	p.Register(HookBeforeNode, "f", func(_ context.Context, ev Event) error {
		fired = append(fired, ev.Hook())
		return nil
	})

	require.NoError(t, p.Trigger(context.Background(), AfterNodeEvent{NodeName: "n"}))
	assert.Empty(t, fired)

	require.NoError(t, p.Trigger(context.Background(), BeforeNodeEvent{NodeName: "n"}))
	assert.Equal(t, []HookType{HookBeforeNode}, fired)
}

func TestPipelineHandlerErrorAborts(t *testing.T) {
	p := NewPipeline()
	boom := errors.New("boom")
	var laterRan bool

	p.Register(HookBeforeNode, "bad", func(context.Context, Event) error { return boom })
	p.Register(HookBeforeNode, "later", func(context.Context, Event) error {
		laterRan = true
		return nil
	})

	err := p.Trigger(context.Background(), BeforeNodeEvent{NodeName: "n"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"bad"`)
	assert.False(t, laterRan, "remaining handlers must not run after a failure")
}

func TestPipelineHandlerIsolationContinues(t *testing.T) {
	p := NewPipeline(WithHandlerIsolation(&log.NoOpLogger{}))
	var laterRan bool

	p.Register(HookBeforeNode, "bad", func(context.Context, Event) error {
		return errors.New("boom")
	})
	p.Register(HookBeforeNode, "later", func(context.Context, Event) error {
		laterRan = true
		return nil
	})

	err := p.Trigger(context.Background(), BeforeNodeEvent{NodeName: "n"})
	assert.NoError(t, err)
	assert.True(t, laterRan)
}

func TestPipelineUnregister(t *testing.T) {
	p := NewPipeline()
	var calls int

	p.Register(HookAfterNode, "keep", func(context.Context, Event) error { calls++; return nil })
	p.Register(HookAfterNode, "drop", func(context.Context, Event) error { calls += 100; return nil })
	p.Register(HookAfterNode, "drop", func(context.Context, Event) error { calls += 100; return nil })

	p.Unregister(HookAfterNode, "drop")
	assert.Equal(t, 1, p.HandlerCount(HookAfterNode))

	require.NoError(t, p.Trigger(context.Background(), AfterNodeEvent{NodeName: "n"}))
	assert.Equal(t, 1, calls)
}

func TestPipelineTriggerWithNoHandlers(t *testing.T) {
	p := NewPipeline()
	assert.NoError(t, p.Trigger(context.Background(), AfterNodeEvent{NodeName: "n"}))
}

func TestAllHooksCovered(t *testing.T) {
	hooks := AllHooks()
	seen := make(map[HookType]bool, len(hooks))
	for _, h := range hooks {
		assert.False(t, seen[h], "hook %s listed twice", h)
		seen[h] = true
	}
	assert.Len(t, hooks, 14)
}
