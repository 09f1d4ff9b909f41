package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func testToolDefs(names ...string) []llms.Tool {
	defs := make([]llms.Tool, 0, len(names))
	for _, name := range names {
		defs = append(defs, llms.Tool{
			Type:     "function",
			Function: &llms.FunctionDefinition{Name: name},
		})
	}
	return defs
}

func TestStorageTypedKeys(t *testing.T) {
	ec := newTestContext()

	countKey := NewStorageKey[int]("count")
	nameKey := NewStorageKey[string]("name")

	SetValue(ec, countKey, 3)
	SetValue(ec, nameKey, "planner")

	count, ok := GetValue(ec, countKey)
	require.True(t, ok)
	assert.Equal(t, 3, count)

	name, ok := GetValue(ec, nameKey)
	require.True(t, ok)
	assert.Equal(t, "planner", name)
}

func TestStorageOverwrite(t *testing.T) {
	ec := newTestContext()
	key := NewStorageKey[string]("k")

	SetValue(ec, key, "first")
	SetValue(ec, key, "second")

	v, ok := GetValue(ec, key)
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestStorageSameNameDifferentTypes(t *testing.T) {
	ec := newTestContext()

	// (type, name) compound keys: same name, different types coexist.
	SetValue(ec, NewStorageKey[int]("k"), 1)
	SetValue(ec, NewStorageKey[string]("k"), "one")

	i, ok := GetValue(ec, NewStorageKey[int]("k"))
	require.True(t, ok)
	assert.Equal(t, 1, i)

	s, ok := GetValue(ec, NewStorageKey[string]("k"))
	require.True(t, ok)
	assert.Equal(t, "one", s)
}

func TestRequireValueMissing(t *testing.T) {
	ec := newTestContext()

	_, err := RequireValue(ec, NewStorageKey[int]("absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent")
}

func TestStorageConcurrentAccess(t *testing.T) {
	ec := newTestContext()
	key := NewStorageKey[int]("shared")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetValue(ec, key, n)
			GetValue(ec, key)
		}(i)
	}
	wg.Wait()

	_, ok := GetValue(ec, key)
	assert.True(t, ok)
}

func TestCurrentNodeOutsideExecution(t *testing.T) {
	assert.Equal(t, "", CurrentNode(context.Background()))

	ctx := withCurrentNode(context.Background(), "worker")
	assert.Equal(t, "worker", CurrentNode(ctx))
}

func TestIterationBudget(t *testing.T) {
	ec := NewExecContext(ExecContextConfig{RunID: "r", MaxIterations: 2})

	require.NoError(t, ec.nextIteration())
	require.NoError(t, ec.nextIteration())

	err := ec.nextIteration()
	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, int64(2), maxErr.Limit)
}

func TestIterationBudgetUnlimitedWhenZero(t *testing.T) {
	ec := NewExecContext(ExecContextConfig{RunID: "r"})
	for range 1000 {
		require.NoError(t, ec.nextIteration())
	}
}

func TestToolSelectionPolicyFilter(t *testing.T) {
	defs := testToolDefs("search", "calc", "browse")

	assert.Len(t, AllTools().Filter(defs), 3)
	assert.Empty(t, NoTools().Filter(defs))

	named := NamedTools("calc", "browse").Filter(defs)
	require.Len(t, named, 2)
	assert.Equal(t, "calc", named[0].Function.Name)
	assert.Equal(t, "browse", named[1].Function.Name)

	// Zero value offers everything.
	var zero ToolSelectionPolicy
	assert.Len(t, zero.Filter(defs), 3)
}
