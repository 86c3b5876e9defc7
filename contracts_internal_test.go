package digraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractsListPushPop(t *testing.T) {
	var l ContractsList

	pushed, _, ok := l.Push([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, 2, pushed)
	assert.Equal(t, []string{"a", "b"}, l.Snapshot())

	_, duplicate, ok := l.Push([]string{"B"})
	assert.False(t, ok, "duplicate detection is case-insensitive")
	assert.Equal(t, "B", duplicate)
	assert.Equal(t, []string{"a", "b"}, l.Snapshot(), "a failed push leaves the stack untouched")

	popped := l.Pop(1)
	assert.Equal(t, []string{"b"}, popped)
	l.restore(popped)
	assert.Equal(t, []string{"a", "b"}, l.Snapshot())
}

func TestContractsListUnionExpansion(t *testing.T) {
	registry := newConfigurationRegistry()
	registry.unions["all"] = []string{"c1", "c2"}

	var l ContractsList
	l.Push([]string{"base", "all", "extra"})

	alternatives, suffix := l.TryExpandUnions(registry)
	require.NotNil(t, alternatives)
	assert.Equal(t, 2, suffix, "the suffix starts at the first union contract")
	assert.Equal(t, [][]string{
		{"c1", "extra"},
		{"c2", "extra"},
	}, alternatives)

	var plain ContractsList
	plain.Push([]string{"c1"})
	none, _ := plain.TryExpandUnions(registry)
	assert.Nil(t, none)
}

func TestCartesianOrder(t *testing.T) {
	got := cartesian([][]string{{"a", "b"}, {"x"}, {"1", "2"}})
	assert.Equal(t, [][]string{
		{"a", "x", "1"},
		{"a", "x", "2"},
		{"b", "x", "1"},
		{"b", "x", "2"},
	}, got)
}

func TestContractStackSymmetry(t *testing.T) {
	c := New()
	ctx := newResolutionContext(c, false)
	name := ServiceName{Type: TypeOf[*ContractsList](), Contracts: []string{"c1", "c2"}}
	c.resolveCore(name, false, nil, ctx)
	assert.Equal(t, 0, ctx.contracts.Len(), "the contract stack returns to its entry state")
	assert.Empty(t, ctx.stack)
}
