package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShaharBand/fluxly/internal/node"
)

func noopLogic(context.Context, *node.RunContext) (map[string]any, error) {
	return nil, nil
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	err := g.AddNode(node.New("a", noopLogic))
	require.Error(t, err)
}

func TestGraph_AddEdge_RejectsUnknownNodes(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	_, err := g.AddEdge("a", "ghost")
	require.Error(t, err)
}

func TestGraph_AddEdge_RejectsSelfLoop(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	_, err := g.AddEdge("a", "a")
	require.Error(t, err)
}

func TestGraph_AddEdge_RejectsDuplicate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	_, err := g.AddEdge("a", "b")
	require.NoError(t, err)
	_, err = g.AddEdge("a", "b")
	require.Error(t, err)
}

func TestGraph_AddEdge_RejectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	require.NoError(t, g.AddNode(node.New("c", noopLogic)))
	_, err := g.AddEdge("a", "b")
	require.NoError(t, err)
	_, err = g.AddEdge("b", "c")
	require.NoError(t, err)
	_, err = g.AddEdge("c", "a")
	require.Error(t, err, "c->a would close a cycle")

	// graph must be untouched after the rejected edge
	assert.Len(t, g.Edges, 2)
}

func TestGraph_CanNodeRun(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	_, err := g.AddEdge("a", "b")
	require.NoError(t, err)

	rc := node.NewRunContext("wf", nil)
	resolved := map[string]bool{}

	ok, err := g.CanNodeRun("a", resolved, rc)
	require.NoError(t, err)
	assert.True(t, ok, "root node with no parents is always runnable")

	ok, err = g.CanNodeRun("b", resolved, rc)
	require.NoError(t, err)
	assert.False(t, ok, "b cannot run until a resolves")

	resolved["a"] = true
	ok, err = g.CanNodeRun("b", resolved, rc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGraph_CanNodeRun_FalseConditionSkips(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	_, err := g.AddConditionalEdge("a", "b", func() bool { return false })
	require.NoError(t, err)

	rc := node.NewRunContext("wf", nil)
	resolved := map[string]bool{"a": true}

	ok, err := g.CanNodeRun("b", resolved, rc)
	require.NoError(t, err)
	assert.False(t, ok, "false condition keeps b from running")
}

func TestGraph_AddExprEdge(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	_, err := g.AddExprEdge("a", "b", "temperature > 30")
	require.NoError(t, err)

	rc := node.NewRunContext("wf", map[string]any{"temperature": 35.0})
	resolved := map[string]bool{"a": true}

	ok, err := g.CanNodeRun("b", resolved, rc)
	require.NoError(t, err)
	assert.True(t, ok)

	rc2 := node.NewRunContext("wf", map[string]any{"temperature": 10.0})
	ok, err = g.CanNodeRun("b", resolved, rc2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGraph_ParentsChildren(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(node.New("a", noopLogic)))
	require.NoError(t, g.AddNode(node.New("b", noopLogic)))
	require.NoError(t, g.AddNode(node.New("c", noopLogic)))
	_, err := g.AddEdge("a", "b")
	require.NoError(t, err)
	_, err = g.AddEdge("a", "c")
	require.NoError(t, err)

	children := g.Children("a")
	require.Len(t, children, 2)
	assert.Equal(t, "b", children[0].Name)
	assert.Equal(t, "c", children[1].Name)

	parents := g.Parents("b")
	require.Len(t, parents, 1)
	assert.Equal(t, "a", parents[0].Name)
}
