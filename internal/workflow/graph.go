package workflow

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ShaharBand/fluxly/internal/node"
	"github.com/ShaharBand/fluxly/internal/status"
)

// Edge connects two nodes, optionally guarded by a condition. A nil
// Condition always passes. Expr holds a compiled expr-lang program
// evaluated against the run's variables instead of (or alongside) a Go
// closure, letting edges be defined declaratively from node metadata.
type Edge struct {
	Source, Destination string
	Condition           func() bool
	Expr                *vm.Program

	passed *bool
}

// Evaluate runs the edge's condition exactly once per call and records
// whether it passed. A condition-less edge always passes.
func (e *Edge) Evaluate(rc *node.RunContext) (bool, error) {
	switch {
	case e.Expr != nil:
		out, err := expr.Run(e.Expr, rc.Snapshot())
		if err != nil {
			return false, fmt.Errorf("edge %s->%s: expression error: %w", e.Source, e.Destination, err)
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("edge %s->%s: expression did not return bool, got %T", e.Source, e.Destination, out)
		}
		e.passed = &b
		return b, nil
	case e.Condition != nil:
		b := e.Condition()
		e.passed = &b
		return b, nil
	default:
		b := true
		e.passed = &b
		return b, nil
	}
}

// ConditionPassed reports the last Evaluate result, or nil if never
// evaluated this attempt.
func (e *Edge) ConditionPassed() *bool { return e.passed }

func (e *Edge) reset() { e.passed = nil }

// Graph holds a workflow's nodes and edges and enforces: unique node
// names, no self-loops, no duplicate edges, and acyclicity.
type Graph struct {
	Nodes map[string]*node.Node
	Edges []*Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*node.Node)}
}

// AddNode registers a node under its own name. Returns an error if the
// name is already taken.
func (g *Graph) AddNode(n *node.Node) error {
	if _, exists := g.Nodes[n.Name]; exists {
		return fmt.Errorf("node %q already exists", n.Name)
	}
	g.Nodes[n.Name] = n
	return nil
}

func (g *Graph) validateEndpoints(source, dest string) error {
	if _, ok := g.Nodes[source]; !ok {
		return fmt.Errorf("unknown source node %q", source)
	}
	if _, ok := g.Nodes[dest]; !ok {
		return fmt.Errorf("unknown destination node %q", dest)
	}
	if source == dest {
		return fmt.Errorf("cannot create self-loop edge on %q", source)
	}
	return nil
}

func (g *Graph) edgeExists(source, dest string) bool {
	for _, e := range g.Edges {
		if e.Source == source && e.Destination == dest {
			return true
		}
	}
	return false
}

// AddEdge creates an unconditional edge from source to dest, rejecting
// unknown endpoints, self-loops, duplicate edges, and edges that would
// introduce a cycle.
func (g *Graph) AddEdge(source, dest string) (*Edge, error) {
	return g.addEdge(source, dest, nil, nil)
}

// AddConditionalEdge creates an edge gated by a Go closure predicate.
func (g *Graph) AddConditionalEdge(source, dest string, cond func() bool) (*Edge, error) {
	return g.addEdge(source, dest, cond, nil)
}

// AddExprEdge creates an edge gated by a compiled expr-lang expression,
// evaluated against the run context's variables at schedule time.
func (g *Graph) AddExprEdge(source, dest, exprSrc string) (*Edge, error) {
	program, err := expr.Compile(exprSrc, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("edge %s->%s: invalid expression %q: %w", source, dest, exprSrc, err)
	}
	return g.addEdge(source, dest, nil, program)
}

// AddEdgeIfSourceCompleted adds an edge that only passes when the source
// node's most recent attempt completed successfully — the common "run B
// only if A succeeded" wiring.
func (g *Graph) AddEdgeIfSourceCompleted(source, dest string) (*Edge, error) {
	srcNode, ok := g.Nodes[source]
	if !ok {
		return nil, fmt.Errorf("unknown source node %q", source)
	}
	cond := func() bool {
		last, ok := srcNode.LastExecution()
		return ok && last.Status == status.Completed
	}
	return g.addEdge(source, dest, cond, nil)
}

func (g *Graph) addEdge(source, dest string, cond func() bool, program *vm.Program) (*Edge, error) {
	if err := g.validateEndpoints(source, dest); err != nil {
		return nil, err
	}
	if g.edgeExists(source, dest) {
		return nil, fmt.Errorf("edge %s->%s already exists", source, dest)
	}

	edge := &Edge{Source: source, Destination: dest, Condition: cond, Expr: program}
	if err := g.validateAcyclic(edge); err != nil {
		return nil, err
	}
	g.Edges = append(g.Edges, edge)
	return edge, nil
}

// validateAcyclic runs Kahn's algorithm over the edge set plus the
// candidate edge; if it can't produce a full topological order, the
// candidate edge would close a cycle. Validation never mutates g.Edges,
// so a rejected edge leaves the graph untouched (atomic, no partial
// mutation).
func (g *Graph) validateAcyclic(candidate *Edge) error {
	type key = string
	inDegree := make(map[key]int, len(g.Nodes))
	adj := make(map[key][]key, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}

	addEdge := func(src, dst key) {
		adj[src] = append(adj[src], dst)
		inDegree[dst]++
	}
	for _, e := range g.Edges {
		addEdge(e.Source, e.Destination)
	}
	addEdge(candidate.Source, candidate.Destination)

	queue := make([]key, 0, len(inDegree))
	for n, d := range inDegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(inDegree) {
		return fmt.Errorf("edge %s->%s would create a cycle", candidate.Source, candidate.Destination)
	}
	return nil
}

// Parents returns the nodes with an edge into name, in graph-insertion order.
func (g *Graph) Parents(name string) []*node.Node {
	var out []*node.Node
	for _, e := range g.Edges {
		if e.Destination == name {
			out = append(out, g.Nodes[e.Source])
		}
	}
	return out
}

// Children returns the nodes name has an edge into, in graph-insertion order.
func (g *Graph) Children(name string) []*node.Node {
	var out []*node.Node
	for _, e := range g.Edges {
		if e.Source == name {
			out = append(out, g.Nodes[e.Destination])
		}
	}
	return out
}

func (g *Graph) edgeBetween(source, dest string) *Edge {
	for _, e := range g.Edges {
		if e.Source == source && e.Destination == dest {
			return e
		}
	}
	return nil
}

// CanNodeRun reports whether name is eligible to run given the current
// resolved set: already-resolved nodes never run again; a node with no
// parents is always eligible; a node with parents is eligible once every
// parent is resolved and every incoming edge from a resolved parent has
// evaluated true.
func (g *Graph) CanNodeRun(name string, resolved map[string]bool, rc *node.RunContext) (bool, error) {
	if resolved[name] {
		return false, nil
	}

	parents := g.Parents(name)
	if len(parents) == 0 {
		return true, nil
	}

	for _, parent := range parents {
		if !resolved[parent.Name] {
			return false, nil
		}
		edge := g.edgeBetween(parent.Name, name)
		if edge == nil {
			continue
		}
		passed, err := edge.Evaluate(rc)
		if err != nil {
			return false, err
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

// ResetEdges clears per-attempt condition-evaluation state, called at the
// start of each workflow attempt alongside node execution-history resets.
func (g *Graph) ResetEdges() {
	for _, e := range g.Edges {
		e.reset()
	}
}
