// Package workflow implements the DAG scheduler: a Workflow owns a Graph
// of nodes, runs them concurrently round by round respecting edge
// conditions and execution-group partial-failure tolerance, and retries
// the whole attempt on workflow-level failure.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ShaharBand/fluxly/internal/docsgen"
	"github.com/ShaharBand/fluxly/internal/logging"
	"github.com/ShaharBand/fluxly/internal/node"
	"github.com/ShaharBand/fluxly/internal/status"
	"github.com/ShaharBand/fluxly/internal/telemetry"
	"github.com/ShaharBand/fluxly/internal/werrors"
)

// Hooks are optional workflow-level lifecycle callbacks, no-ops unless set.
type Hooks struct {
	OnStart   func(wf *Workflow)
	OnSuccess func(wf *Workflow)
	OnFailure func(wf *Workflow, err error)
	OnFinish  func(wf *Workflow)
}

// Workflow is a named, versioned DAG plus the control inputs governing
// how it runs: timeout, retries, verbosity, and documentation generation.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Version     string
	Input       Input
	Schema      Schema

	Logger Logger
	Hooks  Hooks

	graph           *Graph
	executionGroups [][]string

	mu         sync.Mutex
	executions []Execution
}

// Logger is the subset of logging.Service the scheduler logs through.
type Logger = logging.Service

// New creates an empty workflow, assigning it a stable identity (ID)
// distinct from any run_id a submission later generates. Call
// AddNode/AddEdge to build the graph before Execute.
func New(name string, input Input) *Workflow {
	return &Workflow{
		ID:     uuid.New().String(),
		Name:   name,
		Input:  input,
		Logger: logging.NewSlogService(nil),
		graph:  NewGraph(),
	}
}

// Graph exposes the underlying graph for building and for read-only
// inspection (docs generation, HTTP node listing).
func (wf *Workflow) Graph() *Graph { return wf.graph }

// AddNode registers a node in the workflow's graph.
func (wf *Workflow) AddNode(n *node.Node) error { return wf.graph.AddNode(n) }

// AddEdge adds an unconditional edge.
func (wf *Workflow) AddEdge(source, dest string) error {
	_, err := wf.graph.AddEdge(source, dest)
	return err
}

// AddConditionalEdge adds an edge gated by a Go predicate.
func (wf *Workflow) AddConditionalEdge(source, dest string, cond func() bool) error {
	_, err := wf.graph.AddConditionalEdge(source, dest, cond)
	return err
}

// AddExprEdge adds an edge gated by a compiled expr-lang expression.
func (wf *Workflow) AddExprEdge(source, dest, expr string) error {
	_, err := wf.graph.AddExprEdge(source, dest, expr)
	return err
}

// AddExecutionGroup declares a set of node names that fail or succeed
// together for the purpose of the workflow's abort decision: the
// workflow only aborts once every declared group (or, if none are
// declared, the implicit single group of all nodes) is dead.
func (wf *Workflow) AddExecutionGroup(nodeNames []string) error {
	if len(nodeNames) == 0 {
		return fmt.Errorf("execution group must include at least one node")
	}
	for _, n := range nodeNames {
		if _, ok := wf.graph.Nodes[n]; !ok {
			return fmt.Errorf("execution group references unknown node %q", n)
		}
	}
	group := make([]string, len(nodeNames))
	copy(group, nodeNames)
	wf.executionGroups = append(wf.executionGroups, group)
	return nil
}

// Attempt returns how many workflow executions have been recorded.
func (wf *Workflow) Attempt() int {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	return len(wf.executions)
}

// LastExecution returns the most recent workflow execution, if any.
func (wf *Workflow) LastExecution() (Execution, bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if len(wf.executions) == 0 {
		return Execution{}, false
	}
	return wf.executions[len(wf.executions)-1], true
}

// Executions returns a copy of every recorded workflow execution.
func (wf *Workflow) Executions() []Execution {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	out := make([]Execution, len(wf.executions))
	copy(out, wf.executions)
	return out
}

// Clone returns a workflow with the same structure (nodes, edges,
// execution groups, schema, input) but no execution history — used to
// give each run-registry submission an independent, concurrency-safe
// copy of a shared workflow template.
func (wf *Workflow) Clone() *Workflow {
	clone := &Workflow{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Version:     wf.Version,
		Input:       wf.Input,
		Schema:      wf.Schema,
		Logger:      wf.Logger,
		Hooks:       wf.Hooks,
		graph:       NewGraph(),
	}
	if wf.Input.Extra != nil {
		clone.Input.Extra = make(map[string]any, len(wf.Input.Extra))
		for k, v := range wf.Input.Extra {
			clone.Input.Extra[k] = v
		}
	}

	for name, n := range wf.graph.Nodes {
		clone.graph.Nodes[name] = n.Clone()
	}
	for _, e := range wf.graph.Edges {
		clone.graph.Edges = append(clone.graph.Edges, &Edge{
			Source:      e.Source,
			Destination: e.Destination,
			Condition:   e.Condition,
			Expr:        e.Expr,
		})
	}
	for _, g := range wf.executionGroups {
		group := make([]string, len(g))
		copy(group, g)
		clone.executionGroups = append(clone.executionGroups, group)
	}
	return clone
}

// Execute runs the workflow to completion, retrying the entire attempt up
// to Input.MaxRetries times on failure, each attempt bounded by
// Input.TimeoutSeconds. It returns the last error once retries are
// exhausted, or nil on success.
func (wf *Workflow) Execute(ctx context.Context) error {
	if len(wf.graph.Nodes) == 0 {
		return werrors.PrerequisiteFail(fmt.Sprintf("workflow %q has no nodes", wf.Name))
	}

	wf.logStart()

	var lastErr error
	for attempt := 0; attempt <= wf.Input.MaxRetries; attempt++ {
		wf.startExecution()
		if wf.Hooks.OnStart != nil {
			wf.Hooks.OnStart(wf)
		}

		err := wf.runWithTimeout(ctx)
		if err == nil {
			wf.finishExecution(status.Completed)
			if wf.Hooks.OnSuccess != nil {
				wf.Hooks.OnSuccess(wf)
			}
			if wf.Hooks.OnFinish != nil {
				wf.Hooks.OnFinish(wf)
			}
			wf.logSummary()
			wf.finalize()
			return nil
		}

		lastErr = err
		wf.finishExecution(werrors.Classify(err))
		if wf.Hooks.OnFailure != nil {
			wf.Hooks.OnFailure(wf, err)
		}
		if wf.Hooks.OnFinish != nil {
			wf.Hooks.OnFinish(wf)
		}
		wf.logSummary()

		if attempt >= wf.Input.MaxRetries {
			break
		}
		wf.Logger.Warning(fmt.Sprintf("%s failed: %v. Retrying in %.0fs...", wf.Name, err, wf.Input.RetryDelaySeconds), nil)
		select {
		case <-ctx.Done():
			wf.finalize()
			return ctx.Err()
		case <-time.After(time.Duration(wf.Input.RetryDelaySeconds * float64(time.Second))):
		}
	}

	wf.Logger.Error(fmt.Sprintf("%s failed: %v. Retries exhausted.", wf.Name, lastErr), nil)
	wf.finalize()
	return lastErr
}

func (wf *Workflow) startExecution() {
	// Each new attempt resets per-node execution history and per-edge
	// condition state, per the decision that workflow-level retries
	// start every node fresh rather than accumulating history forever.
	for _, n := range wf.graph.Nodes {
		n.ResetExecutions()
	}
	wf.graph.ResetEdges()

	wf.mu.Lock()
	wf.executions = append(wf.executions, Execution{
		ID:       fmt.Sprintf("%d", len(wf.executions)+1),
		Status:   status.InProgress,
		Metadata: Metadata{StartTime: time.Now()},
	})
	wf.mu.Unlock()
}

func (wf *Workflow) finishExecution(code status.Code) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if len(wf.executions) == 0 {
		return
	}
	last := &wf.executions[len(wf.executions)-1]
	if last.Metadata.EndTime == nil {
		now := time.Now()
		last.Metadata.EndTime = &now
	}
	last.Status = code
	telemetry.WorkflowDuration.WithLabelValues(wf.Name, code.String()).Observe(last.Metadata.ProcessTime().Seconds())
}

func (wf *Workflow) appendNodeExecution(name string, exec node.Execution) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if len(wf.executions) == 0 {
		return
	}
	last := &wf.executions[len(wf.executions)-1]
	last.Output.NodeExecutions = append(last.Output.NodeExecutions, NamedExecution{NodeName: name, Execution: exec})
}

// runWithTimeout races iterateNodes against Input.TimeoutSeconds. On
// overrun the attempt context (which the scheduler and its nodes run
// under) is cancelled and the timeout is returned at once, without
// waiting for the scheduling goroutine to exit — the same semantics the
// per-node timeout uses.
func (wf *Workflow) runWithTimeout(ctx context.Context) error {
	resultCh := make(chan error, 1)

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(wf.Input.TimeoutSeconds*float64(time.Second)))
	defer cancel()

	go func() {
		resultCh <- wf.iterateNodes(attemptCtx)
	}()

	select {
	case err := <-resultCh:
		return err
	case <-attemptCtx.Done():
		return werrors.Timeout(fmt.Sprintf("workflow %q exceeded %.0fs timeout", wf.Name, wf.Input.TimeoutSeconds))
	}
}

type nodeResult struct {
	name string
	exec node.Execution
	err  error
}

// iterateNodes is the core scheduling loop: each round it resolves any
// nodes whose parents are done but whose edge conditions failed (marking
// them skipped/resolved per the open-question decision), dispatches every
// currently runnable node concurrently, and reaps completions as they
// arrive, aborting only once every execution group is dead.
func (wf *Workflow) iterateNodes(ctx context.Context) error {
	rc := node.NewRunContext(wf.Name, wf.Input.Extra)

	resolved := make(map[string]bool, len(wf.graph.Nodes))
	scheduled := make(map[string]bool, len(wf.graph.Nodes))
	running := make(map[string]bool, len(wf.graph.Nodes))

	resultsCh := make(chan nodeResult, len(wf.graph.Nodes))
	runningCount := 0

	var sem *semaphore.Weighted
	if wf.Input.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(wf.Input.MaxConcurrency))
	}

	for {
		if err := wf.resolveSkipped(rc, resolved); err != nil {
			return err
		}

		runnable, err := wf.runnableNodes(rc, resolved, scheduled)
		if err != nil {
			return err
		}

		for _, n := range runnable {
			for _, child := range wf.graph.Children(n.Name) {
				if running[child.Name] {
					return werrors.PrerequisiteFail(
						fmt.Sprintf("attempted to start node %q while its child %q is running", n.Name, child.Name))
				}
			}
		}

		for _, n := range runnable {
			scheduled[n.Name] = true
			running[n.Name] = true
			runningCount++
			wf.dispatch(ctx, n, rc, resultsCh, sem)
		}

		if runningCount == 0 {
			break
		}

		res := <-resultsCh
		wf.reap(res, resolved, running, &runningCount)
		if dead, abortErr := wf.checkGroupsDead(res); dead {
			return abortErr
		}

		// drain any further already-ready completions before recomputing
		// the runnable set, so a round that finished several nodes at
		// once doesn't re-evaluate eligibility node by node.
	drain:
		for {
			select {
			case res := <-resultsCh:
				wf.reap(res, resolved, running, &runningCount)
				if dead, abortErr := wf.checkGroupsDead(res); dead {
					return abortErr
				}
			default:
				break drain
			}
		}
	}

	return nil
}

// dispatch starts n's execution in its own goroutine. When sem is
// non-nil (Input.MaxConcurrency > 0), the goroutine blocks on acquiring
// a slot before running the node's logic, bounding how many nodes
// actually execute at once regardless of how many are runnable in a
// given round.
func (wf *Workflow) dispatch(ctx context.Context, n *node.Node, rc *node.RunContext, resultsCh chan<- nodeResult, sem *semaphore.Weighted) {
	wf.logNodeStart(n)
	go func() {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				resultsCh <- nodeResult{name: n.Name, err: werrors.Timeout(fmt.Sprintf("node %s never acquired a concurrency slot: %v", n.Name, err))}
				return
			}
			defer sem.Release(1)
		}

		_, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("node.%s", n.Name))
		defer span.End()

		err := n.Execute(ctx, rc)
		for _, attempt := range n.Executions() {
			telemetry.NodeDuration.WithLabelValues(n.Name, attempt.Status.String()).Observe(attempt.Metadata.ProcessTime().Seconds())
		}
		exec, _ := n.LastExecution()
		resultsCh <- nodeResult{name: n.Name, exec: exec, err: err}
	}()
}

func (wf *Workflow) reap(res nodeResult, resolved, running map[string]bool, runningCount *int) {
	resolved[res.name] = true
	delete(running, res.name)
	*runningCount--
	wf.appendNodeExecution(res.name, res.exec)
	wf.logNodeSummary(res.name, res.exec)
}

// checkGroupsDead reports whether the workflow should abort because of
// res's failure: the workflow aborts only when every execution group
// (the implicit all-nodes group if none were declared) has at least one
// terminated, non-completed member.
func (wf *Workflow) checkGroupsDead(res nodeResult) (bool, error) {
	if res.exec.Status == status.Completed {
		return false, nil
	}
	if !wf.allExecutionGroupsDead() {
		return false, nil
	}
	if res.err != nil {
		return true, res.err
	}
	return true, fmt.Errorf("node %s failed with status %s", res.name, res.exec.Status)
}

func (wf *Workflow) allExecutionGroupsDead() bool {
	groups := wf.executionGroups
	if len(groups) == 0 {
		all := make([]string, 0, len(wf.graph.Nodes))
		for name := range wf.graph.Nodes {
			all = append(all, name)
		}
		groups = [][]string{all}
	}

	for _, group := range groups {
		dead := false
		for _, name := range group {
			n, ok := wf.graph.Nodes[name]
			if !ok {
				continue
			}
			last, ok := n.LastExecution()
			if !ok || !last.Status.Terminal() {
				continue
			}
			if last.Status != status.Completed {
				dead = true
				break
			}
		}
		if !dead {
			return false
		}
	}
	return true
}

// runnableNodes returns every node eligible to start this round: not yet
// scheduled, not resolved, and CanNodeRun per the graph.
func (wf *Workflow) runnableNodes(rc *node.RunContext, resolved, scheduled map[string]bool) ([]*node.Node, error) {
	var out []*node.Node
	for name, n := range wf.graph.Nodes {
		if resolved[name] || scheduled[name] {
			continue
		}
		ok, err := wf.graph.CanNodeRun(name, resolved, rc)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// resolveSkipped marks, as resolved, any node whose parents are all
// resolved but whose own CanNodeRun is false — i.e. it will never run
// because an edge condition excluded it. Per the open-question decision,
// such a node is treated as resolved (not pending forever) so its
// descendants remain eligible. Runs to a fixpoint since resolving one
// skipped node can unlock another.
func (wf *Workflow) resolveSkipped(rc *node.RunContext, resolved map[string]bool) error {
	for {
		progressed := false
		for name := range wf.graph.Nodes {
			if resolved[name] {
				continue
			}
			parents := wf.graph.Parents(name)
			if len(parents) == 0 {
				continue
			}
			allParentsResolved := true
			for _, p := range parents {
				if !resolved[p.Name] {
					allParentsResolved = false
					break
				}
			}
			if !allParentsResolved {
				continue
			}
			ok, err := wf.graph.CanNodeRun(name, resolved, rc)
			if err != nil {
				return err
			}
			if !ok {
				resolved[name] = true
				progressed = true
			}
		}
		if !progressed {
			return nil
		}
	}
}

func (wf *Workflow) finalize() {
	if !wf.Input.AutoGenerateMD {
		return
	}
	doc := docsgen.Document{Name: wf.Name, Description: wf.Description}
	for name := range wf.graph.Nodes {
		doc.NodeNames = append(doc.NodeNames, name)
	}
	for _, e := range wf.graph.Edges {
		doc.Edges = append(doc.Edges, docsgen.EdgeDoc{
			Source: e.Source, Destination: e.Destination,
			Conditional: e.Condition != nil || e.Expr != nil,
		})
	}
	doc.Groups = wf.executionGroups

	if err := docsgen.Generate(doc, wf.Input.MDFilePath, wf.Input.DiagramFilePath); err != nil {
		wf.Logger.Warning(fmt.Sprintf("docs generation failed (ignored): %v", err), nil)
	}
}

func (wf *Workflow) logStart() {
	if !wf.Input.Verbose {
		return
	}
	wf.Logger.Info(fmt.Sprintf("executing workflow %s (version %s)", wf.Name, wf.Version), nil)
}

func (wf *Workflow) logSummary() {
	last, ok := wf.LastExecution()
	if !ok {
		return
	}
	if !wf.Input.Verbose {
		wf.Logger.Info(fmt.Sprintf("workflow %s attempt #%d finished: %s", wf.Name, wf.Attempt(), last.Status), nil)
		return
	}
	wf.Logger.Info(fmt.Sprintf("workflow %s attempt #%d summary", wf.Name, wf.Attempt()), map[string]any{
		"status":   last.Status.String(),
		"duration": last.Metadata.ProcessTime().String(),
		"nodes":    len(last.Output.NodeExecutions),
	})
}

func (wf *Workflow) logNodeStart(n *node.Node) {
	if !wf.Input.Verbose {
		return
	}
	wf.Logger.Info(fmt.Sprintf("executing node %s", n.Name), map[string]any{
		"timeoutSeconds": n.TimeoutSeconds,
		"maxRetries":     n.MaxRetries,
	})
}

func (wf *Workflow) logNodeSummary(name string, exec node.Execution) {
	if exec.Status == status.Completed {
		wf.Logger.Info(fmt.Sprintf("node %s completed in %s", name, exec.Metadata.ProcessTime()), nil)
		return
	}
	var errMsg string
	if exec.Error != nil {
		errMsg = exec.Error.Message
	}
	wf.Logger.Info(fmt.Sprintf("node %s failed (%s) in %s: %s", name, exec.Status, exec.Metadata.ProcessTime(), errMsg), nil)
}
