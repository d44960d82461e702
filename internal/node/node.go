// Package node implements the per-node execution contract: a node runs
// its logic inside a timeout, retries on failure per its own policy, and
// records one NodeExecution per attempt.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShaharBand/fluxly/internal/status"
	"github.com/ShaharBand/fluxly/internal/werrors"
)

// RunContext carries the variables and ambient workflow metadata visible
// to a node's logic closure during a single workflow attempt. Variables
// is shared and mutated by node logic as data flows downstream, so all
// access beyond the node currently running must go through Get/Set.
type RunContext struct {
	WorkflowName string

	mu   sync.Mutex
	vars map[string]any
}

// NewRunContext creates a RunContext seeded with the given variables.
// The map is copied so callers can't mutate it out from under the run.
func NewRunContext(workflowName string, seed map[string]any) *RunContext {
	vars := make(map[string]any, len(seed))
	for k, v := range seed {
		vars[k] = v
	}
	return &RunContext{WorkflowName: workflowName, vars: vars}
}

func (rc *RunContext) Get(key string) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.vars[key]
	return v, ok
}

func (rc *RunContext) Set(key string, value any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.vars[key] = value
}

// Snapshot returns a shallow copy of the current variables, safe for a
// condition expression or logging call to read without locking further.
func (rc *RunContext) Snapshot() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]any, len(rc.vars))
	for k, v := range rc.vars {
		out[k] = v
	}
	return out
}

// Error describes the failure behind a non-completed NodeExecution, kept
// as plain strings (not the original Go error) so executions stay
// serializable for the HTTP run-status surface.
type Error struct {
	ClassName string `json:"exceptionClassName"`
	Message   string `json:"exceptionMessage"`
}

// Metadata tracks wall-clock timing for one execution attempt.
type Metadata struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// ProcessTime is the attempt's duration, or zero if still running.
func (m Metadata) ProcessTime() time.Duration {
	if m.EndTime == nil {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

// Execution is the record of a single attempt at running a node's logic.
type Execution struct {
	Status   status.Code    `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Branch   string         `json:"branch,omitempty"`
	Error    *Error         `json:"error,omitempty"`
	Metadata Metadata       `json:"metadata"`
}

// Logic is a node's executable behavior. It receives the shared run
// context and returns the variables the node produced, or an error —
// ideally a werrors.StatusError so the execution gets a precise status.
type Logic func(ctx context.Context, rc *RunContext) (map[string]any, error)

// Hooks are optional lifecycle callbacks, no-ops unless set.
type Hooks struct {
	OnStart   func(n *Node)
	OnSuccess func(n *Node)
	OnFailure func(n *Node, err error)
	OnFinish  func(n *Node)
}

// Node is one unit of work in a graph. Logic is a closure rather than a
// method on a subclass, so new node behaviors are just new functions, not
// new types.
type Node struct {
	Name              string
	Logic             Logic
	TimeoutSeconds    float64
	MaxRetries        int
	RetryDelaySeconds float64
	Hooks             Hooks

	mu         sync.Mutex
	executions []Execution
}

// Clone returns a fresh node with the same behavior and policy but no
// execution history, used to give each workflow run (and each workflow
// retry attempt) its own independent node state.
func (n *Node) Clone() *Node {
	return &Node{
		Name:              n.Name,
		Logic:             n.Logic,
		TimeoutSeconds:    n.TimeoutSeconds,
		MaxRetries:        n.MaxRetries,
		RetryDelaySeconds: n.RetryDelaySeconds,
		Hooks:             n.Hooks,
	}
}

// New creates a node with the given behavior and default policy: no
// retries, a 1s retry delay, and a 30s per-attempt timeout.
func New(name string, logic Logic) *Node {
	return &Node{
		Name:              name,
		Logic:             logic,
		TimeoutSeconds:    30,
		MaxRetries:        0,
		RetryDelaySeconds: 1,
	}
}

// Attempt returns how many executions have been recorded so far.
func (n *Node) Attempt() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.executions)
}

// LastExecution returns the most recent execution, if any.
func (n *Node) LastExecution() (Execution, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.executions) == 0 {
		return Execution{}, false
	}
	return n.executions[len(n.executions)-1], true
}

// Executions returns a copy of every recorded execution, in attempt order.
func (n *Node) Executions() []Execution {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Execution, len(n.executions))
	copy(out, n.executions)
	return out
}

// ResetExecutions clears recorded execution history. Called at the start
// of each new workflow-level attempt so per-node retry counts don't leak
// across workflow retries.
func (n *Node) ResetExecutions() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executions = nil
}

func (n *Node) appendExecution(e Execution) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executions = append(n.executions, e)
}

func (n *Node) setLastEnd(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.executions) == 0 {
		return
	}
	if n.executions[len(n.executions)-1].Metadata.EndTime == nil {
		n.executions[len(n.executions)-1].Metadata.EndTime = &t
	}
}

// Execute runs the node's logic, retrying per MaxRetries/RetryDelaySeconds
// on failure, each attempt bounded by TimeoutSeconds. It returns the last
// error encountered once retries are exhausted, or nil on success.
func (n *Node) Execute(ctx context.Context, rc *RunContext) error {
	var lastErr error

	for attempt := 0; attempt <= n.MaxRetries; attempt++ {
		n.startExecution()
		if n.Hooks.OnStart != nil {
			n.Hooks.OnStart(n)
		}

		output, err := n.runWithTimeout(ctx, rc)
		if err == nil {
			n.finishExecution(status.Completed, output, "", nil)
			if n.Hooks.OnSuccess != nil {
				n.Hooks.OnSuccess(n)
			}
			if n.Hooks.OnFinish != nil {
				n.Hooks.OnFinish(n)
			}
			return nil
		}

		lastErr = err
		code := werrors.Classify(err)
		n.finishExecution(code, nil, "", &Error{ClassName: werrors.ClassName(err), Message: err.Error()})

		if n.Hooks.OnFailure != nil {
			n.Hooks.OnFailure(n, err)
		}
		if n.Hooks.OnFinish != nil {
			n.Hooks.OnFinish(n)
		}

		if attempt >= n.MaxRetries {
			return lastErr
		}
		if n.RetryDelaySeconds > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(n.RetryDelaySeconds * float64(time.Second))):
			}
		}
	}

	return lastErr
}

func (n *Node) startExecution() {
	n.appendExecution(Execution{
		Status:   status.InProgress,
		Metadata: Metadata{StartTime: time.Now()},
	})
}

func (n *Node) finishExecution(code status.Code, output map[string]any, branch string, nerr *Error) {
	n.mu.Lock()
	if len(n.executions) > 0 {
		last := &n.executions[len(n.executions)-1]
		last.Status = code
		last.Output = output
		last.Branch = branch
		last.Error = nerr
	}
	n.mu.Unlock()
	n.setLastEnd(time.Now())
}

// runWithTimeout races the node's logic against TimeoutSeconds. On
// overrun the context passed to the logic is cancelled, but the logic
// goroutine is not waited for — it may keep running after this returns
// if it ignores its context. Timeouts are reported to the caller
// immediately rather than waiting on cooperative cancellation.
func (n *Node) runWithTimeout(ctx context.Context, rc *RunContext) (map[string]any, error) {
	type result struct {
		output map[string]any
		err    error
	}

	resultCh := make(chan result, 1)
	attemptCtx := ctx
	var cancel context.CancelFunc
	if n.TimeoutSeconds > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(n.TimeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: fmt.Errorf("node %s panicked: %v", n.Name, r)}
			}
		}()
		out, err := n.Logic(attemptCtx, rc)
		resultCh <- result{output: out, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.output, res.err
	case <-attemptCtx.Done():
		return nil, werrors.Timeout(fmt.Sprintf("node %s exceeded %.0fs timeout", n.Name, n.TimeoutSeconds))
	}
}
