// Package registry implements the in-memory, process-local run registry
// backing the asynchronous HTTP submission surface: submit a workflow
// template, get back a run id immediately, and poll for its outcome.
// Registry state is not durable — a process restart loses all runs.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShaharBand/fluxly/internal/audit"
	"github.com/ShaharBand/fluxly/internal/status"
	"github.com/ShaharBand/fluxly/internal/telemetry"
	"github.com/ShaharBand/fluxly/internal/workflow"
)

// Runnable is the subset of *workflow.Workflow the registry needs: a
// clonable, executable, inspectable template. Satisfied directly by
// *workflow.Workflow; defined as an interface so tests can substitute a
// fake without touching the scheduler.
type Runnable interface {
	Clone() *workflow.Workflow
}

// Record is the externally visible state of one submitted run.
type Record struct {
	RunID           string
	Endpoint        string
	WorkflowName    string
	WorkflowVersion string
	WorkflowID      string
	Status          status.Code
	SubmittedAt     time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Executions      []workflow.Execution
	Error           string
}

// Registry holds submitted runs in memory, guarded by a mutex since runs
// are submitted and polled from concurrent HTTP handlers.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record

	audit audit.Sink
}

// New creates an empty registry. sink may be nil, in which case audit
// logging is skipped entirely (equivalent to audit.NoopSink{}).
func New(sink audit.Sink) *Registry {
	if sink == nil {
		sink = audit.NoopSink{}
	}
	return &Registry{records: make(map[string]*Record), audit: sink}
}

// Submit deep-clones template, merges extra into the clone's input
// variables, assigns a new run id, and starts the run in a background
// goroutine. It returns immediately with the record — the caller is
// expected to poll Get for the outcome. The record starts in WAITING;
// the background goroutine flips it to IN_PROGRESS and stamps
// started_at once it actually begins executing.
func (r *Registry) Submit(ctx context.Context, endpoint string, template Runnable, extra map[string]any) Record {
	runID := uuid.New().String()
	run := template.Clone()
	if len(extra) > 0 {
		if run.Input.Extra == nil {
			run.Input.Extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			run.Input.Extra[k] = v
		}
	}

	rec := &Record{
		RunID:           runID,
		Endpoint:        endpoint,
		WorkflowName:    run.Name,
		WorkflowVersion: run.Version,
		WorkflowID:      run.ID,
		Status:          status.Waiting,
		SubmittedAt:     time.Now(),
	}

	r.mu.Lock()
	r.records[runID] = rec
	snapshot := *rec
	r.mu.Unlock()

	telemetry.RunsTotal.WithLabelValues(run.Name).Inc()

	go r.runInBackground(ctx, runID, run)

	return snapshot
}

func (r *Registry) runInBackground(ctx context.Context, runID string, run *workflow.Workflow) {
	r.mu.Lock()
	if rec := r.records[runID]; rec != nil {
		now := time.Now()
		rec.Status = status.InProgress
		rec.StartedAt = &now
	}
	r.mu.Unlock()

	err := run.Execute(ctx)

	r.mu.Lock()
	rec := r.records[runID]
	var finalStatus status.Code
	if rec != nil {
		now := time.Now()
		rec.CompletedAt = &now
		rec.Executions = run.Executions()
		if last, ok := run.LastExecution(); ok {
			rec.Status = last.Status
		} else {
			rec.Status = status.Unknown
		}
		if err != nil {
			rec.Error = err.Error()
		}
		finalStatus = rec.Status
	} else {
		finalStatus = status.Unknown
	}
	r.mu.Unlock()

	r.audit.Record(context.Background(), audit.Entry{
		RunID:        runID,
		WorkflowName: run.Name,
		Status:       finalStatus,
		CompletedAt:  time.Now(),
		Error:        errString(err),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Get returns a copy of the record for runID, or false if unknown.
func (r *Registry) Get(runID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[runID]
	if !ok {
		return Record{}, false
	}
	cp := *rec
	cp.Executions = append([]workflow.Execution(nil), rec.Executions...)
	return cp, true
}
