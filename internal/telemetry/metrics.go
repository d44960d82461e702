// Package telemetry wires Prometheus metrics and OpenTelemetry tracing
// around node and workflow execution.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodeDuration records how long each node attempt took, labeled by
	// node name and terminal status.
	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fluxly",
		Subsystem: "node",
		Name:      "execution_duration_seconds",
		Help:      "Duration of a single node execution attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node", "status"})

	// WorkflowDuration records how long each workflow attempt took,
	// labeled by workflow name and terminal status.
	WorkflowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fluxly",
		Subsystem: "workflow",
		Name:      "execution_duration_seconds",
		Help:      "Duration of a single workflow execution attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"workflow", "status"})

	// RunsTotal counts run-registry submissions, labeled by workflow name.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxly",
		Subsystem: "registry",
		Name:      "runs_total",
		Help:      "Total number of runs submitted to the run registry.",
	}, []string{"workflow"})
)
