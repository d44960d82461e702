package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunsTotal_Increments(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("weather-alert"))
	RunsTotal.WithLabelValues("weather-alert").Inc()
	after := testutil.ToFloat64(RunsTotal.WithLabelValues("weather-alert"))

	if after != before+1 {
		t.Errorf("RunsTotal did not increment: before=%v after=%v", before, after)
	}
}

func TestNodeDuration_ObservesWithoutPanicking(t *testing.T) {
	NodeDuration.WithLabelValues("weather_check", "COMPLETED").Observe(0.25)
}

func TestTracer_ReturnsNonNilNoOpTracer(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer() must never return nil")
	}
}
