package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShaharBand/fluxly/internal/status"
	"github.com/ShaharBand/fluxly/internal/werrors"
)

func TestNode_Execute_Success(t *testing.T) {
	n := New("fetch", func(_ context.Context, rc *RunContext) (map[string]any, error) {
		return map[string]any{"temperature": 21.5}, nil
	})

	rc := NewRunContext("wf", nil)
	err := n.Execute(context.Background(), rc)
	require.NoError(t, err)

	last, ok := n.LastExecution()
	require.True(t, ok)
	assert.Equal(t, status.Completed, last.Status)
	assert.Equal(t, 21.5, last.Output["temperature"])
	assert.Equal(t, 1, n.Attempt())
}

func TestNode_Execute_Success_FiresOnFinish(t *testing.T) {
	var onSuccess, onFinish bool
	n := New("fetch", func(_ context.Context, rc *RunContext) (map[string]any, error) {
		return nil, nil
	})
	n.Hooks.OnSuccess = func(_ *Node) { onSuccess = true }
	n.Hooks.OnFinish = func(_ *Node) { onFinish = true }

	require.NoError(t, n.Execute(context.Background(), NewRunContext("wf", nil)))
	assert.True(t, onSuccess)
	assert.True(t, onFinish)
}

func TestNode_Execute_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	n := New("flaky", func(_ context.Context, rc *RunContext) (map[string]any, error) {
		calls++
		if calls < 3 {
			return nil, werrors.NetworkFailure("connection refused", nil)
		}
		return map[string]any{"ok": true}, nil
	})
	n.MaxRetries = 5
	n.RetryDelaySeconds = 0

	err := n.Execute(context.Background(), NewRunContext("wf", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, n.Attempt())

	executions := n.Executions()
	assert.Equal(t, status.NetworkFailure, executions[0].Status)
	assert.Equal(t, status.NetworkFailure, executions[1].Status)
	assert.Equal(t, status.Completed, executions[2].Status)
}

func TestNode_Execute_RetriesExhausted(t *testing.T) {
	n := New("broken", func(_ context.Context, rc *RunContext) (map[string]any, error) {
		return nil, werrors.Data("bad payload", errors.New("missing field"))
	})
	n.MaxRetries = 2
	n.RetryDelaySeconds = 0

	err := n.Execute(context.Background(), NewRunContext("wf", nil))
	require.Error(t, err)
	assert.Equal(t, 3, n.Attempt())

	last, _ := n.LastExecution()
	assert.Equal(t, status.DataError, last.Status)
	require.NotNil(t, last.Error)
	assert.Contains(t, last.Error.Message, "missing field")
	assert.Equal(t, "DataException", last.Error.ClassName)
}

func TestNode_Execute_TimeoutAbandonsLogic(t *testing.T) {
	n := New("slow", func(ctx context.Context, rc *RunContext) (map[string]any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return map[string]any{"done": true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	n.TimeoutSeconds = 0.02

	err := n.Execute(context.Background(), NewRunContext("wf", nil))
	require.Error(t, err)
	var se werrors.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, status.TimedOut, se.Status())
	assert.Equal(t, "TimeoutException", se.Class())

	last, _ := n.LastExecution()
	require.NotNil(t, last.Error)
	assert.Equal(t, "TimeoutException", last.Error.ClassName)
}

func TestNode_ResetExecutions(t *testing.T) {
	n := New("noop", func(_ context.Context, rc *RunContext) (map[string]any, error) {
		return nil, nil
	})
	require.NoError(t, n.Execute(context.Background(), NewRunContext("wf", nil)))
	assert.Equal(t, 1, n.Attempt())

	n.ResetExecutions()
	assert.Equal(t, 0, n.Attempt())
	_, ok := n.LastExecution()
	assert.False(t, ok)
}

func TestRunContext_GetSet(t *testing.T) {
	rc := NewRunContext("wf", map[string]any{"city": "Tel Aviv"})
	v, ok := rc.Get("city")
	require.True(t, ok)
	assert.Equal(t, "Tel Aviv", v)

	rc.Set("temperature", 30.0)
	snap := rc.Snapshot()
	assert.Equal(t, 30.0, snap["temperature"])
	assert.Equal(t, "Tel Aviv", snap["city"])
}
