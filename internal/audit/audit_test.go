package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ShaharBand/fluxly/internal/status"
)

func TestPostgresSink_Record_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO run_audit_log").
		WithArgs("run-1", "alert", int(status.Completed), pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sink := newPostgresSinkWithDB(mock)
	sink.Record(context.Background(), Entry{
		RunID:        "run-1",
		WorkflowName: "alert",
		Status:       status.Completed,
		CompletedAt:  time.Now(),
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Record_SwallowsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO run_audit_log").
		WillReturnError(errors.New("connection reset"))

	sink := newPostgresSinkWithDB(mock)
	// Record must not panic or otherwise surface the error to the caller.
	sink.Record(context.Background(), Entry{RunID: "run-2", WorkflowName: "alert", Status: status.Failed, CompletedAt: time.Now()})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopSink_Record(t *testing.T) {
	var s Sink = NoopSink{}
	s.Record(context.Background(), Entry{RunID: "ignored"})
}
