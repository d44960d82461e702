// Package audit implements a best-effort, swallow-failures audit log for
// completed workflow runs. It is not the run registry's source of truth
// — the registry itself stays in-memory and non-durable — it is a side
// observation channel a real deployment can point at Postgres.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShaharBand/fluxly/internal/status"
)

// Entry is one completed run's audit record.
type Entry struct {
	RunID        string
	WorkflowName string
	Status       status.Code
	CompletedAt  time.Time
	Error        string
}

// Sink records completed runs. Record must never block the caller on a
// slow or unavailable backend for long, and must never propagate an
// error the caller has to handle — failures are logged and dropped.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// NoopSink discards every entry. Used when no audit DSN is configured.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Entry) {}

// db is the subset of *pgxpool.Pool the sink needs, satisfied by
// pgxmock in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
}

// PostgresSink writes audit entries to a run_audit_log table. Construct
// via NewPostgresSink, which also runs the schema migration.
type PostgresSink struct {
	db db
}

// NewPostgresSink wires a PostgresSink to an existing pool and ensures
// the audit table exists.
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresSink, error) {
	sink := &PostgresSink{db: pool}
	if err := sink.migrate(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

// newPostgresSinkWithDB is the test seam: pgxmock satisfies db directly.
func newPostgresSinkWithDB(d db) *PostgresSink {
	return &PostgresSink{db: d}
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_audit_log (
			run_id        TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			status        SMALLINT NOT NULL,
			completed_at  TIMESTAMPTZ NOT NULL,
			error         TEXT
		)
	`)
	return err
}

// Record inserts e, logging and discarding any failure rather than
// propagating it — a down audit database must never fail a run.
func (s *PostgresSink) Record(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO run_audit_log (run_id, workflow_name, status, completed_at, error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET status = $3, completed_at = $4, error = $5
	`, e.RunID, e.WorkflowName, int(e.Status), e.CompletedAt, e.Error)
	if err != nil {
		slog.Warn("audit: failed to record run (ignored)", "run_id", e.RunID, "error", err)
	}
}
