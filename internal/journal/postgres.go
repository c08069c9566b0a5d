// internal/journal/postgres.go
package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const eventsTable = "loopguard_events"

var eventColumns = []string{"run_id", "profile_id", "seq", "event_type", "payload", "observed_at"}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS loopguard_events (
    run_id      TEXT        NOT NULL,
    profile_id  TEXT        NOT NULL,
    seq         BIGINT      NOT NULL,
    event_type  TEXT        NOT NULL,
    payload     JSONB       NOT NULL,
    observed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, seq)
);`

// DBPool is the subset of pgxpool.Pool the sink needs. It allows mocking
// in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresSink bulk-loads records into the loopguard_events table.
type PostgresSink struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresSink verifies the connection and creates the table if needed.
func NewPostgresSink(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createEventsTable); err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", eventsTable, err)
	}
	return &PostgresSink{pool: pool, log: logger.Named("journal.postgres")}, nil
}

func (s *PostgresSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{rec.RunID, rec.ProfileID, int64(rec.Seq), rec.Type, string(rec.Event), rec.At.UTC()}
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{eventsTable}, eventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy events: %w", err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("mismatch in copied events count: expected %d, got %d", len(records), n)
	}
	s.log.Debug("Events persisted.", zap.Int64("count", n))
	return nil
}

// Close releases the pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
