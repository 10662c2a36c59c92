package gojob

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	pgqueue "github.com/goliatone/go-job/queue/adapters/postgres"
)

const (
	QueueTable       = "aggie_auth_jobs"
	QueueDLQTable    = "aggie_auth_jobs_dlq"
	QueueStatusTable = "aggie_auth_jobs_status"
)

// OpenSQLQueue returns a go-job queue stored in the broker's own database.
// The queue tables are created when missing. Drivers named sqlite or
// sqlite3 use the SQLite placeholder dialect; anything else is treated as
// postgres.
func OpenSQLQueue(ctx context.Context, db *sql.DB, driver string, opts ...pgqueue.Option) (*pgqueue.Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("gojob: sql db is required")
	}
	storageOpts := []pgqueue.Option{
		pgqueue.WithTableName(QueueTable),
		pgqueue.WithDLQTableName(QueueDLQTable),
		pgqueue.WithStatusTableName(QueueStatusTable),
		pgqueue.WithDialect(queueDialect(driver)),
	}
	storage := pgqueue.NewStorage(db, append(storageOpts, opts...)...)
	if err := storage.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("gojob: migrate queue tables: %w", err)
	}
	return pgqueue.NewAdapter(storage), nil
}

func queueDialect(driver string) pgqueue.Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return pgqueue.DialectSQLite
	default:
		return pgqueue.DialectPostgres
	}
}
