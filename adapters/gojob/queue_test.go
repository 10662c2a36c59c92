package gojob

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	pgqueue "github.com/goliatone/go-job/queue/adapters/postgres"
	_ "github.com/mattn/go-sqlite3"
)

func newQueueDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenSQLQueueRoundTripsPurgeJobs(t *testing.T) {
	ctx := context.Background()
	queue, err := OpenSQLQueue(ctx, newQueueDB(t, "gojob_round_trip"), "sqlite3")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}

	receipt, err := EnqueuePurge(ctx, queue, 2*time.Hour, "nightly")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if receipt.DispatchID == "" {
		t.Fatalf("expected dispatch id")
	}

	executor := &stubPurgeExecutor{purged: 5}
	runner := NewPurgeRunner(queue, executor, RetryPolicy{MaxAttempts: 3})
	purged, err := runner.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if purged != 5 || executor.calls != 1 {
		t.Fatalf("expected one purge of 5, got purged=%d calls=%d", purged, executor.calls)
	}
	if executor.last.GraceSeconds != 7200 {
		t.Fatalf("expected grace seconds to survive the queue, got %d", executor.last.GraceSeconds)
	}

	if _, err := runner.RunOnce(ctx); !errors.Is(err, ErrNoDelivery) {
		t.Fatalf("expected acked job to be gone, got %v", err)
	}
}

func TestOpenSQLQueueDeadLettersUnsupportedJobs(t *testing.T) {
	ctx := context.Background()
	queue, err := OpenSQLQueue(ctx, newQueueDB(t, "gojob_dead_letter"), "sqlite")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	if _, err := queue.Enqueue(ctx, &job.ExecutionMessage{JobID: "aggie_auth.other", ScriptPath: "aggie_auth.other"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	executor := &stubPurgeExecutor{}
	runner := NewPurgeRunner(queue, executor, RetryPolicy{MaxAttempts: 3})
	if _, err := runner.Drain(ctx); err == nil {
		t.Fatalf("expected unsupported job error")
	}
	if executor.calls != 0 {
		t.Fatalf("expected executor to be skipped")
	}
	if _, err := runner.RunOnce(ctx); !errors.Is(err, ErrNoDelivery) {
		t.Fatalf("expected dead lettered job to leave the queue, got %v", err)
	}
}

func TestOpenSQLQueueRequiresDB(t *testing.T) {
	if _, err := OpenSQLQueue(context.Background(), nil, "postgres"); err == nil {
		t.Fatalf("expected missing db error")
	}
	if queueDialect("SQLite3") != pgqueue.DialectSQLite || queueDialect("postgres") != pgqueue.DialectPostgres {
		t.Fatalf("unexpected dialect mapping")
	}
}
