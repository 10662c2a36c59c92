package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"github.com/usufslc/aggie-auth/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	DefaultConnectAttempts = 10
	DefaultConnectInterval = time.Second
)

// DatabaseConfig satisfies the go-persistence-bun configuration contract.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	Debug           bool
	PingTimeout     time.Duration
	ConnectAttempts uint64
	ConnectInterval time.Duration
	OtelIdentifier  string
}

func (c DatabaseConfig) GetDebug() bool {
	return c.Debug
}

func (c DatabaseConfig) GetDriver() string {
	return c.Driver
}

func (c DatabaseConfig) GetServer() string {
	return c.DSN
}

func (c DatabaseConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return time.Second
	}
	return c.PingTimeout
}

func (c DatabaseConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "aggie-auth"
	}
	return c.OtelIdentifier
}

// PostgresDSN builds a lib/pq connection string from discrete settings.
func PostgresDSN(host string, port int, user string, password string, database string, sslMode string) string {
	if strings.TrimSpace(sslMode) == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslMode,
	)
}

// Open connects to the configured database, retrying the initial ping with a
// constant backoff while the server comes up.
func Open(ctx context.Context, cfg DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	interval := cfg.ConnectInterval
	if interval <= 0 {
		interval = DefaultConnectInterval
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts),
		ctx,
	)
	err = backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.GetPingTimeout())
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	}, policy)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: connect %s: %w", driver, err)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

// Migrate registers the embedded migrations for the client's dialect and
// applies them.
func Migrate(ctx context.Context, client *persistence.Client, driver string) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	fsys, err := migrations.ForDialect(migrations.DialectForDriver(driver))
	if err != nil {
		return fmt.Errorf("sqlstore: resolve migrations: %w", err)
	}
	client.RegisterSQLMigrations(fsys)
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", driver)
	}
}
