// Package migrations exposes the embedded aggie-auth schema per SQL dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	aggieauth "github.com/usufslc/aggie-auth"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel = "aggie-auth"

	rootPath   = "data/sql/migrations"
	sqlitePath = "sqlite"
)

// Source is the migration tree of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*registration)

type registration struct {
	label    string
	dialects []string
}

func WithSourceLabel(label string) Option {
	return func(r *registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.label = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *registration) {
		var selected []string
		for _, dialect := range dialects {
			normalized := normalizeDialect(dialect)
			if normalized != "" && !slices.Contains(selected, normalized) {
				selected = append(selected, normalized)
			}
		}
		if len(selected) > 0 {
			r.dialects = selected
		}
	}
}

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}

// Sources returns the postgres tree at data/sql/migrations and the sqlite
// tree under its sqlite directory. A nil root uses the embedded schema.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = aggieauth.GetMigrationsFS()
	}
	postgres, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqlite, err := fs.Sub(postgres, sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: postgres},
		{Dialect: DialectSQLite, Path: rootPath + "/" + sqlitePath, FS: sqlite},
	}
	for _, source := range sources {
		ups, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// ForDialect returns the embedded migration tree of one dialect.
func ForDialect(dialect string) (fs.FS, error) {
	sources, err := Sources(nil)
	if err != nil {
		return nil, err
	}
	target := normalizeDialect(dialect)
	for _, source := range sources {
		if source.Dialect == target {
			return source.FS, nil
		}
	}
	return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register hands each selected dialect tree to registerFn. All dialects are
// selected unless WithDialects narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	reg := registration{
		label:    SourceLabel,
		dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	sources, err := Sources(nil)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(reg.dialects))
	for _, source := range sources {
		if !slices.Contains(reg.dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.label, source.FS); err != nil {
			return nil, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

func normalizeDialect(dialect string) string {
	return strings.ToLower(strings.TrimSpace(dialect))
}
