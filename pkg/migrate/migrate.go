package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

// Embedded ships the SQL migrations inside every binary.
//
//go:embed migrations/*.sql
var Embedded embed.FS

// Result is one migration applied or rolled back.
type Result struct {
	Version   int64
	File      string
	Direction string
	Took      time.Duration
}

// Status is the state of one known migration.
type Status struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator runs goose migrations from the embedded set or a directory.
type Migrator struct {
	provider *goose.Provider
}

// New builds a postgres migrator; an empty dir selects the embedded set.
func New(db *sql.DB, dir string) (*Migrator, error) {
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	return newMigrator(goose.DialectPostgres, db, fsys)
}

func newMigrator(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func source(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(Embedded, embeddedDir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Up(ctx)
	return results(res), wrap("up", err)
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Down(ctx)
	if res == nil {
		return nil, wrap("down", err)
	}
	return results([]*goose.MigrationResult{res}), wrap("down", err)
}

// To moves the schema up or down to version. version is the
// YYYYMMDDHHMMSS prefix of a migration file.
func (m *Migrator) To(ctx context.Context, version string) ([]Result, error) {
	if version == "" {
		return nil, errors.New("target version is required")
	}
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil, nil
	case current < target:
		res, err := m.provider.UpTo(ctx, target)
		return results(res), wrap(fmt.Sprintf("up-to %d", target), err)
	default:
		res, err := m.provider.DownTo(ctx, target)
		return results(res), wrap(fmt.Sprintf("down-to %d", target), err)
	}
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	raw, err := m.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]Status, 0, len(raw))
	for _, s := range raw {
		out = append(out, Status{
			Version:   s.Source.Version,
			File:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func results(raw []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:   r.Source.Version,
			File:      r.Source.Path,
			Direction: r.Direction,
			Took:      r.Duration,
		})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
