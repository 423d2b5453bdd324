package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/db/migrations"
	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/database"
)

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the embedded SQL files for one dialect through a goose provider.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// Status is the applied state of one migration file.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// New builds a migrator over the writer connection.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	return NewForDB(cfg.Database.Driver, conns.Writer, logger)
}

// NewForDB builds a migrator for an already opened database.
func NewForDB(driver string, db *bun.DB, logger *zap.Logger) (*Migrator, error) {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	files, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db.DB, files)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), err
	}
	m.logResults("applied", results)
	return len(results), nil
}

// Down rolls back steps migrations (at least one), or every migration when all is set. Rolling back
// an empty schema is not an error.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) (int, error) {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil && !isNoMigrationErr(err) {
			return len(results), err
		}
		m.logResults("rolled back", results)
		return len(results), nil
	}

	var rolled []*goose.MigrationResult
	for range max(steps, 1) {
		res, err := m.provider.Down(ctx)
		if isNoMigrationErr(err) {
			break
		}
		if err != nil {
			return len(rolled), err
		}
		rolled = append(rolled, res)
	}
	m.logResults("rolled back", rolled)
	return len(rolled), nil
}

// Status lists every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	states, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(states))
	for _, st := range states {
		out = append(out, Status{
			Version:   st.Source.Version,
			Name:      path.Base(st.Source.Path),
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

func (m *Migrator) logResults(action string, results []*goose.MigrationResult) {
	if len(results) == 0 {
		m.logger.Info("no migrations " + action)
		return
	}
	for _, r := range results {
		m.logger.Info("migration "+action,
			zap.Int64("version", r.Source.Version),
			zap.String("file", path.Base(r.Source.Path)),
			zap.Duration("took", r.Duration),
		)
	}
}

// dialectFor maps a database driver name to the goose dialect and the directory holding its SQL.
func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "postgres", "pg", "pgx":
		return goose.DialectPostgres, "postgres", nil
	case "mysql":
		return goose.DialectMySQL, "mysql", nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, "sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for database driver %q", driver)
	}
}

func isNoMigrationErr(err error) bool {
	return errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrations)
}
