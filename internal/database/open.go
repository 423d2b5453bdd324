package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"

	"github.com/Additional-Code/kitchen/internal/config"
)

// backend pairs a bun dialect with the way its *sql.DB is opened.
type backend struct {
	dialect func() schema.Dialect
	open    func(dsn string) (*sql.DB, error)
}

// "postgres" uses bun's own pgdriver; "pgx" goes through pgx's database/sql adapter. The sqlite
// driver is not linked in, so that entry needs a binary built with one registered as "sqlite3".
var backends = map[string]backend{
	"postgres": {
		dialect: func() schema.Dialect { return pgdialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
		},
	},
	"pgx": {
		dialect: func() schema.Dialect { return pgdialect.New() },
		open:    sqlOpener("pgx"),
	},
	"mysql": {
		dialect: func() schema.Dialect { return mysqldialect.New() },
		open:    sqlOpener("mysql"),
	},
	"sqlite": {
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		open:    sqlOpener("sqlite3"),
	},
}

func sqlOpener(name string) func(string) (*sql.DB, error) {
	return func(dsn string) (*sql.DB, error) { return sql.Open(name, dsn) }
}

func open(cfg config.Database, dsn string, hook bun.QueryHook) (*bun.DB, error) {
	be, ok := backends[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	sqlDB, err := be.open(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	db := bun.NewDB(sqlDB, be.dialect(), bun.WithDiscardUnknownColumns())
	if hook != nil {
		db.AddQueryHook(hook)
	}
	return db, nil
}
