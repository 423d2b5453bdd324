// Package database opens the writer and reader bun pools.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections holds the primary pool and the pool reads are routed to. Reader is Writer when no
// replica is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the connections with Fx.
var Module = fx.Provide(New)

// New opens both pools. They are verified on start and closed on stop.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dbCfg := cfg.Database
	hook := &slowQueryHook{threshold: dbCfg.SlowQuery, logger: logger.Named("sql")}

	writer, err := open(dbCfg, dbCfg.WriterDSN, hook)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := &Connections{Writer: writer, Reader: writer}
	if dbCfg.ReaderDSN != dbCfg.WriterDSN {
		if conns.Reader, err = open(dbCfg, dbCfg.ReaderDSN, hook); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ready(ctx); err != nil {
				return err
			}
			logger.Info("database ready",
				zap.String("driver", dbCfg.Driver),
				zap.Bool("replica", conns.hasReplica()),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})
	return conns, nil
}

// Ready pings every pool; used by health probes.
func (c *Connections) Ready(ctx context.Context) error {
	if err := ping(ctx, c.Writer); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if c.hasReplica() {
		if err := ping(ctx, c.Reader); err != nil {
			return fmt.Errorf("reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	err := c.Writer.Close()
	if c.hasReplica() {
		err = errors.Join(err, c.Reader.Close())
	}
	return err
}

// SupportsRowLocks reports whether the writer's dialect understands SELECT ... FOR UPDATE.
func (c *Connections) SupportsRowLocks() bool {
	return c.Writer.Dialect().Name() != dialect.SQLite
}

func (c *Connections) hasReplica() bool {
	return c.Reader != c.Writer
}

func ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
