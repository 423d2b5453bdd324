package database

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/kitchen/internal/config"
)

func TestSlowQueryHook(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hook := &slowQueryHook{threshold: 100 * time.Millisecond, logger: zap.New(core)}

	hook.AfterQuery(t.Context(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Zero(t, logs.Len())

	hook.AfterQuery(t.Context(), &bun.QueryEvent{Query: "SELECT pg_sleep(1)", StartTime: time.Now().Add(-time.Second)})
	hook.AfterQuery(t.Context(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows})
	hook.AfterQuery(t.Context(), &bun.QueryEvent{Query: "INSERT", StartTime: time.Now(), Err: errors.New("duplicate key")})

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "slow query", entries[0].Message)
		assert.Equal(t, "query failed", entries[1].Message)
	}
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	_, err := open(config.Database{Driver: "oracle"}, "dsn", nil)
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = open(config.Database{Driver: "pgx"}, "", nil)
	assert.Error(t, err)
}

func TestOpenIsLazy(t *testing.T) {
	db, err := open(config.Database{Driver: "pgx", MaxOpenConns: 3}, "postgres://nobody@127.0.0.1:1/none", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, 3, db.Stats().MaxOpenConnections)
		assert.True(t, (&Connections{Writer: db, Reader: db}).SupportsRowLocks())
		assert.NoError(t, db.Close())
	}
}
