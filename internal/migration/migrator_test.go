package migration

import (
	"fmt"
	"io/fs"
	"path"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/kitchen/db/migrations"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]struct {
		dialect goose.Dialect
		dir     string
	}{
		"postgres": {goose.DialectPostgres, "postgres"},
		"pg":       {goose.DialectPostgres, "postgres"},
		"pgx":      {goose.DialectPostgres, "postgres"},
		"mysql":    {goose.DialectMySQL, "mysql"},
		"sqlite":   {goose.DialectSQLite3, "sqlite"},
		"sqlite3":  {goose.DialectSQLite3, "sqlite"},
	}
	for driver, want := range cases {
		dialect, dir, err := dialectFor(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want.dialect, dialect, driver)
		assert.Equal(t, want.dir, dir, driver)
	}

	_, _, err := dialectFor("oracle")
	assert.Error(t, err)
}

func TestEveryDialectShipsTheSameMigrations(t *testing.T) {
	var reference []string
	for _, dir := range []string{"postgres", "mysql", "sqlite"} {
		files, err := fs.Glob(migrations.FS, path.Join(dir, "*.sql"))
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)

		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, path.Base(f))
		}
		if reference == nil {
			reference = names
			continue
		}
		assert.Equal(t, reference, names, dir)
	}
}

func TestIsNoMigrationErr(t *testing.T) {
	assert.False(t, isNoMigrationErr(nil))
	assert.True(t, isNoMigrationErr(goose.ErrNoNextVersion))
	assert.True(t, isNoMigrationErr(fmt.Errorf("down: %w", goose.ErrNoMigrations)))
	assert.False(t, isNoMigrationErr(fmt.Errorf("syntax error at or near")))
}
