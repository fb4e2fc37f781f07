package sql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/dialect"
)

func TestTables(t *testing.T) {
	ctx := context.Background()
	t.Run("SQLite", func(t *testing.T) {
		drv, err := Open(dialect.SQLite, "file:tables?mode=memory")
		require.NoError(t, err)
		defer drv.Close()
		drv.DB().SetMaxOpenConns(1)

		names, err := Tables(ctx, drv)
		require.NoError(t, err)
		assert.Empty(t, names)
		for _, stmt := range []string{
			"create table pet(id text primary key)",
			"create table person(id text primary key)",
			"create table account(id integer primary key autoincrement)",
		} {
			require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
		}
		names, err = Tables(ctx, drv)
		require.NoError(t, err)
		assert.Equal(t, []string{"account", "person", "pet"}, names, "internal sqlite_sequence is skipped")

		missing, err := MissingTables(ctx, drv, []string{"pet", "ghost", "person", "audit"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ghost", "audit"}, missing)
		missing, err = MissingTables(ctx, drv, []string{"person"})
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("Postgres", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery(regexp.QuoteMeta(tablesQuery[dialect.Postgres])).
			WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("pet").AddRow("person"))
		missing, err := MissingTables(ctx, OpenDB(dialect.Postgres, db), []string{"person", "pet", "ghost"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ghost"}, missing)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery("information_schema").WillReturnError(assert.AnError)
		_, err = Tables(ctx, OpenDB(dialect.MySQL, db))
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("UnsupportedDialect", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		_, err = Tables(ctx, OpenDB("oracle", db))
		require.ErrorContains(t, err, `unsupported dialect "oracle"`)
	})
}
