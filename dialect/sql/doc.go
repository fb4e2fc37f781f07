// Package sql runs generated DDL against a database.
//
// Driver wraps a database/sql handle of one of the supported dialects.
// The postgres (lib/pq), mysql (go-sql-driver/mysql) and sqlite
// (modernc.org/sqlite) database/sql drivers are registered by this package,
// so the dialect name doubles as the driver name:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://localhost/app?sslmode=disable")
//
// # Applying Scripts
//
// Apply splits a script into statements and runs them in one transaction,
// rolling back on the first failure:
//
//	n, err := sql.Apply(ctx, drv, script,
//	    sql.WithSchema("app"),
//	    sql.WithLogger(logger),
//	)
//
// # Session Variables
//
// WithVar attaches variables that are set on the connection before every
// statement and reset before the connection returns to the pool.
//
// # Statistics
//
// StatsDriver counts statements and reports slow ones. DebugDriver logs
// every statement at debug level and may wrap a StatsDriver.
//
// # Inspection
//
// Tables lists the tables of the current schema, and MissingTables reports
// which of an expected set are absent.
package sql
