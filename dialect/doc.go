// Package dialect names the databases generated schemas can be planned for
// and applied to, and defines the driver interfaces the apply step runs on.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, used by the postgresql and postgresql2 profiles
//   - MySQL: MySQL and MariaDB, used by the mysql profile
//   - SQLite: SQLite, used by the sqlite profile
//
// The mssql2 and prisma profiles render DDL text only and have no dialect.
//
// # Driver Interface
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Usage
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//	n, err := sql.Apply(ctx, drv, script)
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement splitting and apply
package dialect
