package dialect

import (
	"context"
	"fmt"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the database operations used by the apply step.
type ExecQuerier interface {
	// Exec executes a query that does not return records. v is nil or a
	// pointer to a sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for a
// database connection.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// profiles maps DB profile names to dialects.
var profiles = map[string]string{
	"postgresql":  Postgres,
	"postgresql2": Postgres,
	"mysql":       MySQL,
	"sqlite":      SQLite,
}

// ForProfile returns the dialect a DB profile generates column types for.
func ForProfile(profile string) (string, error) {
	if profile == "" {
		return Postgres, nil
	}
	d, ok := profiles[profile]
	if !ok {
		return "", fmt.Errorf("dialect: profile %q has no dialect", profile)
	}
	return d, nil
}

// Valid reports whether name is a supported dialect.
func Valid(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}
