package sql

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/adlschema/dialect"
)

// tablesQuery lists the base tables of the current schema per dialect.
var tablesQuery = map[string]string{
	dialect.Postgres: "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name",
	dialect.MySQL:    "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name",
	dialect.SQLite:   "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
}

// Tables returns the sorted names of the tables in the current schema. On
// Postgres the schema follows the search path of ctx (see WithSearchPath).
func Tables(ctx context.Context, drv dialect.Driver) (names []string, rerr error) {
	query, ok := tablesQuery[drv.Dialect()]
	if !ok {
		return nil, fmt.Errorf("dialect/sql: tables: unsupported dialect %q", drv.Dialect())
	}
	rows := &Rows{}
	if err := drv.Query(ctx, query, []any{}, rows); err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("dialect/sql: tables: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: tables: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// MissingTables returns the names in want that the database does not hold,
// in the order of want.
func MissingTables(ctx context.Context, drv dialect.Driver, want []string) ([]string, error) {
	have, err := Tables(ctx, drv)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range want {
		if _, found := slices.BinarySearch(have, name); !found {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
