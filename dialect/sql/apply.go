package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ariga.io/atlas/sql/migrate"

	"github.com/syssam/adlschema/dialect"
)

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	logger *slog.Logger
	schema string
	noTx   bool
}

// WithLogger sets the logger the applied script is reported to.
func WithLogger(logger *slog.Logger) ApplyOption {
	return func(c *applyConfig) {
		c.logger = logger
	}
}

// WithSchema runs the statements with the Postgres search_path set to
// schema. It is ignored by the other dialects.
func WithSchema(schema string) ApplyOption {
	return func(c *applyConfig) {
		c.schema = schema
	}
}

// WithoutTx runs the statements directly on the driver.
func WithoutTx() ApplyOption {
	return func(c *applyConfig) {
		c.noTx = true
	}
}

// StatementError reports the statement that failed.
type StatementError struct {
	// Index is the 1-based position of the statement in the script.
	Index int
	Stmt  string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("dialect/sql: statement %d (%s): %v", e.Index, firstLine(e.Stmt), e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// Statements splits a script into statements. Comments between statements
// are dropped; semicolons inside literals, comments and dollar-quoted bodies
// do not end a statement.
func Statements(script string) ([]string, error) {
	stmts, err := migrate.Stmts(script)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: split script: %w", err)
	}
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if text := strings.TrimSpace(s.Text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// Apply runs the statements of script and returns how many succeeded. By
// default they run in one transaction that is rolled back on the first
// failure, in which case the count is zero.
func Apply(ctx context.Context, drv dialect.Driver, script string, opts ...ApplyOption) (int, error) {
	cfg := &applyConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	stmts, err := Statements(script)
	if err != nil {
		return 0, err
	}
	if cfg.schema != "" && drv.Dialect() == dialect.Postgres {
		ctx = WithSearchPath(ctx, cfg.schema)
	}
	logger := cfg.logger.With(slog.String("dialect", drv.Dialect()))
	if cfg.noTx {
		n, err := run(ctx, drv, stmts)
		if err == nil {
			logger.InfoContext(ctx, "script applied", slog.Int("statements", n), slog.Bool("tx", false))
		}
		return n, err
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	n, err := run(ctx, tx, stmts)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("dialect/sql: rollback: %w", rerr))
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("dialect/sql: commit: %w", err)
	}
	logger.InfoContext(ctx, "script applied", slog.Int("statements", n))
	return n, nil
}

func run(ctx context.Context, ex dialect.ExecQuerier, stmts []string) (int, error) {
	for i, s := range stmts {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := ex.Exec(ctx, s, []any{}, nil); err != nil {
			return i, &StatementError{Index: i + 1, Stmt: s, Err: err}
		}
	}
	return len(stmts), nil
}
