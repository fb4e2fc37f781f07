package sql

import (
	"context"
	"log/slog"

	"github.com/syssam/adlschema/dialect"
)

// DebugDriver logs every statement at debug level before it runs. It
// decorates any dialect.Driver, including a StatsDriver.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with debug logging.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger.With(slog.String("dialect", drv.Dialect()))}
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.logger, "query", query, args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and runs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.logger, "exec", query, args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction whose statements and outcome are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.DebugContext(ctx, "transaction started")
	return &DebugTx{Tx: tx, logger: d.logger.With(slog.Bool("tx", true))}, nil
}

// DebugTx is a transaction started by a DebugDriver.
type DebugTx struct {
	dialect.Tx
	logger *slog.Logger
}

// Query logs and runs a query in the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.logger, "query", query, args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec logs and runs a statement in the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.logger, "exec", query, args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction and logs the outcome.
func (tx *DebugTx) Commit() error {
	err := tx.Tx.Commit()
	tx.logger.Debug("transaction committed", slog.Any("error", err))
	return err
}

// Rollback rolls the transaction back and logs the outcome.
func (tx *DebugTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.logger.Debug("transaction rolled back", slog.Any("error", err))
	return err
}

func logStatement(ctx context.Context, logger *slog.Logger, op, query string, args any) {
	attrs := []slog.Attr{slog.String("op", op), slog.String("stmt", firstLine(query))}
	if argv, ok := args.([]any); ok && len(argv) > 0 {
		attrs = append(attrs, slog.Int("args", len(argv)))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "statement", attrs...)
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
