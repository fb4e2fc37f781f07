package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/sql"
	"github.com/syssam/adlschema/dialect"
	dsql "github.com/syssam/adlschema/dialect/sql"
	"github.com/syssam/adlschema/internal/config"
)

type applyCommand struct {
	Common
	Dialect string        `short:"d" long:"dialect" description:"database dialect" choice:"postgres" choice:"mysql" choice:"sqlite"`
	DSN     string        `long:"dsn" env:"ADLSCHEMA_DSN" description:"data source name"`
	Schema  string        `long:"schema" description:"postgres schema the statements run in"`
	NoTx    bool          `long:"no-tx" description:"run statements outside a transaction"`
	Slow    time.Duration `long:"slow" description:"log statements slower than this" default:"1s"`
	Args    struct {
		Script string `positional-arg-name:"script" description:"SQL script, the planned migration by default"`
	} `positional-args:"yes"`
}

func (c *applyCommand) Execute([]string) error {
	f, err := c.project()
	if err != nil {
		return err
	}
	ac := f.Apply
	if ac == nil {
		ac = &config.Apply{}
	}
	var planned string
	if f.Plan != nil {
		planned = f.Plan.Dialect
	}
	name := firstOf(c.Dialect, ac.Dialect, planned)
	if name == "" {
		if name, err = dialect.ForProfile(profileOf(f)); err != nil {
			return gen.NewConfigError("Dialect", profileOf(f), err.Error())
		}
	}
	dsn := firstOf(c.DSN, ac.DSN)
	if dsn == "" {
		return gen.NewConfigError("DSN", nil, "missing data source name, use --dsn or apply.dsn")
	}
	planFile, snapshotFile := sql.DefaultPlanFile, sql.DefaultSnapshotFile
	if f.Plan != nil {
		planFile = firstOf(f.Plan.File, planFile)
		snapshotFile = firstOf(f.Plan.Snapshot, snapshotFile)
	}
	script, fromPlan := c.Args.Script, c.Args.Script == ""
	if fromPlan {
		script = filepath.Join(c.target(f), planFile)
	}
	data, err := os.ReadFile(script)
	if err != nil {
		return err
	}

	logger := c.logger().With(slog.String("script", script))
	drv, err := dsql.Open(name, dsn)
	if err != nil {
		return err
	}
	defer drv.Close()
	sd := dsql.NewStatsDriver(drv, dsql.WithSlowThreshold(c.Slow), dsql.WithSlowQueryLog(logger))
	var exec dialect.Driver = sd
	if c.Verbose {
		exec = dsql.NewDebugDriver(sd, logger)
	}
	ctx := c.app.ctx
	opts := []dsql.ApplyOption{dsql.WithLogger(logger)}
	if s := firstOf(c.Schema, ac.Schema); s != "" {
		opts = append(opts, dsql.WithSchema(s))
		if name == dialect.Postgres {
			ctx = dsql.WithSearchPath(ctx, s)
		}
	}
	if c.NoTx {
		opts = append(opts, dsql.WithoutTx())
	}
	n, err := dsql.Apply(ctx, exec, string(data), opts...)
	if err != nil {
		return err
	}
	attrs := []any{slog.Int("statements", n)}
	if fromPlan {
		checked, err := verify(ctx, exec, script, filepath.Join(c.target(f), snapshotFile))
		if err != nil {
			return err
		}
		attrs = append(attrs, slog.Int("tables", checked))
	}
	attrs = append(attrs, slog.String("stats", sd.QueryStats().Stats().String()))
	logger.Info("migration applied", attrs...)
	return nil
}

// verify checks that the database holds every table of the snapshot the
// migration was planned towards. It returns the number of tables checked.
func verify(ctx context.Context, drv dialect.Driver, script, snapshot string) (int, error) {
	snap, err := sql.ReadSnapshot(snapshot)
	if err != nil {
		return 0, err
	}
	want := make([]string, len(snap.Tables))
	for i, t := range snap.Tables {
		want[i] = t.Name
	}
	if len(want) == 0 {
		return 0, nil
	}
	missing, err := dsql.MissingTables(ctx, drv, want)
	if err != nil {
		return 0, err
	}
	if len(missing) > 0 {
		return 0, gen.NewGenerationError("apply", script,
			"tables of "+filepath.Base(snapshot)+" missing after migration: "+strings.Join(missing, ", "), nil)
	}
	return len(want), nil
}

// profileOf returns the column type profile the script was generated with.
func profileOf(f *config.File) string {
	if f.Plan != nil && f.Plan.Profile != "" {
		return f.Plan.Profile
	}
	if f.SQL != nil {
		return f.SQL.Profile
	}
	return ""
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
