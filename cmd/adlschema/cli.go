package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jessevdk/go-flags"

	"github.com/syssam/adlschema"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/internal/config"
)

// app is the state shared by the commands of one invocation.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	// cache keeps decoded modules between watch runs.
	cache *adlschema.MemoryCache
}

// Common are the flags every command accepts. Flags override the project
// file.
type Common struct {
	Config    string   `short:"c" long:"config" description:"project file" default:"adlschema.yaml"`
	Inputs    []string `short:"i" long:"input" description:"adlc AST file or directory"`
	Modules   []string `short:"m" long:"module" description:"module whose declarations are generated"`
	Focus     []string `short:"f" long:"focus" description:"focus module"`
	Output    string   `short:"o" long:"output" description:"output directory"`
	Verbose   bool     `short:"v" long:"verbose" description:"log debug messages and every written file"`
	Watch     bool     `short:"w" long:"watch" description:"regenerate when an input changes"`
	LogFormat string   `long:"log-format" description:"log format" choice:"auto" choice:"text" choice:"json" default:"auto"`

	app *app
}

// project loads the project file and applies the flag overrides.
func (c *Common) project() (*config.File, error) {
	f, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if len(c.Modules) > 0 {
		f.Modules = c.Modules
	}
	if len(c.Focus) > 0 {
		f.Focus = c.Focus
	}
	return f, nil
}

// inputs returns the resolved input paths. Flag inputs are relative to the
// working directory.
func (c *Common) inputs(f *config.File) []string {
	if len(c.Inputs) > 0 {
		return c.Inputs
	}
	return f.InputPaths()
}

// target returns the output directory.
func (c *Common) target(f *config.File) string {
	switch {
	case c.Output != "":
		return c.Output
	case f.Target != "":
		return f.Path(f.Target)
	default:
		return "."
	}
}

func (c *Common) logger() *slog.Logger {
	return newLogger(c.app.stderr, c.LogFormat, c.Verbose)
}

// generate runs targets once, or on every input change with --watch.
func (c *Common) generate(override func(*config.File), targets ...string) error {
	f, err := c.project()
	if err != nil {
		return err
	}
	if override != nil {
		override(f)
	}
	logger := c.logger()
	inputs := c.inputs(f)
	if len(inputs) == 0 {
		return gen.NewConfigError("Inputs", nil, "no input given, use --input or the inputs of "+c.Config)
	}
	dir := c.target(f)
	tgts, err := f.Targets(dir, targets...)
	if err != nil {
		return err
	}
	opts := append(f.Options(),
		gen.WithTarget(dir),
		gen.WithLogger(logger),
		gen.WithVerbose(c.Verbose),
	)
	cfg, err := gen.NewConfig(opts...)
	if err != nil {
		return err
	}
	loader := load.NewLoader(
		load.WithLogger(logger),
		load.WithCache(c.app.cache, 0),
	)
	once := func(ctx context.Context) error {
		store, err := loader.Load(ctx, inputs...)
		if err != nil {
			return err
		}
		g, err := gen.NewGraph(ctx, cfg, store)
		if err != nil {
			return err
		}
		if err := gen.Run(ctx, g, tgts...); err != nil {
			return err
		}
		logger.Info("generated", slog.String("run_id", g.RunID), slog.Any("targets", targets), slog.String("output", dir))
		return nil
	}
	if !c.Watch {
		return once(c.app.ctx)
	}
	if err := once(c.app.ctx); err != nil {
		logger.Error("generation failed", slog.Any("error", err))
	}
	return watch(c.app.ctx, inputs, logger, once)
}

// targetCommand generates a fixed set of targets.
type targetCommand struct {
	Common
	targets []string
}

func (c *targetCommand) Execute([]string) error {
	return c.generate(nil, c.targets...)
}

type sqlCommand struct {
	Common
	Profile    string   `short:"p" long:"profile" description:"column type profile"`
	Extensions []string `long:"extension" description:"database extension to create"`
}

func (c *sqlCommand) Execute([]string) error {
	return c.generate(func(f *config.File) {
		if f.SQL == nil {
			f.SQL = &config.SQL{}
		}
		if c.Profile != "" {
			f.SQL.Profile = c.Profile
		}
		f.SQL.Extensions = append(f.SQL.Extensions, c.Extensions...)
	}, config.TargetSQL)
}

type planCommand struct {
	Common
	Profile string   `short:"p" long:"profile" description:"column type profile"`
	Dialect string   `short:"d" long:"dialect" description:"dialect the migration is planned for" choice:"postgres" choice:"mysql" choice:"sqlite"`
	Allow   []string `long:"allow" description:"breaking change to allow" choice:"drop_table" choice:"drop_column" choice:"drop_index" choice:"null_to_not_null" choice:"all"`
}

func (c *planCommand) Execute([]string) error {
	return c.generate(func(f *config.File) {
		if f.Plan == nil {
			f.Plan = &config.Plan{}
		}
		if c.Profile != "" {
			f.Plan.Profile = c.Profile
		}
		if c.Dialect != "" {
			f.Plan.Dialect = c.Dialect
		}
		f.Plan.Allow = append(f.Plan.Allow, c.Allow...)
	}, config.TargetPlan)
}

type graphqlCommand struct {
	Common
	GQLGen string `long:"gqlgen" description:"Go package of the models bound in gqlgen.yml"`
}

func (c *graphqlCommand) Execute([]string) error {
	return c.generate(func(f *config.File) {
		if c.GQLGen == "" {
			return
		}
		if f.GraphQL == nil {
			f.GraphQL = &config.GraphQL{}
		}
		if f.GraphQL.GQLGen == nil {
			f.GraphQL.GQLGen = &config.GQLGen{}
		}
		f.GraphQL.GQLGen.Package = c.GQLGen
	}, config.TargetGraphQL)
}

type goCommand struct {
	Common
	Package string `long:"package" description:"package name of the generated file"`
}

func (c *goCommand) Execute([]string) error {
	return c.generate(func(f *config.File) {
		if c.Package == "" {
			return
		}
		if f.Go == nil {
			f.Go = &config.Go{}
		}
		f.Go.Package = c.Package
	}, config.TargetGo)
}

type allCommand struct {
	Common
}

// Execute runs the sql, graphql, mermaid and go targets, plus prisma, plan
// and ast when the project file configures them.
func (c *allCommand) Execute([]string) error {
	f, err := c.project()
	if err != nil {
		return err
	}
	return c.generate(nil, allTargets(f)...)
}

func allTargets(f *config.File) []string {
	targets := []string{config.TargetSQL, config.TargetGraphQL, config.TargetMermaid, config.TargetGo}
	if f.Prisma != nil {
		targets = append(targets, config.TargetPrisma)
	}
	if f.Plan != nil {
		targets = append(targets, config.TargetPlan)
	}
	if f.AST != nil {
		targets = append(targets, config.TargetAST)
	}
	return targets
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{ctx: ctx, stdout: stdout, stderr: stderr, cache: adlschema.NewMemoryCache()}
	parser := flags.NewNamedParser("adlschema", flags.HelpFlag|flags.PassDoubleDash)
	commands := []struct {
		name, short, long string
		data              any
	}{
		{"sql", "Generate SQL DDL", "Writes the create, views and metadata scripts and user templates.",
			&sqlCommand{Common: Common{app: a}}},
		{"plan", "Plan a migration", "Diffs the tables against the stored snapshot and writes the migration.",
			&planCommand{Common: Common{app: a}}},
		{"apply", "Apply a SQL script", "Runs a migration or create script against a database.",
			&applyCommand{Common: Common{app: a}}},
		{"prisma", "Generate a Prisma schema", "Writes schema.prisma from the tables and the PrismaBlocks module annotation.",
			&targetCommand{Common: Common{app: a}, targets: []string{config.TargetPrisma}}},
		{"graphql", "Generate a GraphQL schema", "Writes the SDL of the concrete declarations and, optionally, gqlgen.yml.",
			&graphqlCommand{Common: Common{app: a}}},
		{"mermaid", "Generate a class diagram", "Writes a Mermaid class diagram of the selected modules.",
			&targetCommand{Common: Common{app: a}, targets: []string{config.TargetMermaid}}},
		{"go", "Generate Go models", "Writes Go types whose JSON encoding follows the ADL serialization.",
			&goCommand{Common: Common{app: a}}},
		{"ast", "Write the augmented AST", "Writes the loaded modules with derived annotations and generic instances.",
			&targetCommand{Common: Common{app: a}, targets: []string{config.TargetAST}}},
		{"all", "Run every target", "Runs sql, graphql, mermaid and go, plus the targets the project file configures.",
			&allCommand{Common: Common{app: a}}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, cmd.long, cmd.data); err != nil {
			return err
		}
	}
	_, err := parser.ParseArgs(args)
	var ferr *flags.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ferr) && ferr.Type == flags.ErrHelp:
		fmt.Fprintln(stdout, ferr.Message)
	default:
		fmt.Fprintln(stderr, "adlschema:", err)
	}
	return err
}
