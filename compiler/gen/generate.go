package gen

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// File is a generated output file. Path is relative to the target directory.
type File struct {
	Path    string
	Content []byte
}

// Target renders a resolved graph into files.
type Target interface {
	// Name identifies the target in errors and logs, e.g. "sql".
	Name() string
	// Generate renders g. It must not modify g.
	Generate(ctx context.Context, g *Graph) ([]*File, error)
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc struct {
	ID string
	Fn func(context.Context, *Graph) ([]*File, error)
}

// Name implements Target.
func (t TargetFunc) Name() string { return t.ID }

// Generate implements Target.
func (t TargetFunc) Generate(ctx context.Context, g *Graph) ([]*File, error) {
	return t.Fn(ctx, g)
}

// Generate runs targets in parallel over g and returns their files in
// target order. Two targets producing the same path is an error.
func Generate(ctx context.Context, g *Graph, targets ...Target) ([]*File, error) {
	if len(targets) == 0 {
		return nil, NewConfigError("Targets", nil, "no target selected")
	}
	results := make([][]*File, len(targets))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers())
	for i, t := range targets {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			files, err := t.Generate(ctx, g)
			if err != nil {
				return NewGenerationError(t.Name(), "", "", err)
			}
			g.log.Debug("target generated", slog.String("target", t.Name()), slog.Int("files", len(files)))
			results[i] = files
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var (
		out  []*File
		seen = make(map[string]string)
	)
	for i, files := range results {
		for _, f := range files {
			if prev, ok := seen[f.Path]; ok {
				return nil, NewGenerationError(targets[i].Name(), f.Path, "file already generated by "+prev, nil)
			}
			seen[f.Path] = targets[i].Name()
			out = append(out, f)
		}
	}
	return out, nil
}

// Run generates targets over g and writes the files under g.Target.
func Run(ctx context.Context, g *Graph, targets ...Target) error {
	if g.Target == "" {
		return NewConfigError("Target", nil, "missing target directory in config")
	}
	files, err := Generate(ctx, g, targets...)
	if err != nil {
		return err
	}
	w := NewFileWriter(g.Target).
		WithWorkers(g.workers()).
		WithLogger(g.log).
		WithVerbose(g.Verbose)
	return w.Write(ctx, files)
}

// Paths returns the sorted paths of files.
func Paths(files []*File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	slices.SortFunc(out, strings.Compare)
	return out
}
