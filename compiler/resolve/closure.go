package resolve

import (
	"context"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/adlschema/adlast"
)

// Collector projects a root set and the declarations reachable from it
// through reference wrappers that leave the focus set.
type Collector struct {
	projector *Projector
	resolver  Resolver
	workers   int
	logger    *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithWorkers bounds the number of declarations projected concurrently.
func WithWorkers(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger used for round diagnostics.
func WithLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector returns a Collector projecting with p.
func NewCollector(r Resolver, p *Projector, opts ...CollectorOption) *Collector {
	c := &Collector{
		projector: p,
		resolver:  r,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect projects roots and, round by round, every out-of-focus target of
// a reference wrapper found in the projected fields, until a round adds
// nothing new. Targets inside the focus set are not followed. The result is
// sorted by qualified name.
func (c *Collector) Collect(ctx context.Context, roots []adlast.ScopedDecl, inFocus func(adlast.ScopedName) bool) ([]*ProjectedDecl, error) {
	seen := make(map[adlast.ScopedName]bool, len(roots))
	var round []adlast.ScopedDecl
	for _, sd := range roots {
		if !seen[sd.Name()] {
			seen[sd.Name()] = true
			round = append(round, sd)
		}
	}
	var out []*ProjectedDecl
	for n := 0; len(round) > 0; n++ {
		projected, err := c.projectRound(ctx, round)
		if err != nil {
			return nil, err
		}
		var next []adlast.ScopedDecl
		for _, pd := range projected {
			pd.External = !inFocus(pd.Name)
			out = append(out, pd)
			for _, f := range pd.Fields {
				for _, target := range f.References {
					if seen[target] || inFocus(target) {
						continue
					}
					sd, err := c.resolver.Resolve(target)
					if err != nil {
						return nil, locate(err, pd.Name, f.Name, pd.Path)
					}
					seen[target] = true
					next = append(next, sd)
				}
			}
		}
		c.logger.Debug("closure round projected",
			slog.Int("round", n),
			slog.Int("decls", len(round)),
			slog.Int("discovered", len(next)),
		)
		round = next
	}
	slices.SortFunc(out, func(a, b *ProjectedDecl) int { return a.Name.Compare(b.Name) })
	return out, nil
}

func (c *Collector) projectRound(ctx context.Context, round []adlast.ScopedDecl) ([]*ProjectedDecl, error) {
	projected := make([]*ProjectedDecl, len(round))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, sd := range round {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			pd, err := c.projector.Project(sd, nil)
			if err != nil {
				return err
			}
			projected[i] = pd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projected, nil
}
