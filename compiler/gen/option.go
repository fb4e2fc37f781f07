package gen

import (
	"errors"
	"log/slog"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Option configures a pipeline run.
type Option func(*Config) error

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithHeader sets the file header comment.
// The header is added at the top of each generated Go file.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithModules adds the modules whose declarations seed the graph.
func WithModules(modules ...string) Option {
	return func(c *Config) error {
		for _, m := range modules {
			if m == "" {
				return NewConfigError("Modules", nil, "module name cannot be empty")
			}
		}
		c.Modules = append(c.Modules, modules...)
		return nil
	}
}

// WithFocus adds focus modules.
// Declarations outside them are reached only through reference wrappers
// and are marked external.
func WithFocus(modules ...string) Option {
	return func(c *Config) error {
		for _, m := range modules {
			if m == "" {
				return NewConfigError("Focus", nil, "module name cannot be empty")
			}
		}
		c.Focus = append(c.Focus, modules...)
		return nil
	}
}

// WithFilter sets a predicate on root declarations.
func WithFilter(filter func(adlast.ScopedDecl) bool) Option {
	return func(c *Config) error {
		c.Filter = filter
		return nil
	}
}

// WithWrappers replaces the wrapper configuration.
func WithWrappers(w resolve.Wrappers) Option {
	return func(c *Config) error {
		if len(w.References) == 0 {
			return NewConfigError("Wrappers", nil, "at least one reference wrapper is required")
		}
		c.Wrappers = w
		return nil
	}
}

// WithReferenceWrappers replaces the reference wrappers only.
// Names are qualified, e.g. "common.db.DbKey".
func WithReferenceWrappers(names ...string) Option {
	return func(c *Config) error {
		if len(names) == 0 {
			return NewConfigError("ReferenceWrappers", nil, "at least one reference wrapper is required")
		}
		refs := make([]adlast.ScopedName, 0, len(names))
		for _, n := range names {
			sn := adlast.ParseScopedName(n)
			if sn.ModuleName == "" {
				return NewConfigError("ReferenceWrappers", n, "name must be qualified with its module")
			}
			refs = append(refs, sn)
		}
		c.Wrappers.References = refs
		return nil
	}
}

// WithTableKeys replaces the annotations that turn alias and newtype
// declarations into roots.
func WithTableKeys(keys ...adlast.ScopedName) Option {
	return func(c *Config) error {
		c.TableKeys = append([]adlast.ScopedName(nil), keys...)
		return nil
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithVerbose logs every file written.
func WithVerbose(v bool) Option {
	return func(c *Config) error {
		c.Verbose = v
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with defaults and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
