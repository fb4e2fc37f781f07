package load

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/adlschema"
	"github.com/syssam/adlschema/adlast"
)

// Loader reads adlc AST documents from disk.
type Loader struct {
	cache   adlschema.Cache
	ttl     time.Duration
	logger  *slog.Logger
	workers int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache caches decoded modules per file content digest.
func WithCache(c adlschema.Cache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.ttl = ttl
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithWorkers bounds the number of files decoded concurrently.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every AST document under paths and returns the store.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Store, error) {
	modules, err := l.LoadModules(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return NewStore(modules...)
}

// LoadModules reads every AST document under paths. Directories are
// searched recursively for *.json files. A document is either one module
// or a map of module name to module, as written by adlc's combined output.
func (l *Loader) LoadModules(ctx context.Context, paths ...string) ([]adlast.Module, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}
	results := make([][]adlast.Module, len(files))
	errs := make([]error, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(l.workers)
	for i, file := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i], errs[i] = l.loadFile(ctx, file)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := adlschema.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	var modules []adlast.Module
	for _, r := range results {
		modules = append(modules, r...)
	}
	slices.SortFunc(modules, func(a, b adlast.Module) int { return strings.Compare(a.Name, b.Name) })
	return modules, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]adlast.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	key := adlschema.CacheKey{Source: path, Digest: hex.EncodeToString(sum[:])}

	if l.cache != nil {
		blob, err := l.cache.Get(ctx, key.String())
		if err != nil {
			l.logger.Warn("cache read failed", "source", path, "error", err)
		} else if blob != nil {
			modules, err := decodeCached(blob)
			if err == nil {
				l.logger.Debug("loaded from cache", "source", path, "modules", len(modules))
				return modules, nil
			}
			l.logger.Warn("discarding corrupt cache entry", "source", path, "error", err)
		}
	}

	modules, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("decoded ast", "source", path, "modules", len(modules))

	if l.cache != nil {
		blob, err := encodeCached(modules)
		if err == nil {
			if err = l.cache.DeletePrefix(ctx, key.Prefix()); err == nil {
				err = l.cache.Set(ctx, key.String(), blob, l.ttl)
			}
		}
		if err != nil {
			l.logger.Warn("cache write failed", "source", path, "error", err)
		}
	}
	return modules, nil
}

// Decode parses a single AST document. source is only used in errors.
func Decode(source string, data []byte) ([]adlast.Module, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, adlschema.NewDecodeError(source, err)
	}
	if _, ok := top["decls"]; ok {
		var m adlast.Module
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, adlschema.NewDecodeError(source, err)
		}
		return []adlast.Module{m}, nil
	}
	modules := make([]adlast.Module, 0, len(top))
	for _, name := range slices.Sorted(maps.Keys(top)) {
		var m adlast.Module
		if err := json.Unmarshal(top[name], &m); err != nil {
			return nil, adlschema.NewDecodeError(source, fmt.Errorf("module %s: %w", name, err))
		}
		if m.Name == "" {
			m.Name = name
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load: walk %s: %w", p, err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}
