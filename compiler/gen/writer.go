package gen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileWriter writes generated files below a directory in parallel.
type FileWriter struct {
	outDir  string
	workers int
	logger  *slog.Logger
	verbose bool

	mu      sync.Mutex
	metrics WriterMetrics
}

// WriterMetrics tracks write volume.
type WriterMetrics struct {
	FilesWritten int
	TotalBytes   int64
}

// NewFileWriter creates a writer rooted at outDir.
func NewFileWriter(outDir string) *FileWriter {
	return &FileWriter{
		outDir:  outDir,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
}

// WithWorkers sets the number of parallel workers.
func (w *FileWriter) WithWorkers(n int) *FileWriter {
	if n > 0 {
		w.workers = n
	}
	return w
}

// WithLogger sets the logger.
func (w *FileWriter) WithLogger(l *slog.Logger) *FileWriter {
	if l != nil {
		w.logger = l
	}
	return w
}

// WithVerbose logs every written file.
func (w *FileWriter) WithVerbose(v bool) *FileWriter {
	w.verbose = v
	return w
}

// Metrics returns a snapshot of the write metrics.
func (w *FileWriter) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Write writes files, creating directories as needed.
func (w *FileWriter) Write(ctx context.Context, files []*File) error {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, f := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(f)
			}
		})
	}
	return eg.Wait()
}

func (w *FileWriter) writeFile(f *File) error {
	if f.Path == "" || filepath.IsAbs(f.Path) || !filepath.IsLocal(f.Path) {
		return NewGenerationError("write", f.Path, "path must be relative to the output directory", nil)
	}
	fullPath := filepath.Join(w.outDir, f.Path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Path, err)
	}
	if w.verbose {
		w.logger.Info("writing file", slog.String("path", fullPath))
	}
	if err := os.WriteFile(fullPath, f.Content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(f.Content))
	w.mu.Unlock()
	return nil
}
