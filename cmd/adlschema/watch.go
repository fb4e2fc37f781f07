package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long watch waits for further events before regenerating.
const settle = 200 * time.Millisecond

// watch calls fn whenever a JSON file below paths changes, until ctx is
// done. Failures of fn are logged and do not stop the watch.
func watch(ctx context.Context, paths []string, logger *slog.Logger, fn func(context.Context) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	in := &watchSet{files: make(map[string]bool), dirs: make(map[string]bool)}
	for _, p := range paths {
		if err := in.add(w, p); err != nil {
			return err
		}
	}
	logger.Info("watching inputs", slog.Any("paths", paths))

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !in.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := in.add(w, ev.Name); err != nil {
					logger.Warn("watch directory", slog.String("path", ev.Name), slog.Any("error", err))
				}
			}
			logger.Debug("input changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.Any("error", err))
		case <-timer.C:
			if err := fn(ctx); err != nil {
				logger.Error("generation failed", slog.Any("error", err))
			}
		}
	}
}

// watchSet records what watch reacts to: single files, and every JSON file
// below watched directories.
type watchSet struct {
	files map[string]bool
	dirs  map[string]bool
}

// add watches path. A file is watched through its directory.
func (in *watchSet) add(w *fsnotify.Watcher, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		in.files[filepath.Clean(path)] = true
		return w.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		in.dirs[filepath.Clean(p)] = true
		return w.Add(p)
	})
}

// relevant reports whether ev concerns an input.
func (in *watchSet) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if in.files[name] {
		return true
	}
	if !in.dirs[filepath.Dir(name)] {
		return false
	}
	return strings.HasSuffix(name, ".json") || in.dirs[name] || isDir(name)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
