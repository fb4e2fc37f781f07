package gen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func static(name string, paths ...string) Target {
	return TargetFunc{ID: name, Fn: func(context.Context, *Graph) ([]*File, error) {
		files := make([]*File, len(paths))
		for i, p := range paths {
			files[i] = &File{Path: p, Content: []byte(name + ":" + p)}
		}
		return files, nil
	}}
}

func TestGenerate(t *testing.T) {
	g := testGraph(t)

	t.Run("target order", func(t *testing.T) {
		files, err := Generate(context.Background(), g,
			static("sql", "schema.sql"),
			static("mermaid", "diagram.mmd", "b/a.txt"),
		)
		require.NoError(t, err)
		require.Len(t, files, 3)
		assert.Equal(t, "schema.sql", files[0].Path)
		assert.Equal(t, "diagram.mmd", files[1].Path)
		assert.Equal(t, "b/a.txt", files[2].Path)
		assert.Equal(t, []string{"b/a.txt", "diagram.mmd", "schema.sql"}, Paths(files))
	})

	t.Run("no targets", func(t *testing.T) {
		_, err := Generate(context.Background(), g)
		assert.True(t, IsConfigError(err))
	})

	t.Run("duplicate path", func(t *testing.T) {
		_, err := Generate(context.Background(), g, static("a", "x.txt"), static("b", "x.txt"))
		require.Error(t, err)
		assert.True(t, IsGenerationError(err))
		assert.Contains(t, err.Error(), "file already generated by a")
	})

	t.Run("target failure", func(t *testing.T) {
		cause := errors.New("boom")
		failing := TargetFunc{ID: "bad", Fn: func(context.Context, *Graph) ([]*File, error) { return nil, cause }}
		_, err := Generate(context.Background(), g, static("ok", "ok.txt"), failing)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		var gerr *GenerationError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "bad", gerr.Phase)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var calls atomic.Int32
		counting := TargetFunc{ID: "count", Fn: func(context.Context, *Graph) ([]*File, error) {
			calls.Add(1)
			return nil, nil
		}}
		_, err := Generate(ctx, g, counting)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls.Load())
	})
}

func TestRun(t *testing.T) {
	g := testGraph(t)

	t.Run("missing target directory", func(t *testing.T) {
		err := Run(context.Background(), g, static("sql", "schema.sql"))
		assert.True(t, IsConfigError(err))
	})

	t.Run("writes files", func(t *testing.T) {
		dir := t.TempDir()
		g := testGraph(t, WithTarget(dir), WithVerbose(true))
		require.NoError(t, Run(context.Background(), g, static("sql", "schema.sql", "nested/dir/model.go")))
		data, err := os.ReadFile(filepath.Join(dir, "nested", "dir", "model.go"))
		require.NoError(t, err)
		assert.Equal(t, "sql:nested/dir/model.go", string(data))
		assert.FileExists(t, filepath.Join(dir, "schema.sql"))
	})
}

func TestFileWriter(t *testing.T) {
	t.Run("metrics", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		w := NewFileWriter(dir).WithWorkers(2).WithLogger(nil).WithVerbose(false)
		err := w.Write(context.Background(), []*File{
			{Path: "a.sql", Content: []byte("abc")},
			{Path: "sub/b.sql", Content: []byte("de")},
		})
		require.NoError(t, err)
		m := w.Metrics()
		assert.Equal(t, 2, m.FilesWritten)
		assert.Equal(t, int64(5), m.TotalBytes)
	})

	t.Run("rejects escaping paths", func(t *testing.T) {
		for _, p := range []string{"", "../x.sql", "/tmp/x.sql"} {
			err := NewFileWriter(t.TempDir()).Write(context.Background(), []*File{{Path: p}})
			require.Error(t, err, p)
			assert.True(t, IsGenerationError(err), p)
		}
	})

	t.Run("overwrites", func(t *testing.T) {
		dir := t.TempDir()
		w := NewFileWriter(dir)
		require.NoError(t, w.Write(context.Background(), []*File{{Path: "a.txt", Content: []byte("old content")}}))
		require.NoError(t, w.Write(context.Background(), []*File{{Path: "a.txt", Content: []byte("new")}}))
		data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})
}
