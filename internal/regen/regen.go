// Package regen rebuilds the read-only views derived from the task
// directory: tasks.json, INDEX.md and the per-status symlink folders.
package regen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/store"
)

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// Generator writes every derived artifact under a doc root.
type Generator struct {
	root  string
	fs    tbfs.FS
	store *store.Store
	now   func() time.Time
}

// NewGenerator returns a generator for the doc root whose tasks live in st.
func NewGenerator(fsys tbfs.FS, root string, st *store.Store, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}

	return &Generator{root: root, fs: fsys, store: st, now: now}
}

// Run regenerates all artifacts. Each artifact is attempted even when an
// earlier one fails; the failures are joined.
func (g *Generator) Run(ctx context.Context) error {
	names, err := g.store.List()
	if err != nil {
		return fmt.Errorf("regen: %w", err)
	}

	var errs []error

	steps := []struct {
		name string
		run  func([]string) error
	}{
		{"views", g.writeViews},
		{"tasks.json", g.writeTasksJSON},
		{"INDEX.md", g.writeIndex},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())

			break
		}

		if err := step.run(names); err != nil {
			errs = append(errs, fmt.Errorf("regen %s: %w", step.name, err))
		}
	}

	return errors.Join(errs...)
}

func (g *Generator) readTask(name string) (string, error) {
	data, _, err := g.store.Read(name)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (g *Generator) writeFile(rel string, data []byte) error {
	path := filepath.Join(g.root, rel)

	if err := g.fs.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return err
	}

	return g.fs.WriteFileAtomic(path, data, filePerms)
}

// indexable reports whether a task file shows up in INDEX.md and the views.
func indexable(name string) bool {
	return !strings.HasPrefix(name, "STATE") && !strings.HasPrefix(name, "INDEX")
}
