package regen

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stopmidnight/taskboard/internal/task"
)

const viewsDir = ".views"

// ViewDir returns the directory name of a status view, e.g. "3_REVIEW".
func ViewDir(status string) string {
	for i, s := range task.Statuses {
		if s == status {
			return fmt.Sprintf("%d_%s", i+1, strings.ToUpper(s))
		}
	}

	return ""
}

// writeViews recreates .views from scratch with one relative symlink per
// task file.
func (g *Generator) writeViews(names []string) error {
	root := filepath.Join(g.root, viewsDir)

	if err := g.fs.RemoveAll(root); err != nil {
		return err
	}

	var errs []error

	for _, status := range task.Statuses {
		dir := filepath.Join(root, ViewDir(status))

		if err := g.fs.MkdirAll(dir, dirPerms); err != nil {
			return err
		}

		for _, name := range withStatus(names, status) {
			if !indexable(name) {
				continue
			}

			target := filepath.Join("..", "..", "tasks", name)
			if err := g.fs.Symlink(target, filepath.Join(dir, name)); err != nil {
				errs = append(errs, fmt.Errorf("link %s: %w", name, err))
			}
		}
	}

	return errors.Join(errs...)
}
