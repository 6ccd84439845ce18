// Package watch turns filesystem changes under the doc root into change
// events, and schedules regeneration when task files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/notify"
)

// Defaults for [Config].
const (
	DefaultThrottle = 500 * time.Millisecond
	DefaultDebounce = 500 * time.Millisecond
)

const tasksDir = "tasks"

// Regenerator is notified when task files change.
type Regenerator interface {
	Trigger(reason string)
}

// Config wires a Watcher. Root and Publisher are required.
type Config struct {
	Root      string
	Publisher notify.Publisher
	Regen     Regenerator
	Activity  *activity.Log
	Now       func() time.Time
	Logger    log.FieldLogger

	// Throttle drops repeated events for one path inside the same window.
	Throttle time.Duration
	// Debounce delays regeneration until task files stop changing.
	Debounce time.Duration
}

// Watcher publishes an fs-change event for every observed change.
type Watcher struct {
	cfg Config

	mu       sync.Mutex
	seen     map[string]int64
	timer    *time.Timer
	lastPath string
}

// New returns a Watcher; call Run to start it.
func New(cfg Config) *Watcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Watcher{cfg: cfg, seen: make(map[string]int64)}
}

// Run watches the doc root and its tasks directory until ctx is done.
// Directories that do not exist yet are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	defer w.stopTimer()

	watched := 0

	for _, dir := range []string{w.cfg.Root, filepath.Join(w.cfg.Root, tasksDir)} {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			w.cfg.Logger.WithField("path", dir).Warn("watch target missing")

			continue
		}

		if err := fw.Add(dir); err != nil {
			w.cfg.Logger.WithError(err).WithField("path", dir).Warn("watch failed")

			continue
		}

		watched++
	}

	w.cfg.Logger.WithField("dirs", watched).Debug("watching doc root")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}

			w.Handle(ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			w.cfg.Logger.WithError(err).Warn("watch error")
		}
	}
}

// Handle processes one changed path.
func (w *Watcher) Handle(path string) {
	now := w.cfg.Now()
	window := now.UnixMilli() / w.cfg.Throttle.Milliseconds()

	w.mu.Lock()
	if last, ok := w.seen[path]; ok && last == window {
		w.mu.Unlock()

		return
	}

	w.seen[path] = window
	w.mu.Unlock()

	w.cfg.Publisher.Publish(notify.NewEvent(notify.TypeFSChange, path, now))

	if w.isTaskFile(path) {
		w.scheduleRegen(path)
	}
}

func (w *Watcher) isTaskFile(path string) bool {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return false
	}

	return strings.HasPrefix(rel, tasksDir) && strings.EqualFold(filepath.Ext(rel), ".md")
}

func (w *Watcher) scheduleRegen(path string) {
	if w.cfg.Regen == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastPath = path

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.cfg.Debounce, w.regenerate)
}

func (w *Watcher) regenerate() {
	w.mu.Lock()
	path := w.lastPath
	w.timer = nil
	w.mu.Unlock()

	w.cfg.Regen.Trigger("fs-change")

	if w.cfg.Activity == nil {
		return
	}

	err := w.cfg.Activity.Append(activity.Entry{
		Type:   activity.TypeRegen,
		Reason: "fs-change",
		Path:   path,
	})
	if err != nil {
		w.cfg.Logger.WithError(err).Warn("append activity failed")
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
