package cli

import (
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/board"
	"github.com/stopmidnight/taskboard/internal/config"
	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/notify"
	"github.com/stopmidnight/taskboard/internal/regen"
	"github.com/stopmidnight/taskboard/internal/store"
	"github.com/stopmidnight/taskboard/internal/undo"
)

const (
	tasksDirName    = "tasks"
	activityLogName = "activity.log"
)

// app is the board and its collaborators for one doc root.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	fs        tbfs.FS
	store     *store.Store
	hub       *notify.Hub
	activity  *activity.Log
	generator *regen.Generator
	scheduler *regen.Scheduler
	board     *board.Board
}

// newApp wires the board around hub. extra receives change events as well;
// it may be nil.
func newApp(cfg *config.Config, logger *logrus.Logger, hub *notify.Hub, extra notify.Publisher) *app {
	fsys := tbfs.NewReal()
	now := time.Now

	st := store.New(fsys, filepath.Join(cfg.RootAbs, tasksDirName))
	act := activity.New(fsys, filepath.Join(cfg.RootAbs, activityLogName), now)
	gen := regen.NewGenerator(fsys, cfg.RootAbs, st, now)
	sched := regen.NewScheduler(gen.Run, cfg.RegenDebounce.Std(), logger.WithField("component", "regen"))

	b := board.New(board.Deps{
		Store:         st,
		Ledger:        undo.New(cfg.UndoWindow.Std(), now),
		Publisher:     notify.Fanout(hub, extra),
		Regen:         sched,
		Activity:      act,
		Now:           now,
		Logger:        logger.WithField("component", "board"),
		DefaultAuthor: cfg.DefaultAuthor,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		fs:        fsys,
		store:     st,
		hub:       hub,
		activity:  act,
		generator: gen,
		scheduler: sched,
		board:     b,
	}
}

// Close runs any pending regeneration, then stops the scheduler.
func (a *app) Close() {
	a.scheduler.Flush()
	a.scheduler.Close()
}
