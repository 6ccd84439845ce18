// Package board applies task mutations: status transitions, undo, creation
// and edits. Each mutation is followed by a regeneration request, a change
// notification and an activity log entry.
package board

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/notify"
	"github.com/stopmidnight/taskboard/internal/store"
	"github.com/stopmidnight/taskboard/internal/task"
	"github.com/stopmidnight/taskboard/internal/undo"
)

// Authors used when a request does not name one.
const (
	DefaultAuthor       = "kirara"
	DefaultStatusAuthor = "shirasu-viewer"
)

// Regenerator rebuilds derived artifacts. Trigger must not block.
type Regenerator interface {
	Trigger(reason string)
}

// Deps are the collaborators of a Board. Store and Ledger are required;
// the rest may be left nil.
type Deps struct {
	Store         *store.Store
	Ledger        *undo.Ledger
	Publisher     notify.Publisher
	Regen         Regenerator
	Activity      *activity.Log
	Now           func() time.Time
	Logger        log.FieldLogger
	DefaultAuthor string
}

// Board serializes all mutations behind one mutex.
type Board struct {
	mu sync.Mutex

	store    *store.Store
	ledger   *undo.Ledger
	pub      notify.Publisher
	regen    Regenerator
	activity *activity.Log
	now      func() time.Time
	logger   log.FieldLogger
	author   string
}

// New wires a Board.
func New(d Deps) *Board {
	b := &Board{
		store:    d.Store,
		ledger:   d.Ledger,
		pub:      d.Publisher,
		regen:    d.Regen,
		activity: d.Activity,
		now:      d.Now,
		logger:   d.Logger,
		author:   d.DefaultAuthor,
	}

	if b.now == nil {
		b.now = time.Now
	}

	if b.logger == nil {
		b.logger = log.StandardLogger()
	}

	if b.author == "" {
		b.author = DefaultAuthor
	}

	return b
}

// Store returns the underlying task store.
func (b *Board) Store() *store.Store {
	return b.store
}

func (b *Board) authorOr(author, fallback string) string {
	if author = strings.TrimSpace(author); author != "" {
		return author
	}

	return fallback
}

func (b *Board) today() string {
	return b.now().UTC().Format(task.DateLayout)
}

// changed runs the side effects shared by every accepted mutation. None of
// them can fail the mutation.
func (b *Board) changed(name string, entry activity.Entry) {
	if b.regen != nil {
		b.regen.Trigger(entry.Type)
	}

	if b.pub != nil {
		path, _ := b.store.Path(name)
		b.pub.Publish(notify.NewEvent(notify.TypeFSChange, path, b.now()))
	}

	if b.activity != nil {
		if err := b.activity.Append(entry); err != nil {
			b.logger.WithError(err).WithField("type", entry.Type).Warn("append activity failed")
		}
	}
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}

	return ctx.Err()
}

// recordID returns the id stored in the heading, or the one encoded in the
// filename when the heading has none.
func recordID(rec task.Record, filename string) string {
	if rec.ID != "" {
		return rec.ID
	}

	digits, letter := task.ExtractID(filename)

	return digits + letter
}
