package board

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/task"
	"github.com/stopmidnight/taskboard/internal/undo"
)

// Transition moves filename to toStatus and returns the new filename. A
// transition to the current status changes nothing and returns filename.
// The original bytes are kept in the undo ledger under the new filename.
func (b *Board) Transition(ctx context.Context, filename, toStatus, author string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	if !task.IsValidStatus(toStatus) {
		return "", fmt.Errorf("%w: %q", task.ErrInvalidStatus, toStatus)
	}

	author = b.authorOr(author, DefaultStatusAuthor)

	b.mu.Lock()
	defer b.mu.Unlock()

	exists, err := b.store.Exists(filename)
	if err != nil {
		return "", err
	}

	if !exists {
		return "", fmt.Errorf("%w: %s", task.ErrNotFound, filename)
	}

	base, fromStatus, err := task.DecodeFilename(filename)
	if err != nil {
		return "", err
	}

	if fromStatus == toStatus {
		return filename, nil
	}

	original, _, err := b.store.Read(filename)
	if err != nil {
		return "", err
	}

	rec := task.Parse(string(original))
	rec.ID = recordID(rec, filename)

	content := rec.Serialize(
		task.EditedBy(author, b.now()),
		task.ChangeEntry(b.today(), author, task.DescStatus(fromStatus, toStatus)),
	)

	newName := task.EncodeFilename(base, toStatus)

	if err := b.store.Rename(filename, newName, []byte(content)); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filename, newName, err)
	}

	b.ledger.Record(newName, undo.Entry{
		PreviousFilename: filename,
		PreviousContent:  original,
		NewFilename:      newName,
	})

	b.logger.WithFields(log.Fields{
		"from": filename,
		"to":   newName,
	}).Info("task status changed")

	b.changed(newName, activity.Entry{
		Type:         activity.TypeStatus,
		Author:       author,
		Filename:     newName,
		PrevFilename: filename,
		From:         fromStatus,
		To:           toStatus,
	})

	return newName, nil
}

// Undo reverses the transition that produced filename and returns the
// restored filename. Each transition can be undone once, within the ledger
// window.
func (b *Board) Undo(ctx context.Context, filename, author string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	if filename == "" {
		return "", fmt.Errorf("%w: filename is required", task.ErrInvalidFilename)
	}

	author = b.authorOr(author, b.author)

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.ledger.Take(filename)
	if err != nil {
		return "", fmt.Errorf("undo %s: %w", filename, err)
	}

	exists, err := b.store.Exists(entry.NewFilename)
	if err != nil {
		return "", err
	}

	if exists {
		if err := b.store.Remove(entry.NewFilename); err != nil && !errors.Is(err, task.ErrNotFound) {
			return "", err
		}
	}

	if err := b.store.Write(entry.PreviousFilename, entry.PreviousContent); err != nil {
		b.ledger.Restore(filename, entry)

		return "", err
	}

	b.logger.WithFields(log.Fields{
		"from": entry.NewFilename,
		"to":   entry.PreviousFilename,
	}).Info("task status change undone")

	b.changed(entry.PreviousFilename, activity.Entry{
		Type:     activity.TypeUndo,
		Author:   author,
		Filename: entry.PreviousFilename,
	})

	return entry.PreviousFilename, nil
}

// IsUndoExpired reports whether err came from a missing or expired undo
// entry.
func IsUndoExpired(err error) bool {
	return errors.Is(err, undo.ErrNotFound)
}
