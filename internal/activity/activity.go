// Package activity is the append-only JSON-lines log of board mutations
// served by the activity feed.
package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	tbfs "github.com/stopmidnight/taskboard/internal/fs"
)

// Entry types.
const (
	TypeCreate = "create"
	TypeSave   = "save"
	TypeStatus = "status"
	TypeUndo   = "undo"
	TypeRegen  = "regen"
)

// Limits for [Log.Recent].
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

const filePerms = 0o644

// Entry is one line of the log.
type Entry struct {
	ID           string   `json:"id"`
	Ts           string   `json:"ts"`
	Type         string   `json:"type"`
	Filename     string   `json:"filename,omitempty"`
	Author       string   `json:"author,omitempty"`
	PrevFilename string   `json:"prevFilename,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	Status       string   `json:"status,omitempty"`
	Fields       []string `json:"fields,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Path         string   `json:"path,omitempty"`
}

// Log appends to and reads from a single file.
type Log struct {
	path string
	fs   tbfs.FS
	now  func() time.Time
}

// New returns a Log stored at path. A nil now uses [time.Now].
func New(fsys tbfs.FS, path string, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}

	return &Log{path: path, fs: fsys, now: now}
}

// Append stamps entry with an id and timestamp when missing and writes it as
// one line. The file is locked for the write so other processes may share it.
func (l *Log) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if entry.Ts == "" {
		entry.Ts = l.now().UTC().Format(time.RFC3339Nano)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	lock, err := l.fs.Lock(l.path)
	if err != nil {
		return fmt.Errorf("lock activity log: %w", err)
	}
	defer lock.Close()

	if err := l.fs.AppendFile(l.path, append(line, '\n'), filePerms); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	return nil
}

// Recent returns the last limit entries, most recent first. limit is clamped
// to [1, MaxLimit]; zero means [DefaultLimit]. Lines that are not valid JSON
// come back as {"raw": line}.
func (l *Log) Recent(limit int) ([]json.RawMessage, error) {
	limit = ClampLimit(limit)

	data, err := l.fs.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []json.RawMessage{}, nil
		}

		return nil, fmt.Errorf("read activity: %w", err)
	}

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))

	nonEmpty := lines[:0]

	for _, line := range lines {
		if len(bytes.TrimSpace(line)) > 0 {
			nonEmpty = append(nonEmpty, line)
		}
	}

	if len(nonEmpty) > limit {
		nonEmpty = nonEmpty[len(nonEmpty)-limit:]
	}

	out := make([]json.RawMessage, 0, len(nonEmpty))

	for i := len(nonEmpty) - 1; i >= 0; i-- {
		line := nonEmpty[i]
		if json.Valid(line) {
			out = append(out, json.RawMessage(line))

			continue
		}

		raw, _ := json.Marshal(map[string]string{"raw": string(line)})
		out = append(out, raw)
	}

	return out, nil
}

// ClampLimit applies the defaults and bounds of [Log.Recent].
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
