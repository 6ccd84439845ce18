package board

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/task"
)

// CreateInput describes a new task. Status defaults to todo.
type CreateInput struct {
	Title  string
	Body   string
	Status string
	Author string
}

// Created is the result of CreateTask.
type Created struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// EditInput replaces the title and body of a task. An empty IfMatch skips
// the freshness check against the caller's copy.
type EditInput struct {
	Filename string
	Title    string
	Body     string
	Author   string
	IfMatch  string
}

// Task is the editable view of one task file.
type Task struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	ETag  string `json:"etag"`
}

// Summary is one row of List.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// CreateTask allocates the next id and writes a fresh task file.
func (b *Board) CreateTask(ctx context.Context, in CreateInput) (Created, error) {
	if err := checkContext(ctx); err != nil {
		return Created{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Created{}, task.ErrTitleRequired
	}

	status := in.Status
	if status == "" {
		status = task.StatusTodo
	}

	if !task.IsValidStatus(status) {
		return Created{}, fmt.Errorf("%w: %q", task.ErrInvalidStatus, status)
	}

	author := b.authorOr(in.Author, b.author)

	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.store.NextID()
	if err != nil {
		return Created{}, err
	}

	filename, err := b.store.UniqueFilename(id, task.Slugify(title), status)
	if err != nil {
		return Created{}, err
	}

	rec := task.Record{
		ID:    id,
		Title: title,
		Meta:  []string{"Author: " + author},
		Body:  in.Body,
	}

	content := rec.Serialize(
		task.EditedBy(author, b.now()),
		task.ChangeEntry(b.today(), author, task.DescCreated),
	)

	if err := b.store.Write(filename, []byte(content)); err != nil {
		return Created{}, err
	}

	b.logger.WithField("filename", filename).Info("task created")

	b.changed(filename, activity.Entry{
		Type:     activity.TypeCreate,
		Author:   author,
		Filename: filename,
		Status:   status,
	})

	return Created{ID: id, Filename: filename, Status: status}, nil
}

// SaveEdit rewrites the title and body of a task and returns its new
// freshness token. A stale IfMatch fails with a *task.ConflictError and
// leaves the file untouched.
func (b *Board) SaveEdit(ctx context.Context, in EditInput) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	if _, err := b.store.Path(in.Filename); err != nil {
		return "", err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", task.ErrTitleRequired
	}

	author := b.authorOr(in.Author, b.author)

	b.mu.Lock()
	defer b.mu.Unlock()

	current, token, err := b.store.Read(in.Filename)
	if err != nil {
		return "", err
	}

	if in.IfMatch != "" && in.IfMatch != token {
		return "", &task.ConflictError{Expected: in.IfMatch, Current: token}
	}

	rec := task.Parse(string(current))
	rec.ID = recordID(rec, in.Filename)
	rec.Title = title
	rec.Body = in.Body

	content := rec.Serialize(
		task.EditedBy(author, b.now()),
		task.ChangeEntry(b.today(), author, task.DescEdited),
	)

	if err := b.store.CompareAndWrite(in.Filename, token, []byte(content)); err != nil {
		return "", err
	}

	newToken, err := b.store.Token(in.Filename)
	if err != nil {
		return "", err
	}

	b.logger.WithFields(log.Fields{
		"filename": in.Filename,
		"etag":     newToken,
	}).Info("task saved")

	b.changed(in.Filename, activity.Entry{
		Type:     activity.TypeSave,
		Author:   author,
		Filename: in.Filename,
		Fields:   []string{"title", "body"},
	})

	return newToken, nil
}

// Get returns the title, body and freshness token of a task.
func (b *Board) Get(ctx context.Context, filename string) (Task, error) {
	if err := checkContext(ctx); err != nil {
		return Task{}, err
	}

	content, token, err := b.store.Read(filename)
	if err != nil {
		return Task{}, err
	}

	rec := task.Parse(string(content))

	return Task{Title: rec.Title, Body: rec.Body, ETag: token}, nil
}

// List summarizes every task file. Files whose names carry no known status
// are listed with an empty status.
func (b *Board) List(ctx context.Context) ([]Summary, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	names, err := b.store.List()
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(names))

	for _, name := range names {
		content, _, err := b.store.Read(name)
		if err != nil {
			return nil, err
		}

		rec := task.Parse(string(content))
		_, status, _ := task.DecodeFilename(name)

		out = append(out, Summary{
			ID:       recordID(rec, name),
			Title:    rec.Title,
			Status:   status,
			Filename: name,
		})
	}

	return out, nil
}
