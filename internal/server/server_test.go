package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/board"
	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/notify"
	"github.com/stopmidnight/taskboard/internal/store"
	"github.com/stopmidnight/taskboard/internal/testutil"
	"github.com/stopmidnight/taskboard/internal/undo"
)

const sampleTask = `# 0001: Write tests

Author: kirara
Edited-By: kirara 2024-12-30

Cover the store.

---
Change Log
- 2024-12-30 kirara: 作成
`

type harness struct {
	srv   *Server
	hub   *notify.Hub
	root  string
	tasks string
	clock *testutil.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	tasks := filepath.Join(root, "tasks")
	require.NoError(t, os.MkdirAll(tasks, 0o755))

	fsys := tbfs.NewReal()
	clock := testutil.NewClock()
	hub := notify.NewHub()
	logger, _ := test.NewNullLogger()
	act := activity.New(fsys, filepath.Join(root, "activity.log"), clock.Now)

	b := board.New(board.Deps{
		Store:     store.New(fsys, tasks),
		Ledger:    undo.New(undo.DefaultWindow, clock.Now),
		Publisher: hub,
		Activity:  act,
		Now:       clock.Now,
		Logger:    logger,
	})

	srv := New(Config{
		Board:    b,
		Hub:      hub,
		Activity: act,
		FS:       fsys,
		Root:     root,
		Now:      clock.Now,
		Logger:   logger,
	})

	return &harness{srv: srv, hub: hub, root: root, tasks: tasks, clock: clock}
}

func (h *harness) writeTask(t *testing.T, name, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(h.tasks, name), []byte(content), 0o644))
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func TestStatusChangeAndUndo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.writeTask(t, "0001_write-tests_todo.md", sampleTask)

	rec := h.do(t, http.MethodPost, "/api/tasks/status", `{"filename":"0001_write-tests_todo.md","toStatus":"review"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"ok": true, "file": "0001_write-tests_review.md"}, decode(t, rec))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = h.do(t, http.MethodPost, "/api/tasks/undo", `{"filename":"0001_write-tests_review.md"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"ok": true, "filename": "0001_write-tests_todo.md"}, decode(t, rec))

	data, err := os.ReadFile(filepath.Join(h.tasks, "0001_write-tests_todo.md"))
	require.NoError(t, err)
	assert.Equal(t, sampleTask, string(data))

	rec = h.do(t, http.MethodPost, "/api/tasks/undo", `{"filename":"0001_write-tests_review.md"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"error": "undo entry not found", "kind": KindNotFound}, decode(t, rec))
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.writeTask(t, "0001_write-tests_todo.md", sampleTask)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"invalid status", http.MethodPost, "/api/tasks/status", `{"filename":"0001_write-tests_todo.md","toStatus":"wip"}`, http.StatusBadRequest, KindInvalidStatus},
		{"missing task", http.MethodPost, "/api/tasks/status", `{"filename":"0009_x_todo.md","toStatus":"done"}`, http.StatusNotFound, KindNotFound},
		{"missing filename", http.MethodPost, "/api/tasks/status", `{"toStatus":"done"}`, http.StatusBadRequest, KindInvalidRequest},
		{"bad filename", http.MethodGet, "/api/tasks/get?filename=..%2Fsecret.md", "", http.StatusBadRequest, KindInvalidFilename},
		{"invalid json", http.MethodPost, "/api/tasks", `{"title":`, http.StatusBadRequest, KindInvalidJSON},
		{"title required", http.MethodPost, "/api/tasks", `{"title":""}`, http.StatusBadRequest, KindInvalidRequest},
		{"get missing", http.MethodGet, "/api/tasks/get?filename=0009_x_todo.md", "", http.StatusNotFound, KindNotFound},
		{"too large", http.MethodPost, "/api/tasks", `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, KindPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := h.do(t, tt.method, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode(t, rec)["kind"])
		})
	}
}

func TestCreateGetSave(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/tasks", `{"title":"Write tests","body":"first","author":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{
		"ok": true, "id": "0001", "filename": "0001_write-tests_todo.md", "status": "todo",
	}, decode(t, rec))

	rec = h.do(t, http.MethodGet, "/api/tasks/get?filename=0001_write-tests_todo.md", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode(t, rec)
	assert.Equal(t, "Write tests", got["title"])
	assert.Equal(t, "first", got["body"])

	etag, _ := got["etag"].(string)
	require.NotEmpty(t, etag)

	rec = h.do(t, http.MethodPut, "/api/tasks/save", `{"filename":"0001_write-tests_todo.md","title":"Renamed","body":"second","ifMatch":"`+etag+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved := decode(t, rec)
	assert.Equal(t, true, saved["ok"])

	rec = h.do(t, http.MethodPut, "/api/tasks/save", `{"filename":"0001_write-tests_todo.md","title":"Stale","ifMatch":"`+etag+`"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	conflict := decode(t, rec)
	assert.Equal(t, KindConflict, conflict["kind"])
	assert.Equal(t, "etag mismatch", conflict["error"])
	assert.Equal(t, saved["etag"], conflict["etag"])

	rec = h.do(t, http.MethodGet, "/api/activity?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []activity.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, activity.TypeSave, entries[0].Type)
	assert.Equal(t, activity.TypeCreate, entries[1].Type)
}

func TestSmallEndpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"default"`)

	rec = h.do(t, http.MethodOptions, "/api/tasks/status", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = h.do(t, http.MethodGet, "/api/activity", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStaticFiles(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	alt := t.TempDir()
	h.srv.cfg.AltViewerRoot = alt

	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "viewer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "viewer", "index.html"), []byte("<html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(alt, "viewer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(alt, "viewer", "app.js"), []byte("app()"), 0o644))

	rec := h.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = h.do(t, http.MethodGet, "/viewer/app.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app()", rec.Body.String())
	assert.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = h.do(t, http.MethodGet, "/.taskconfig.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"color":"#eab308"`)

	rec = h.do(t, http.MethodGet, "/missing.md", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		ok   bool
		want string
	}{
		{"viewer/index.html", true, "/docs/logs/viewer/index.html"},
		{"../secret", false, ""},
		{"../logs-other/x", false, ""},
		{".", true, "/docs/logs"},
	}

	for _, tt := range tests {
		got, ok := within("/docs/logs", filepath.FromSlash(tt.rel))
		if ok != tt.ok || got != filepath.FromSlash(tt.want) {
			t.Fatalf("within(%q)=(%q,%v), want=(%q,%v)", tt.rel, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.writeTask(t, "0001_write-tests_todo.md", sampleTask)

	ts := httptest.NewServer(h.srv)
	defer ts.Close()
	defer h.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() notify.Event {
		t.Helper()

		line, err := reader.ReadString('\n')
		require.NoError(t, err)

		_, err = reader.ReadString('\n')
		require.NoError(t, err)

		var ev notify.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))

		return ev
	}

	assert.Equal(t, notify.TypeHello, next().Type)

	require.Eventually(t, func() bool { return h.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	rec := h.do(t, http.MethodPost, "/api/tasks/status", `{"filename":"0001_write-tests_todo.md","toStatus":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ev := next()
	assert.Equal(t, notify.TypeFSChange, ev.Type)
	assert.Equal(t, filepath.Join(h.tasks, "0001_write-tests_done.md"), ev.Path)
}
