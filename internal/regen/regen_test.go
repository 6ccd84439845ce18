package regen

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/store"
	"github.com/stopmidnight/taskboard/internal/testutil"
)

func newGenerator(t *testing.T, fsys tbfs.FS, files map[string]string) (*Generator, string) {
	t.Helper()

	root := t.TempDir()
	tasks := filepath.Join(root, "tasks")
	require.NoError(t, os.MkdirAll(tasks, 0o755))

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tasks, name), []byte(content), 0o644))
	}

	st := store.New(fsys, tasks)

	return NewGenerator(fsys, root, st, testutil.NewClock().Now), root
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  string
		want     Summary
	}{
		{
			name:     "padded id",
			filename: "0012_fix-login_todo.md",
			content:  "# 0012: Fix login\n",
			want:     Summary{ID: "0012", IDRaw: "12", Aliases: []string{"12"}, Title: "Fix login", Status: "todo", Filename: "0012_fix-login_todo.md"},
		},
		{
			name:     "short id is padded with letter",
			filename: "7a_thing_done.md",
			content:  "# 7: Thing\n",
			want:     Summary{ID: "0007a", IDRaw: "7", Aliases: []string{"7"}, Title: "Thing", Status: "done", Filename: "7a_thing_done.md"},
		},
		{
			name:     "japanese prefix stripped",
			filename: "0003_x_review.md",
			content:  "intro\n# タスク3: 見直し\n",
			want:     Summary{ID: "0003", IDRaw: "3", Aliases: []string{"3"}, Title: "見直し", Status: "review", Filename: "0003_x_review.md"},
		},
		{
			name:     "title falls back to filename",
			filename: "0004_no-heading_backlog.md",
			content:  "just text\n",
			want:     Summary{ID: "0004", IDRaw: "4", Aliases: []string{"4"}, Title: "no-heading", Status: "backlog", Filename: "0004_no-heading_backlog.md"},
		},
		{
			name:     "no id",
			filename: "notes_todo.md",
			content:  "# Notes\n",
			want:     Summary{Aliases: []string{}, Title: "Notes", Status: "todo", Filename: "notes_todo.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Summarize(tt.filename, tt.content)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Summarize(%q) mismatch (-want +got):\n%s", tt.filename, diff)
			}
		})
	}
}

func TestRunWritesAllArtifacts(t *testing.T) {
	t.Parallel()

	gen, root := newGenerator(t, tbfs.NewReal(), map[string]string{
		"0010_later_done.md":     "# 0010: Later\n",
		"0002_first_todo.md":     "# 0002: First\n",
		"idea_0003_x_backlog.md": "# Idea\n",
		"STATE_board_todo.md":    "# State\n",
	})

	require.NoError(t, gen.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, "tasks.json"))
	require.NoError(t, err)

	var summaries []Summary
	require.NoError(t, json.Unmarshal(data, &summaries))

	filenames := make([]string, 0, len(summaries))
	for _, s := range summaries {
		filenames = append(filenames, s.Filename)
	}

	assert.Equal(t, []string{"STATE_board_todo.md", "idea_0003_x_backlog.md", "0002_first_todo.md", "0010_later_done.md"}, filenames)

	viewerCopy, err := os.ReadFile(filepath.Join(root, "viewer", "tasks.json"))
	require.NoError(t, err)
	assert.Equal(t, data, viewerCopy)

	target, err := os.Readlink(filepath.Join(root, ".views", "2_TODO", "0002_first_todo.md"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "..", "tasks", "0002_first_todo.md"), target)

	_, err = os.Lstat(filepath.Join(root, ".views", "2_TODO", "STATE_board_todo.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "STATE files are not linked")

	index, err := os.ReadFile(filepath.Join(root, "INDEX.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "- **0002: First** - [0002_first_todo.md](./tasks/0002_first_todo.md)")
	assert.Contains(t, string(index), "- 合計: 3件")
}

func TestRunRecreatesViews(t *testing.T) {
	t.Parallel()

	gen, root := newGenerator(t, tbfs.NewReal(), map[string]string{
		"0001_a_todo.md": "# 0001: A\n",
	})

	require.NoError(t, gen.Run(context.Background()))

	tasks := filepath.Join(root, "tasks")
	require.NoError(t, os.Rename(filepath.Join(tasks, "0001_a_todo.md"), filepath.Join(tasks, "0001_a_done.md")))
	require.NoError(t, gen.Run(context.Background()))

	_, err := os.Lstat(filepath.Join(root, ".views", "2_TODO", "0001_a_todo.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "stale link must be removed")

	_, err = os.Lstat(filepath.Join(root, ".views", "4_DONE", "0001_a_done.md"))
	assert.NoError(t, err)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	faulty := tbfs.NewFaulty(tbfs.NewReal())
	gen, root := newGenerator(t, faulty, map[string]string{
		"0001_a_todo.md": "# 0001: A\n",
	})

	faulty.Fail(tbfs.OpSymlink, "", errors.New("boom"))

	err := gen.Run(context.Background())
	require.Error(t, err)
	assert.True(t, tbfs.IsInjected(err))

	_, statErr := os.Stat(filepath.Join(root, "INDEX.md"))
	assert.NoError(t, statErr, "later artifacts are still written")
}

func TestRenderIndex(t *testing.T) {
	t.Parallel()

	names := []string{
		"0001_a_todo.md",
		"000_readme_todo.md",
		"impl_0002_b_done.md",
		"INDEX_x_todo.md",
	}
	read := func(name string) (string, error) {
		if name == "impl_0002_b_done.md" {
			return "", errors.New("unreadable")
		}

		return "# 0001: A\n", nil
	}

	got := RenderIndex(names, read, testutil.NewClock().Now())

	want := strings.Join([]string{
		"# Logs INDEX",
		"*自動生成: 2025/1/1 18:00:00*",
		"",
		"## 📊 サマリー",
		"- BACKLOG: 0件",
		"- TODO: 1件",
		"- REVIEW: 0件",
		"- DONE: 1件",
		"- 合計: 2件",
		"",
		"## 📝 TODO (1)",
		"",
		"- **0001: A** - [0001_a_todo.md](./tasks/0001_a_todo.md)",
		"",
		"## ✅ DONE (1)",
		"",
		"- [impl 0002 b done.md](./tasks/impl_0002_b_done.md)",
		"",
		"## 🔧 IMPLEMENTATIONS (1)",
		"",
		"### DONE (1)",
		"- [impl 0002 b done](./tasks/impl_0002_b_done.md)",
		"",
		"",
	}, "\n")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("RenderIndex mismatch (-want +got):\n%s", diff)
	}
}

func TestViewDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1_BACKLOG", ViewDir("backlog"))
	assert.Equal(t, "3_REVIEW", ViewDir("review"))
	assert.Empty(t, ViewDir("archived"))
}

func TestSchedulerDebouncesBursts(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32

	s := NewScheduler(func(context.Context) error {
		runs.Add(1)

		return nil
	}, 50*time.Millisecond, nil)
	defer s.Close()

	for range 5 {
		s.Trigger("save")
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	s.Trigger("status")
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerLogsFailures(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()

	done := make(chan struct{})
	s := NewScheduler(func(context.Context) error {
		defer close(done)

		return errors.New("disk full")
	}, 0, logger)

	s.Trigger("create")
	<-done
	s.Close()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, []string{"create"}, entry.Data["reasons"])
}

func TestSchedulerCloseDropsPending(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32

	s := NewScheduler(func(context.Context) error {
		runs.Add(1)

		return nil
	}, time.Hour, nil)

	s.Trigger("save")
	s.Close()
	s.Trigger("save")

	assert.Equal(t, int32(0), runs.Load())
}

func TestSchedulerFlushRunsPendingNow(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32

	s := NewScheduler(func(context.Context) error {
		runs.Add(1)

		return nil
	}, time.Hour, nil)

	s.Flush()
	assert.Equal(t, int32(0), runs.Load(), "nothing pending")

	s.Trigger("create")
	s.Trigger("status")
	s.Flush()
	assert.Equal(t, int32(1), runs.Load())

	s.Flush()
	s.Close()
	assert.Equal(t, int32(1), runs.Load(), "flush consumes the pending triggers")
}
