package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs taskboard commands against a temp directory in tests.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a new test CLI with a temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{
		t:   t,
		Dir: t.TempDir(),
		Env: map[string]string{},
	}
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "taskboard" or "--cwd", those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"taskboard", "--cwd", r.Dir}, args...)
	code := Run(nil, &outBuf, &errBuf, fullArgs, r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Also fails if stdout is not empty. Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	if stdout != "" {
		r.t.Fatalf("command %v failed but stdout should be empty\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// Root returns the default doc root.
func (r *CLI) Root() string {
	return filepath.Join(r.Dir, "docs", "logs")
}

// TasksDir returns the path to the tasks directory.
func (r *CLI) TasksDir() string {
	return filepath.Join(r.Root(), "tasks")
}

// ReadTask reads and returns the content of a task file.
func (r *CLI) ReadTask(name string) string {
	r.t.Helper()

	content, err := os.ReadFile(filepath.Join(r.TasksDir(), name))
	if err != nil {
		r.t.Fatalf("failed to read task %s: %v", name, err)
	}

	return string(content)
}

// WriteTask writes content to a task file, creating the tasks directory.
func (r *CLI) WriteTask(name, content string) {
	r.t.Helper()

	err := os.MkdirAll(r.TasksDir(), 0o750)
	if err != nil {
		r.t.Fatalf("failed to create tasks dir: %v", err)
	}

	err = os.WriteFile(filepath.Join(r.TasksDir(), name), []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write task %s: %v", name, err)
	}
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
