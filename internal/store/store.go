// Package store is the task directory: one markdown file per task, with the
// status encoded in the filename. It is non-recursive and has no locking;
// [Store.CompareAndWrite] is the only concurrency guard.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/task"
)

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// Store reads and writes task files in a single directory.
type Store struct {
	dir string
	fs  tbfs.FS
}

// New returns a Store rooted at dir. The directory is created lazily on the
// first write.
func New(fsys tbfs.FS, dir string) *Store {
	return &Store{dir: filepath.Clean(dir), fs: fsys}
}

// Dir returns the task directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of name inside the task directory.
func (s *Store) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	return filepath.Join(s.dir, name), nil
}

// List returns the names of all *.md files, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("list tasks: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}

// Read returns the content of name with its freshness token.
func (s *Store) Read(name string) ([]byte, string, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, "", err
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, "", notFound(name, err)
	}

	token, err := s.Token(name)
	if err != nil {
		return nil, "", err
	}

	return data, token, nil
}

// Token returns the freshness token of name: modification time and size.
// It is a cheap change detector, not a content hash.
func (s *Store) Token(name string) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return "", notFound(name, err)
	}

	return tokenOf(info), nil
}

// Exists reports whether name is present.
func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}

	return s.fs.Exists(path)
}

// Write replaces name with content, creating the directory if needed.
func (s *Store) Write(name string, content []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, dirPerms); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}

	if err := s.fs.WriteFileAtomic(path, content, filePerms); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// CompareAndWrite writes content only if the current token of name equals
// expected. A mismatch returns a *task.ConflictError carrying the current
// token.
func (s *Store) CompareAndWrite(name, expected string, content []byte) error {
	current, err := s.Token(name)
	if err != nil {
		return err
	}

	if current != expected {
		return &task.ConflictError{Expected: expected, Current: current}
	}

	return s.Write(name, content)
}

// Rename moves oldName to newName by writing the new file and then removing
// the old one. The two steps are not atomic: a crash in between leaves both
// files on disk.
func (s *Store) Rename(oldName, newName string, content []byte) error {
	if err := s.Write(newName, content); err != nil {
		return err
	}

	if oldName == newName {
		return nil
	}

	return s.Remove(oldName)
}

// Remove deletes name.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(path); err != nil {
		return notFound(name, err)
	}

	return nil
}

// NextID returns max(numeric id prefix)+1, zero-padded to four digits.
func (s *Store) NextID() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}

	highest := 0

	for _, name := range names {
		digits, _ := task.ExtractID(name)
		if digits == "" {
			continue
		}

		n, convErr := strconv.Atoi(digits)
		if convErr == nil && n > highest {
			highest = n
		}
	}

	return task.PadID(highest + 1), nil
}

// UniqueFilename returns "{id}_{slug}_{status}.md", suffixing the slug with
// -1, -2, ... while that name is taken.
func (s *Store) UniqueFilename(id, slug, status string) (string, error) {
	candidate := task.EncodeFilename(id+"_"+slug, status)

	for counter := 1; ; counter++ {
		exists, err := s.Exists(candidate)
		if err != nil {
			return "", err
		}

		if !exists {
			return candidate, nil
		}

		candidate = task.EncodeFilename(id+"_"+slug+"-"+strconv.Itoa(counter), status)
	}
}

func tokenOf(info fs.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", task.ErrInvalidFilename, name)
	}

	return nil
}

func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", task.ErrNotFound, name)
	}

	return fmt.Errorf("%s: %w", name, err)
}
