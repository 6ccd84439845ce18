package fs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Op names an [FS] operation that [Faulty] can fail.
type Op string

// Operations that can be failed.
const (
	OpReadFile        Op = "ReadFile"
	OpWriteFileAtomic Op = "WriteFileAtomic"
	OpAppendFile      Op = "AppendFile"
	OpReadDir         Op = "ReadDir"
	OpMkdirAll        Op = "MkdirAll"
	OpStat            Op = "Stat"
	OpRemove          Op = "Remove"
	OpSymlink         Op = "Symlink"
)

// InjectedError marks an error as intentionally injected by [Faulty].
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Op   Op
	Path string
	Err  error
}

func (e *InjectedError) Error() string {
	return "injected " + string(e.Op) + " " + e.Path + ": " + e.Err.Error()
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails chosen operations on chosen base names.
// Everything else passes through to the wrapped filesystem.
//
//	faulty := fs.NewFaulty(fs.NewReal())
//	faulty.Fail(fs.OpRemove, "0001_x_todo.md", syscall.EACCES)
type Faulty struct {
	inner FS

	mu    sync.Mutex
	fails map[Op]map[string]error
}

// NewFaulty wraps inner.
func NewFaulty(inner FS) *Faulty {
	return &Faulty{inner: inner, fails: make(map[Op]map[string]error)}
}

// Fail makes op on any path whose base name is name return err.
// An empty name matches every path.
func (f *Faulty) Fail(op Op, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fails[op] == nil {
		f.fails[op] = make(map[string]error)
	}

	f.fails[op][name] = err
}

// Reset clears every injected failure.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fails = make(map[Op]map[string]error)
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	byName := f.fails[op]
	if byName == nil {
		return nil
	}

	err, ok := byName[filepath.Base(path)]
	if !ok {
		err, ok = byName[""]
	}

	if !ok {
		return nil
	}

	return &InjectedError{Op: op, Path: path, Err: err}
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.inner.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWriteFileAtomic, path); err != nil {
		return err
	}

	return f.inner.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) AppendFile(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpAppendFile, path); err != nil {
		return err
	}

	return f.inner.AppendFile(path, data, perm)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.inner.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.inner.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpStat, path); err != nil {
		return false, err
	}

	return f.inner.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.inner.RemoveAll(path)
}

func (f *Faulty) Symlink(oldname, newname string) error {
	if err := f.check(OpSymlink, newname); err != nil {
		return err
	}

	return f.inner.Symlink(oldname, newname)
}

func (f *Faulty) Lock(path string) (Locker, error) {
	return f.inner.Lock(path)
}

var _ FS = (*Faulty)(nil)
