package fs

import (
	"bytes"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// Real implements [FS] using the real filesystem.
//
// Methods are passthroughs to [os] except [Real.Exists], which wraps
// [os.Stat], [Real.WriteFileAtomic], which uses atomic file writes, and
// [Real.Lock], which uses flock(2).
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (r *Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	err := atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	return os.Chmod(path, perm)
}

func (r *Real) AppendFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return err
}

// A passthrough wrapper for [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists checks if a file exists using [os.Stat].
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

// A passthrough wrapper for [os.RemoveAll].
func (r *Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// A passthrough wrapper for [os.Symlink].
func (r *Real) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

const (
	lockTimeout  = 2 * time.Second
	lockInterval = 10 * time.Millisecond
	lockPerms    = 0o644
)

// realLock holds an exclusive flock on a sidecar lock file.
type realLock struct {
	file *os.File
}

func (l *realLock) Close() error {
	if l.file == nil {
		return nil
	}

	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	return err
}

// Lock takes an exclusive flock on path+".lock". The lock file is left in
// place; removing it while another process waits on it would split the lock.
func (r *Real) Lock(path string) (Locker, error) {
	file, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, lockPerms)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(lockTimeout)

	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &realLock{file: file}, nil
		}

		if err != unix.EWOULDBLOCK || time.Now().After(deadline) {
			file.Close()

			if err == unix.EWOULDBLOCK {
				return nil, os.ErrDeadlineExceeded
			}

			return nil, err
		}

		time.Sleep(lockInterval)
	}
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
