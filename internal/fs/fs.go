// Package fs provides the filesystem abstraction used by the task store,
// the activity log and the artifact regenerator.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [Real]: production implementation using [os]
//   - [Faulty]: testing wrapper that fails selected operations
package fs

import (
	"io"
	"os"
)

// Locker represents a held file lock.
// Call [Locker.Close] to release the lock.
//
//	lock, err := fs.Lock("activity.log")
//	if err != nil {
//	    return err
//	}
//	defer lock.Close()
type Locker interface {
	io.Closer
}

// FS defines the filesystem operations the board needs. All methods mirror
// their [os] package equivalents except where noted.
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data via temp file + rename, so a
	// reader never observes a partially written file.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// AppendFile appends data to path, creating it if needed.
	AppendFile(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory. Entries are sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	RemoveAll(path string) error

	// Symlink creates newname as a symbolic link to oldname. See [os.Symlink].
	Symlink(oldname, newname string) error

	// Lock acquires an exclusive advisory lock on path, blocking up to a
	// short timeout. Used to share append-only files with other processes.
	Lock(path string) (Locker, error)
}
