// Package store implements the scout's file persistence: the discovery ledger,
// the human-readable section logs, the lifetime tally and the query cache.
// Directories and headers are created by Init, never as a side effect of import.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a truncated file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Path: path, Message: "failed to create directory", Cause: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &Error{Path: path, Message: "failed to create temp file", Cause: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &Error{Path: path, Message: "failed to write temp file", Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &Error{Path: path, Message: "failed to sync temp file", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Path: path, Message: "failed to close temp file", Cause: err}
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return &Error{Path: path, Message: "failed to set permissions", Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &Error{Path: path, Message: "failed to replace file", Cause: err}
	}
	return nil
}

// appendFile opens path in append mode and writes s.
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Path: path, Message: "failed to open for append", Cause: err}
	}
	if _, err := io.WriteString(f, s); err != nil {
		_ = f.Close()
		return &Error{Path: path, Message: "failed to append", Cause: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Path: path, Message: "failed to close", Cause: err}
	}
	return nil
}

// writeIfMissing creates path with content when it does not exist yet.
func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &Error{Path: path, Message: "failed to stat", Cause: err}
	}
	return WriteFileAtomic(path, []byte(content), 0o644)
}

// Error is a persistence failure. Callers log it and keep running.
type Error struct {
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store error for %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("store error for %s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
