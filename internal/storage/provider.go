// Package storage defines the component-library file-system abstraction.
package storage

import "time"

// FileMeta is a lightweight record returned by list operations.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List walks dir and returns metadata for every file whose name ends in
	// one of exts (every file when exts is empty). Hidden directories are
	// skipped.
	List(dir string, exts ...string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Root returns the absolute library root.
	Root() string
}
