package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound = fmt.Errorf("filesystem: file not found")
	ErrIsDirectory  = fmt.Errorf("filesystem: path is a directory")
	ErrInvalidPath  = fmt.Errorf("filesystem: invalid path")
)

// Filesystem is the read side used to serve files from disk.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	// FileExists reports whether path names a regular file.
	FileExists(path string) (bool, error)
}

type localFileSystem struct {
	root string
}

// NewLocalFileSystem resolves paths as given, relative to the working directory.
func NewLocalFileSystem() Filesystem {
	return &localFileSystem{}
}

// NewDirFileSystem resolves every path inside root. Paths escaping root are
// rejected with ErrInvalidPath.
func NewDirFileSystem(root string) Filesystem {
	return &localFileSystem{root: root}
}

func (filesystem *localFileSystem) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	if filesystem.root == "" {
		return path, nil
	}

	cleaned := filepath.Clean("/" + filepath.ToSlash(path))
	full := filepath.Join(filesystem.root, filepath.FromSlash(cleaned))

	rel, err := filepath.Rel(filesystem.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return full, nil
}

func (filesystem *localFileSystem) ReadFile(path string) ([]byte, error) {
	resolved, err := filesystem.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing file error", "error", closeErr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	content := make([]byte, info.Size())
	if _, err := io.ReadFull(file, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (filesystem *localFileSystem) FileExists(path string) (bool, error) {
	resolved, err := filesystem.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return !info.IsDir(), nil
}
