// Package fs abstracts the file operations the tools perform so they can be
// tested against an in-memory filesystem.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/codefionn/toolgate/internal/logger"
)

// FileInfo represents file metadata
type FileInfo struct {
	Path    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
}

// FileSystem is an abstraction over filesystem operations. Paths are
// expected to be absolute and already validated by the sandbox.
type FileSystem interface {
	// ReadFile reads the entire file
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// ReadFileLines reads lines from..to (1-based, inclusive) from a file
	ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error)
	// WriteFile replaces the file content atomically, creating parent
	// directories as needed
	WriteFile(ctx context.Context, path string, data []byte) error
	// Stat returns file information
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes a file
	Delete(ctx context.Context, path string) error
	// MkdirAll creates a directory and all parent directories
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
}

const defaultFileMode os.FileMode = 0o644

// OSFS is the real filesystem. Writes go through a temporary file in the
// same directory and a rename, so readers never observe a partial file.
type OSFS struct{}

// NewOSFS returns the host filesystem.
func NewOSFS() *OSFS {
	return &OSFS{}
}

func (OSFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (o OSFS) ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error) {
	data, err := o.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return sliceLines(data, from, to)
}

func (OSFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := defaultFileMode
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		mode = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := os.Chmod(path, mode); err != nil {
		logger.Global().Warn("fs: failed to restore mode %v on %s: %v", mode, path, err)
	}
	return nil
}

func (OSFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:    path,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (OSFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (OSFS) Delete(ctx context.Context, path string) error {
	return os.Remove(path)
}

func (OSFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// sliceLines returns lines from..to (1-based, inclusive) of data. A to of 0
// or less means the end of the file.
func sliceLines(data []byte, from, to int) ([]string, error) {
	if from < 1 {
		from = 1
	}
	text := string(data)
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" || len(data) > 0 {
		lines = strings.Split(text, "\n")
	}
	if to <= 0 || to > len(lines) {
		to = len(lines)
	}
	if from > len(lines) {
		if len(lines) == 0 && from == 1 {
			return []string{}, nil
		}
		return nil, fmt.Errorf("from line %d exceeds file length %d", from, len(lines))
	}
	if from > to {
		return nil, fmt.Errorf("from line %d is after to line %d", from, to)
	}
	out := make([]string, 0, to-from+1)
	for _, l := range lines[from-1 : to] {
		out = append(out, strings.TrimSuffix(l, "\r"))
	}
	return out, nil
}

// MockFS is a mock filesystem for testing
type MockFS struct {
	files map[string][]byte
	dirs  map[string]bool
	mu    sync.RWMutex
}

func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (mfs *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	data, ok := mfs.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (mfs *MockFS) ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error) {
	data, err := mfs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return sliceLines(data, from, to)
}

func (mfs *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	if mfs.dirs[path] {
		return fmt.Errorf("%s is a directory", path)
	}
	mfs.files[path] = append([]byte(nil), data...)

	// Automatically create parent directories
	dir := filepath.Dir(path)
	for dir != "." && dir != "/" && dir != "" {
		mfs.dirs[dir] = true
		dir = filepath.Dir(dir)
	}

	return nil
}

func (mfs *MockFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if mfs.dirs[path] {
		return &FileInfo{
			Path:    path,
			Mode:    os.ModeDir | 0o755,
			ModTime: time.Now(),
			IsDir:   true,
		}, nil
	}

	data, ok := mfs.files[path]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	return &FileInfo{
		Path:    path,
		Size:    int64(len(data)),
		Mode:    defaultFileMode,
		ModTime: time.Now(),
	}, nil
}

func (mfs *MockFS) Exists(ctx context.Context, path string) (bool, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if _, ok := mfs.files[path]; ok {
		return true, nil
	}
	return mfs.dirs[path], nil
}

func (mfs *MockFS) Delete(ctx context.Context, path string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	if _, ok := mfs.files[path]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}
	delete(mfs.files, path)
	return nil
}

func (mfs *MockFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	for dir := path; dir != "." && dir != "/" && dir != ""; dir = filepath.Dir(dir) {
		mfs.dirs[dir] = true
	}
	return nil
}

// Files returns the sorted paths of all files in the mock.
func (mfs *MockFS) Files() []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	paths := make([]string, 0, len(mfs.files))
	for p := range mfs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
