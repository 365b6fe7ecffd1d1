package modules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"esmod/pkg/source"
)

// FileSystemResolver resolves relative and absolute module specifiers
// against an fs.FS. Module keys are fs.FS paths.
type FileSystemResolver struct {
	name     string   // Human-readable name
	fs       ModuleFS // File system to resolve from
	priority int      // Resolution priority
	baseDir  string   // OS directory behind fs, if any
}

// NewFileSystemResolver creates a resolver reading from filesystem
func NewFileSystemResolver(filesystem fs.FS) *FileSystemResolver {
	moduleFS, ok := filesystem.(ModuleFS)
	if !ok {
		moduleFS = &fsWrapper{filesystem}
	}
	return &FileSystemResolver{
		name:     "FileSystem",
		fs:       moduleFS,
		priority: 100, // Lower priority than specialized resolvers
	}
}

// NewOSFileSystemResolver creates a resolver rooted at an OS directory
func NewOSFileSystemResolver(baseDir string) *FileSystemResolver {
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		absBaseDir = baseDir
	}
	r := NewFileSystemResolver(os.DirFS(absBaseDir))
	r.name = "OSFileSystem"
	r.baseDir = absBaseDir
	return r
}

func (r *FileSystemResolver) Name() string  { return r.name }
func (r *FileSystemResolver) Priority() int { return r.priority }
func (r *FileSystemResolver) FS() ModuleFS  { return r.fs }

// CanResolve accepts relative and root-absolute specifiers
func (r *FileSystemResolver) CanResolve(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/")
}

// Resolve resolves a module specifier to a concrete module
func (r *FileSystemResolver) Resolve(specifier string, fromKey string) (*ResolvedModule, error) {
	target, err := targetPath(specifier, fromKey)
	if err != nil {
		return nil, err
	}
	key, ok := probe(target, r.isFile)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, target)
	}

	content, err := r.fs.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	src := source.NewSourceFile(key, key, string(content))
	if r.baseDir != "" {
		src.Path = filepath.Join(r.baseDir, filepath.FromSlash(key))
		src.URL = "file://" + filepath.ToSlash(src.Path)
	}
	return &ResolvedModule{
		Specifier: specifier,
		Key:       key,
		Source:    src,
		Resolver:  r.name,
	}, nil
}

// isFile checks if a path exists and is a file (not a directory)
func (r *FileSystemResolver) isFile(path string) bool {
	info, err := fs.Stat(r.fs, path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// fsWrapper adds ReadFile to a plain fs.FS
type fsWrapper struct {
	fs.FS
}

func (w *fsWrapper) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(w.FS, name)
}
