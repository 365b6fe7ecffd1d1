package modules

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"esmod/pkg/source"
)

// MemoryResolver resolves modules from an in-memory store. Its modules are
// also exposed as a read-only fs.FS through FS.
type MemoryResolver struct {
	name     string                   // Human-readable name
	modules  map[string]*MemoryModule // Map of module path -> module
	mutex    sync.RWMutex             // Protects concurrent access
	priority int                      // Resolution priority
}

// MemoryModule represents a module stored in memory
type MemoryModule struct {
	Path     string    // Module path
	Content  string    // Module source content
	Created  time.Time // When the module was created
	Modified time.Time // When the module was last modified
}

// NewMemoryResolver creates a new memory-based module resolver
func NewMemoryResolver(name string) *MemoryResolver {
	if name == "" {
		name = "Memory"
	}
	return &MemoryResolver{
		name:     name,
		modules:  make(map[string]*MemoryModule),
		priority: 50, // Higher priority than file system
	}
}

func (r *MemoryResolver) Name() string  { return r.name }
func (r *MemoryResolver) Priority() int { return r.priority }

// SetPriority sets the resolver priority
func (r *MemoryResolver) SetPriority(priority int) {
	r.priority = priority
}

// CanResolve returns true if the specifier names a stored module
func (r *MemoryResolver) CanResolve(specifier string) bool {
	_, _, err := r.findModule(specifier, "")
	return err == nil
}

// Resolve resolves a module specifier to a stored module
func (r *MemoryResolver) Resolve(specifier string, fromKey string) (*ResolvedModule, error) {
	key, module, err := r.findModule(specifier, fromKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", specifier, err)
	}
	return &ResolvedModule{
		Specifier: specifier,
		Key:       key,
		Source:    source.NewSourceFile(key, key, module.Content),
		Resolver:  r.name,
	}, nil
}

// findModule finds a module by exact path, with extensions, or as a
// directory index
func (r *MemoryResolver) findModule(specifier string, fromKey string) (string, *MemoryModule, error) {
	target, err := targetPath(specifier, fromKey)
	if err != nil {
		return "", nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	key, ok := probe(target, func(p string) bool {
		_, exists := r.modules[p]
		return exists
	})
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrModuleNotFound, target)
	}
	return key, r.modules[key], nil
}

// AddModule adds a module to the memory store
func (r *MemoryResolver) AddModule(p string, content string) {
	p = modulePath(p)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	r.modules[p] = &MemoryModule{
		Path:     p,
		Content:  content,
		Created:  now,
		Modified: now,
	}
}

// UpdateModule updates an existing module's content
func (r *MemoryResolver) UpdateModule(p string, content string) error {
	p = modulePath(p)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	module, exists := r.modules[p]
	if !exists {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, p)
	}
	module.Content = content
	module.Modified = time.Now()
	return nil
}

// RemoveModule removes a module from the memory store
func (r *MemoryResolver) RemoveModule(p string) {
	p = modulePath(p)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.modules, p)
}

// ListModules returns all module paths in sorted order
func (r *MemoryResolver) ListModules() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	paths := make([]string, 0, len(r.modules))
	for p := range r.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Glob returns the sorted module paths matching a doublestar pattern
func (r *MemoryResolver) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var matches []string
	for _, p := range r.ListModules() {
		if doublestar.MatchUnvalidated(pattern, p) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// Clear removes all modules from the store
func (r *MemoryResolver) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.modules = make(map[string]*MemoryModule)
}

// GetModule returns a module by path
func (r *MemoryResolver) GetModule(p string) *MemoryModule {
	p = modulePath(p)
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.modules[p]
}

// FS returns a read-only file system view of the stored modules
func (r *MemoryResolver) FS() ModuleFS {
	return &memoryFS{resolver: r}
}

// memoryFile implements fs.File for memory modules
type memoryFile struct {
	name   string
	reader io.Reader
	module *MemoryModule
	closed bool
}

func (mf *memoryFile) Stat() (fs.FileInfo, error) {
	return &memoryFileInfo{
		name:    path.Base(mf.name),
		size:    int64(len(mf.module.Content)),
		modTime: mf.module.Modified,
	}, nil
}

func (mf *memoryFile) Read(p []byte) (int, error) {
	if mf.closed {
		return 0, fs.ErrClosed
	}
	return mf.reader.Read(p)
}

func (mf *memoryFile) Close() error {
	mf.closed = true
	return nil
}

// memoryDir implements fs.ReadDirFile for directories implied by module
// paths
type memoryDir struct {
	name    string
	entries []fs.DirEntry
	offset  int
}

func (md *memoryDir) Stat() (fs.FileInfo, error) {
	return &memoryFileInfo{name: path.Base(md.name), dir: true}, nil
}

func (md *memoryDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: md.name, Err: fs.ErrInvalid}
}

func (md *memoryDir) Close() error { return nil }

func (md *memoryDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := md.entries[md.offset:]
	if n <= 0 {
		md.offset = len(md.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	md.offset += n
	return rest[:n], nil
}

// memoryFileInfo implements fs.FileInfo for memory files and directories
type memoryFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (mfi *memoryFileInfo) Name() string       { return mfi.name }
func (mfi *memoryFileInfo) Size() int64        { return mfi.size }
func (mfi *memoryFileInfo) ModTime() time.Time { return mfi.modTime }
func (mfi *memoryFileInfo) IsDir() bool        { return mfi.dir }
func (mfi *memoryFileInfo) Sys() interface{}   { return nil }

func (mfi *memoryFileInfo) Mode() fs.FileMode {
	if mfi.dir {
		return fs.ModeDir | 0555
	}
	return 0444
}

// memoryFS implements ModuleFS and fs.ReadDirFS over a MemoryResolver
type memoryFS struct {
	resolver *MemoryResolver
}

func (mfs *memoryFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	mfs.resolver.mutex.RLock()
	defer mfs.resolver.mutex.RUnlock()

	if module, exists := mfs.resolver.modules[name]; exists {
		return &memoryFile{
			name:   name,
			reader: strings.NewReader(module.Content),
			module: module,
		}, nil
	}
	if entries, ok := mfs.dirEntries(name); ok {
		return &memoryDir{name: name, entries: entries}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func (mfs *memoryFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	mfs.resolver.mutex.RLock()
	defer mfs.resolver.mutex.RUnlock()

	module, exists := mfs.resolver.modules[name]
	if !exists {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	return []byte(module.Content), nil
}

func (mfs *memoryFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	mfs.resolver.mutex.RLock()
	defer mfs.resolver.mutex.RUnlock()

	entries, ok := mfs.dirEntries(name)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return entries, nil
}

// dirEntries lists the immediate children of dir in name order (called
// with the resolver lock held)
func (mfs *memoryFS) dirEntries(dir string) ([]fs.DirEntry, bool) {
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}

	children := make(map[string]*memoryFileInfo)
	for p, module := range mfs.resolver.modules {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			children[rest[:i]] = &memoryFileInfo{name: rest[:i], dir: true}
			continue
		}
		children[rest] = &memoryFileInfo{name: rest, size: int64(len(module.Content)), modTime: module.Modified}
	}
	if len(children) == 0 && dir != "." {
		return nil, false
	}

	entries := make([]fs.DirEntry, 0, len(children))
	for _, info := range children {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, true
}

// AddTestModules adds a small module graph used by tests and the REPL's
// demo command
func (r *MemoryResolver) AddTestModules() {
	r.AddModule("test/module-a.js", `
export function greet(name) {
    return "Hello, " + name + "!";
}

export const VERSION = "1.0.0";
`)

	r.AddModule("test/module-b.js", `
import { greet, VERSION } from "./module-a";

export function welcome(name) {
    return greet(name) + " Version: " + VERSION;
}
export { greet };
`)

	r.AddModule("test/utils/index.js", `
export * from "./helper";
export { default as config } from "./config";
`)

	r.AddModule("test/utils/helper.js", `
export function isString(value) {
    return typeof value === "string";
}

export function isNumber(value) {
    return typeof value === "number";
}
`)

	r.AddModule("test/utils/config.js", `
module.exports = {
    debug: false,
    apiUrl: "https://api.example.com",
    timeout: 5000,
};
`)
}
