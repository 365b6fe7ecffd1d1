package modules

import (
	"sort"
	"strings"
	"sync"

	"github.com/dghubble/trie"
	"golang.org/x/text/unicode/norm"
)

// registryEntry is the registry's view of one module key
type registryEntry struct {
	key    string
	state  ModuleState
	record *Record
	err    error
}

// Registry owns the analyzed records of a module graph, one per module key.
// Keys are canonicalized to NFC so visually identical keys share an entry.
// It is safe for concurrent use.
type Registry struct {
	modules *trie.PathTrie // Map of canonical key -> *registryEntry
	size    int
	mutex   sync.Mutex
	stats   RegistryStats
}

// NewRegistry creates a new module registry
func NewRegistry() *Registry {
	return &Registry{modules: trie.NewPathTrie()}
}

// CanonicalKey returns the form keys are stored under.
func CanonicalKey(key string) string {
	return norm.NFC.String(key)
}

func (r *Registry) entry(key string) *registryEntry {
	e, _ := r.modules.Get(key).(*registryEntry)
	return e
}

// put stores e, keeping the module count current (called with lock held)
func (r *Registry) put(e *registryEntry) {
	if old := r.entry(e.key); old != nil {
		r.forget(old)
	} else {
		r.size++
	}
	switch e.state {
	case ModuleAnalyzed:
		r.stats.AnalyzedModules++
	case ModuleError:
		r.stats.FailedModules++
	}
	r.stats.TotalModules = r.size
	r.modules.Put(e.key, e)
}

// forget drops the statistics contributed by e (called with lock held)
func (r *Registry) forget(e *registryEntry) {
	switch e.state {
	case ModuleAnalyzed:
		r.stats.AnalyzedModules--
	case ModuleError:
		r.stats.FailedModules--
	}
}

// Get retrieves the record stored under key, or nil
func (r *Registry) Get(key string) *Record {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if e := r.entry(key); e != nil && e.record != nil {
		r.stats.CacheHits++
		return e.record
	}
	r.stats.CacheMisses++
	return nil
}

// Set stores an analyzed record under key, replacing any previous entry
func (r *Registry) Set(key string, record *Record) {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.put(&registryEntry{key: key, state: ModuleAnalyzed, record: record})
}

// SetError records that analysis of key failed
func (r *Registry) SetError(key string, err error) {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.put(&registryEntry{key: key, state: ModuleError, err: err})
}

// UpdateState moves key to an in-progress state, creating the entry if
// needed. Finished states are set through Set and SetError.
func (r *Registry) UpdateState(key string, state ModuleState) {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e := r.entry(key)
	if e == nil {
		r.put(&registryEntry{key: key, state: state})
		return
	}
	r.forget(e)
	e.state = state
	e.record = nil
	e.err = nil
}

// State returns the state of key and the error of a failed analysis
func (r *Registry) State(key string) (ModuleState, error) {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e := r.entry(key)
	if e == nil {
		return ModuleUnknown, nil
	}
	return e.state, e.err
}

// Remove removes a module, reporting whether it was present
func (r *Registry) Remove(key string) bool {
	key = CanonicalKey(key)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e := r.entry(key)
	if e == nil {
		return false
	}
	r.forget(e)
	r.modules.Delete(key)
	r.size--
	r.stats.TotalModules = r.size
	return true
}

// Clear removes all modules and resets statistics
func (r *Registry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.modules = trie.NewPathTrie()
	r.size = 0
	r.stats = RegistryStats{}
}

// Keys returns all module keys in sorted order
func (r *Registry) Keys() []string {
	return r.Under("")
}

// Under returns the sorted keys that start with prefix, e.g. every module
// below a directory.
func (r *Registry) Under(prefix string) []string {
	prefix = CanonicalKey(prefix)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var keys []string
	r.modules.Walk(func(key string, value interface{}) error {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	sort.Strings(keys)
	return keys
}

// Size returns the number of modules
func (r *Registry) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.size
}

// GetStats returns current registry statistics
func (r *Registry) GetStats() RegistryStats {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.stats
}

// GetDependents returns the sorted keys of analyzed modules that request
// the given module
func (r *Registry) GetDependents(request string) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var dependents []string
	r.modules.Walk(func(key string, value interface{}) error {
		e := value.(*registryEntry)
		if e.record == nil {
			return nil
		}
		for _, dep := range e.record.requestedModules {
			if dep == request {
				dependents = append(dependents, key)
				break
			}
		}
		return nil
	})
	sort.Strings(dependents)
	return dependents
}
