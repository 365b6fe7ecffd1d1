package modules

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrModuleNotFound is returned when no resolver finds a module.
var ErrModuleNotFound = errors.New("module not found")

var (
	moduleExtensions = []string{".js", ".mjs", ".cjs"}
	moduleIndexFiles = []string{"index.js", "index.mjs"}
)

// modulePath normalizes a stored module path to fs.FS form: slash
// separated, without a leading "/" or "./".
func modulePath(p string) string {
	return path.Clean(strings.TrimPrefix(p, "/"))
}

// targetPath computes the path a specifier names. Relative specifiers are
// joined with the directory of fromKey, absolute ones are taken from the
// resolver root and bare ones are used as given.
func targetPath(specifier, fromKey string) (string, error) {
	var target string
	switch {
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		if fromKey == "" {
			if !strings.HasPrefix(specifier, "./") {
				return "", fmt.Errorf("relative import %s requires a referencing module", specifier)
			}
			target = specifier
		} else {
			target = path.Join(path.Dir(fromKey), specifier)
		}
	default:
		target = specifier
	}

	target = modulePath(target)
	if target == ".." || strings.HasPrefix(target, "../") {
		return "", fmt.Errorf("import %s escapes the module root", specifier)
	}
	return target, nil
}

// probe tries target as a file, then with each module extension, then as
// a directory holding an index file.
func probe(target string, isFile func(string) bool) (string, bool) {
	if isFile(target) {
		return target, true
	}
	for _, ext := range moduleExtensions {
		if isFile(target + ext) {
			return target + ext, true
		}
	}
	for _, index := range moduleIndexFiles {
		p := path.Join(target, index)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// ResolverChain tries its resolvers in priority order and returns the
// first successful resolution.
type ResolverChain struct {
	resolvers []ModuleResolver
}

func NewResolverChain(resolvers ...ModuleResolver) *ResolverChain {
	c := &ResolverChain{}
	for _, r := range resolvers {
		c.Add(r)
	}
	return c
}

// Add inserts r, keeping resolvers ordered by priority. Resolvers of equal
// priority keep the order they were added in.
func (c *ResolverChain) Add(r ModuleResolver) {
	c.resolvers = append(c.resolvers, r)
	sort.SliceStable(c.resolvers, func(i, j int) bool {
		return c.resolvers[i].Priority() < c.resolvers[j].Priority()
	})
}

func (c *ResolverChain) Name() string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.Name()
	}
	return "Chain(" + strings.Join(names, ",") + ")"
}

func (c *ResolverChain) CanResolve(specifier string) bool {
	for _, r := range c.resolvers {
		if r.CanResolve(specifier) {
			return true
		}
	}
	return false
}

func (c *ResolverChain) Priority() int { return 0 }

// Resolve asks every resolver in turn. CanResolve is not consulted: it
// cannot see fromKey, so it rejects relative specifiers that only resolve
// against a referencing module.
func (c *ResolverChain) Resolve(specifier string, fromKey string) (*ResolvedModule, error) {
	var errs []error
	for _, r := range c.resolvers {
		resolved, err := r.Resolve(specifier, fromKey)
		if err == nil {
			return resolved, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s (no resolvers)", ErrModuleNotFound, specifier)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrModuleNotFound, specifier, errors.Join(errs...))
}
