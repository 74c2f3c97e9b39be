package shader

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
)

// cache is the implementation of the Cache interface.
type cache struct {
	mu       *sync.Mutex
	root     string
	compiler Compiler

	// programs is keyed by the cleaned program path relative to root
	programs map[string]*program
	order    []string
	// failed holds the files reached by the latest failed load of a path, so fixing them triggers a reload
	failed map[string][]string
}

// Cache loads WGSL programs from disk, resolves their includes and validates them through a Compiler.
// Programs that fail to load are replaced by the Fallback program so rendering never stops on a bad shader.
type Cache interface {
	// Load returns the cached program for path, loading it on first use.
	// A read, include or compile failure logs a warning and yields the Fallback program.
	//
	// Parameters:
	//   - path: the program file, relative to the cache root
	//
	// Returns:
	//   - Program: the loaded program or the fallback
	Load(path string) Program

	// Reload reads path again.
	// On failure the previously loaded program is kept and returned together with the error.
	// A path that was never loaded behaves like Load.
	//
	// Parameters:
	//   - path: the program file, relative to the cache root
	//
	// Returns:
	//   - Program: the current program for path
	//   - bool: true if the new source compiled and its identity differs from the previous program
	//   - error: the read, include or compile error
	Reload(path string) (Program, bool, error)

	// ReloadAll reloads every program in load order.
	//
	// Returns:
	//   - []string: the paths whose programs changed
	ReloadAll() []string

	// Get returns a loaded program without loading it.
	Get(path string) (Program, bool)

	// Paths returns every loaded program path in load order.
	Paths() []string

	// Dependents returns the loaded program paths that are file itself or include it, directly or transitively.
	//
	// Parameters:
	//   - file: a program or include file, relative to the root or absolute
	//
	// Returns:
	//   - []string: program paths in load order
	Dependents(file string) []string

	// Files returns the absolute paths of every program file and every file they include.
	Files() []string

	// Root returns the directory program paths are resolved against.
	Root() string
}

var _ Cache = &cache{}

// NewCache creates a Cache rooted at the working directory that validates with NagaCompiler.
//
// Parameters:
//   - options: CacheBuilderOption functions overriding the root or the compiler
//
// Returns:
//   - Cache: the empty cache
func NewCache(options ...CacheBuilderOption) Cache {
	c := &cache{
		mu:       &sync.Mutex{},
		compiler: NagaCompiler{},
		programs: make(map[string]*program),
		failed:   make(map[string][]string),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cache) Load(path string) Program {
	key := c.key(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.programs[key]; ok {
		return p
	}
	p, deps, err := c.compile(key)
	if err != nil {
		logging.LogWarnErr(err, "Shader at path %v failed to load, substituting fallback shader.", key)
		p = Fallback().(*program)
	}
	c.store(key, p, deps, err)
	return p
}

func (c *cache) Reload(path string) (Program, bool, error) {
	key := c.key(path)

	c.mu.Lock()
	prev, loaded := c.programs[key]
	c.mu.Unlock()
	if !loaded {
		p := c.Load(key)
		return p, !p.IsFallback(), nil
	}

	p, deps, err := c.compile(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.LogWarnErr(err, "Shader at path %v failed to reload, keeping the previous program.", key)
		c.store(key, prev, deps, err)
		return prev, false, err
	}
	c.store(key, p, deps, nil)
	return p, p.Identity() != prev.Identity(), nil
}

func (c *cache) ReloadAll() []string {
	var changed []string
	for _, path := range c.Paths() {
		if _, ok, _ := c.Reload(path); ok {
			changed = append(changed, path)
		}
	}
	return changed
}

func (c *cache) Get(path string) (Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.programs[c.key(path)]
	return p, ok
}

func (c *cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

func (c *cache) Dependents(file string) []string {
	key := c.key(file)

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, path := range c.order {
		if path == key || slices.Contains(c.deps(path), key) {
			out = append(out, path)
		}
	}
	return out
}

func (c *cache) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	add := func(rel string) {
		abs, err := filepath.Abs(filepath.Join(c.root, rel))
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}
	for _, path := range c.order {
		add(path)
		for _, dep := range c.deps(path) {
			add(dep)
		}
	}
	return out
}

func (c *cache) Root() string {
	return c.root
}

// compile reads, expands and validates the program at key. It does not touch the program map.
// The include list is returned on failure too.
func (c *cache) compile(key string) (*program, []string, error) {
	source, deps, err := newIncludeResolver(c.read).resolve(key)
	if err != nil {
		return nil, deps, err
	}
	if err := c.compiler.Compile(key, source); err != nil {
		return nil, deps, err
	}
	return newProgram(programName(key), key, source, deps), deps, nil
}

// store installs p for key. loadErr is the error of the load that produced deps; when set, deps are
// kept beside the program until a later load of key succeeds. Caller must hold the mutex.
func (c *cache) store(key string, p *program, deps []string, loadErr error) {
	if _, ok := c.programs[key]; !ok {
		c.order = append(c.order, key)
	}
	c.programs[key] = p
	if loadErr != nil {
		c.failed[key] = deps
	} else {
		delete(c.failed, key)
	}
}

// deps returns the files the program at path includes, together with the files its latest failed load reached.
// Caller must hold the mutex.
func (c *cache) deps(path string) []string {
	out := slices.Clone(c.programs[path].deps)
	for _, dep := range c.failed[path] {
		if !slices.Contains(out, dep) {
			out = append(out, dep)
		}
	}
	return out
}

func (c *cache) read(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}
	return os.ReadFile(filepath.Join(c.root, path))
}

// key normalizes path to the form programs are stored under.
func (c *cache) key(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	root, err := filepath.Abs(c.root)
	if err != nil {
		return filepath.Clean(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Clean(path)
	}
	return rel
}
