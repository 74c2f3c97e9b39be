package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
)

// includeRegex matches #include <path> and #include "path" on a line of their own.
var includeRegex = regexp.MustCompile(`^\s*#include\s+(?:<([^>]+)>|"([^"]+)")\s*$`)

// builtinIncludes are served from engine struct definitions when no file with the name exists.
var builtinIncludes = map[string]string{
	"oxy/camera.wgsl":  camera.CameraUniformSource,
	"oxy/objects.wgsl": scene.ObjectsUniformSource,
}

// IncludeCycleError reports an #include chain that leads back to a file already being expanded.
type IncludeCycleError struct {
	// Chain lists the files from the first occurrence of the repeated file to its repetition.
	Chain []string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("shader include cycle: %s", strings.Join(e.Chain, " -> "))
}

// includeResolver expands #include directives for one program load.
type includeResolver struct {
	read     func(path string) ([]byte, error)
	stack    []string
	included map[string]bool
	deps     []string
}

func newIncludeResolver(read func(path string) ([]byte, error)) *includeResolver {
	return &includeResolver{
		read:     read,
		included: make(map[string]bool),
	}
}

// resolve reads path and returns its source with every include expanded recursively.
// Each file is expanded at most once per program; later includes of the same file produce nothing.
//
// Parameters:
//   - path: the root file of the program, relative to the cache root
//
// Returns:
//   - string: the expanded source
//   - []string: the included files in first-include order, excluding path itself. On failure these are
//     the files reached before the error, including the one that failed to read
//   - error: a read error, or an *IncludeCycleError
func (r *includeResolver) resolve(path string) (string, []string, error) {
	src, err := r.read(path)
	if err != nil {
		return "", nil, err
	}
	out, err := r.expand(filepath.Clean(path), string(src))
	return out, r.deps, err
}

func (r *includeResolver) expand(path, source string) (string, error) {
	r.stack = append(r.stack, path)
	r.included[path] = true
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for n, line := range lines {
		m := includeRegex.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		name := m[1] + m[2]
		target := filepath.Clean(filepath.Join(filepath.Dir(path), name))

		if i := slices.Index(r.stack, target); i >= 0 {
			chain := append(slices.Clone(r.stack[i:]), target)
			return "", &IncludeCycleError{Chain: chain}
		}
		if r.included[target] || r.included[name] {
			continue
		}

		data, err := r.read(target)
		if err != nil {
			builtin, ok := builtinIncludes[name]
			if !ok || !errors.Is(err, fs.ErrNotExist) {
				r.deps = append(r.deps, target)
				return "", fmt.Errorf("%s:%d: include %q: %w", path, n+1, name, err)
			}
			r.included[name] = true
			out = append(out, builtin)
			continue
		}

		r.deps = append(r.deps, target)
		expanded, err := r.expand(target, string(data))
		if err != nil {
			return "", err
		}
		out = append(out, expanded)
	}
	return strings.Join(out, "\n"), nil
}
