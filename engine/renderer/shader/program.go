package shader

import (
	_ "embed"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// FallbackIdentity is the Identity of the fallback program.
const FallbackIdentity = "fallback.wgsl"

//go:embed assets/fallback.wgsl
var fallbackSource string

var (
	fallbackOnce    sync.Once
	fallbackProgram *program
)

// identityNamespace scopes content hashes of program sources.
var identityNamespace = uuid.MustParse("6f1d1e0a-3c55-4c1b-9a43-2f0f4b7a8e21")

// program is the implementation of the Program interface. It is immutable once created.
type program struct {
	name     string
	path     string
	source   string
	identity string
	fallback bool
	deps     []string
	refl     *reflection
}

// Program is a loaded, include-resolved and validated WGSL program.
type Program interface {
	// Name returns the program name, the file name without its extension.
	Name() string

	// Path returns the path the program was loaded from, or an empty string for inline programs.
	Path() string

	// Source returns the WGSL source with every #include expanded.
	Source() string

	// Identity returns a content hash of Source, or FallbackIdentity for the fallback program.
	// Two programs with equal identities are interchangeable.
	Identity() string

	// IsFallback reports whether this is the fallback program.
	IsFallback() bool

	// Dependencies returns the files included by the program, directly or transitively, in first-include order.
	Dependencies() []string

	// EntryPoint returns the name of the first function marked with the stage attribute.
	//
	// Parameters:
	//   - stage: the pipeline stage
	//
	// Returns:
	//   - string: the entry point name, or an empty string if the program has none for stage
	EntryPoint(stage Stage) string

	// BindGroupLayouts returns the bind group layouts declared by the program indexed by group.
	// Group indices the program skips yield descriptors without entries.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutDescriptor: one descriptor per group up to the highest declared group
	BindGroupLayouts() []wgpu.BindGroupLayoutDescriptor

	// Binding resolves a resource variable name to its group and binding indices.
	//
	// Parameters:
	//   - name: the WGSL variable name
	//
	// Returns:
	//   - group, binding: the indices from the @group and @binding attributes
	//   - bool: false if the program declares no such resource
	Binding(name string) (group, binding uint32, ok bool)

	// StructSize returns the host-shareable size of a struct declared in the program.
	//
	// Parameters:
	//   - name: the struct name
	//
	// Returns:
	//   - uint64: the size in bytes, rounded to the struct alignment
	//   - bool: false if the struct is unknown or its layout could not be computed
	StructSize(name string) (uint64, bool)
}

var _ Program = &program{}

// Fallback returns the process-wide fallback program, a magenta checkerboard fragment shader.
//
// Returns:
//   - Program: the same instance on every call
func Fallback() Program {
	fallbackOnce.Do(func() {
		fallbackProgram = &program{
			name:     "fallback",
			source:   fallbackSource,
			identity: FallbackIdentity,
			fallback: true,
			refl:     reflectSource("fallback", fallbackSource),
		}
	})
	return fallbackProgram
}

// NewProgram creates a Program from source that needs no include resolution, such as embedded modules.
//
// Parameters:
//   - name: the program name
//   - source: the complete WGSL source
//
// Returns:
//   - Program: the program
func NewProgram(name, source string) Program {
	return newProgram(name, "", source, nil)
}

func newProgram(name, path, source string, deps []string) *program {
	return &program{
		name:     name,
		path:     path,
		source:   source,
		identity: uuid.NewSHA1(identityNamespace, []byte(source)).String(),
		deps:     deps,
		refl:     reflectSource(name, source),
	}
}

func programName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Path() string {
	return p.path
}

func (p *program) Source() string {
	return p.source
}

func (p *program) Identity() string {
	return p.identity
}

func (p *program) IsFallback() bool {
	return p.fallback
}

func (p *program) Dependencies() []string {
	out := make([]string, len(p.deps))
	copy(out, p.deps)
	return out
}

func (p *program) EntryPoint(stage Stage) string {
	return p.refl.entryPoints[stage]
}

func (p *program) BindGroupLayouts() []wgpu.BindGroupLayoutDescriptor {
	out := make([]wgpu.BindGroupLayoutDescriptor, len(p.refl.layouts))
	copy(out, p.refl.layouts)
	return out
}

func (p *program) Binding(name string) (uint32, uint32, bool) {
	b, ok := p.refl.bindings[name]
	return b[0], b[1], ok
}

func (p *program) StructSize(name string) (uint64, bool) {
	l, ok := p.refl.structs[name]
	return l.size, ok
}
