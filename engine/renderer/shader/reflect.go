package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies a programmable pipeline stage.
type Stage int

const (
	// StageVertex is the vertex stage, marked with @vertex.
	StageVertex Stage = iota

	// StageFragment is the fragment stage, marked with @fragment.
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

var (
	// entryPointRegex captures the stage attribute and the function name that follows it
	entryPointRegex = regexp.MustCompile(`(?s)@(vertex|fragment)\b.*?\bfn\s+(\w+)`)

	// bindingRegex captures the attribute run, optional address space, variable name and type from
	// @group(0) @binding(0) var<uniform> camera: Camera; with the attributes in any order
	bindingRegex = regexp.MustCompile(`((?:@\w+\s*\([^)]*\)\s*)+)var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// groupAttrRegex and bindingAttrRegex pick the indices out of a binding's attribute run
	groupAttrRegex   = regexp.MustCompile(`@group\s*\(\s*(\d+)\s*\)`)
	bindingAttrRegex = regexp.MustCompile(`@binding\s*\(\s*(\d+)\s*\)`)

	// structRegex captures the name and body of a struct declaration
	structRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex captures the name and type of a struct member, skipping leading attributes
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
)

// typeLayout is the host-shareable size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

var primitiveLayouts = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"bool": {4, 4},

	"vec2<f32>": {8, 8}, "vec2f": {8, 8},
	"vec2<u32>": {8, 8}, "vec2u": {8, 8},
	"vec2<i32>": {8, 8}, "vec2i": {8, 8},
	"vec3<f32>": {12, 16}, "vec3f": {12, 16},
	"vec3<u32>": {12, 16}, "vec3u": {12, 16},
	"vec3<i32>": {12, 16}, "vec3i": {12, 16},
	"vec4<f32>": {16, 16}, "vec4f": {16, 16},
	"vec4<u32>": {16, 16}, "vec4u": {16, 16},
	"vec4<i32>": {16, 16}, "vec4i": {16, 16},

	"mat3x3<f32>": {48, 16}, "mat3x3f": {48, 16},
	"mat4x4<f32>": {64, 16}, "mat4x4f": {64, 16},
}

var textureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_2d":       wgpu.TextureViewDimension2D,
	"texture_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_3d":       wgpu.TextureViewDimension3D,
	"texture_cube":     wgpu.TextureViewDimensionCube,
}

var textureSampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

// reflection is the interface of a WGSL module recovered from its source text.
type reflection struct {
	entryPoints map[Stage]string
	layouts     []wgpu.BindGroupLayoutDescriptor
	bindings    map[string][2]uint32
	structs     map[string]typeLayout
}

// reflectSource scans WGSL source for entry points, resource bindings and struct layouts.
// Every binding is made visible to both the vertex and the fragment stage.
//
// Parameters:
//   - label: the label prefix for generated bind group layout descriptors
//   - source: the post-include WGSL source
//
// Returns:
//   - *reflection: the recovered interface
func reflectSource(label, source string) *reflection {
	cleaned := stripComments(source)
	r := &reflection{
		entryPoints: make(map[Stage]string),
		bindings:    make(map[string][2]uint32),
		structs:     make(map[string]typeLayout),
	}

	for _, m := range entryPointRegex.FindAllStringSubmatch(cleaned, -1) {
		stage := StageVertex
		if m[1] == "fragment" {
			stage = StageFragment
		}
		if _, ok := r.entryPoints[stage]; !ok {
			r.entryPoints[stage] = m[2]
		}
	}

	bodies := make(map[string]string)
	var order []string
	for _, m := range structRegex.FindAllStringSubmatch(cleaned, -1) {
		bodies[m[1]] = m[2]
		order = append(order, m[1])
	}
	for _, name := range order {
		r.structLayout(name, bodies, map[string]bool{})
	}

	groups := make(map[uint32][]wgpu.BindGroupLayoutEntry)
	maxGroup := -1
	for _, m := range bindingRegex.FindAllStringSubmatch(cleaned, -1) {
		g := groupAttrRegex.FindStringSubmatch(m[1])
		b := bindingAttrRegex.FindStringSubmatch(m[1])
		if g == nil || b == nil {
			continue
		}
		group, _ := strconv.ParseUint(g[1], 10, 32)
		binding, _ := strconv.ParseUint(b[1], 10, 32)
		entry := r.classify(uint32(binding), strings.TrimSpace(m[2]), strings.TrimSpace(m[4]))
		groups[uint32(group)] = insertSorted(groups[uint32(group)], entry)
		r.bindings[m[3]] = [2]uint32{uint32(group), uint32(binding)}
		maxGroup = max(maxGroup, int(group))
	}

	r.layouts = make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	for g := range r.layouts {
		r.layouts[g] = wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s Group %d", label, g),
			Entries: groups[uint32(g)],
		}
	}
	return r
}

func insertSorted(entries []wgpu.BindGroupLayoutEntry, e wgpu.BindGroupLayoutEntry) []wgpu.BindGroupLayoutEntry {
	i := len(entries)
	for i > 0 && entries[i-1].Binding > e.Binding {
		i--
	}
	entries = append(entries, wgpu.BindGroupLayoutEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

func (r *reflection) classify(binding uint32, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(typeName, "texture_"):
		base, param, _ := strings.Cut(typeName, "<")
		entry.Texture.ViewDimension = textureDimensions[base]
		entry.Texture.SampleType = textureSampleTypes[strings.TrimSpace(strings.TrimSuffix(param, ">"))]
	}

	if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
		if l, ok := r.layoutOf(typeName); ok {
			entry.Buffer.MinBindingSize = l.size
		}
	}
	return entry
}

// layoutOf resolves primitives, fixed-size arrays and structs already laid out.
func (r *reflection) layoutOf(typeName string) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := r.structs[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	elemType, countStr, sized := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
	if !sized {
		return typeLayout{}, false
	}
	elem, ok := r.layoutOf(strings.TrimSpace(elemType))
	if !ok {
		return typeLayout{}, false
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{size: count * roundUp(elem.align, elem.size), align: elem.align}, true
}

func (r *reflection) structLayout(name string, bodies map[string]string, visiting map[string]bool) (typeLayout, bool) {
	if l, ok := r.structs[name]; ok {
		return l, true
	}
	body, ok := bodies[name]
	if !ok || visiting[name] {
		return typeLayout{}, false
	}
	visiting[name] = true

	var offset, align uint64 = 0, 1
	for _, field := range splitFields(body) {
		m := fieldRegex.FindStringSubmatch(field)
		if m == nil {
			continue
		}
		if strings.Contains(field, "@builtin") {
			continue
		}
		typeName := strings.TrimSpace(m[2])
		l, ok := r.layoutOf(typeName)
		if !ok {
			base := strings.TrimSuffix(strings.TrimPrefix(typeName, "array<"), ">")
			base, _, _ = strings.Cut(base, ",")
			if _, ok := r.structLayout(strings.TrimSpace(base), bodies, visiting); !ok {
				return typeLayout{}, false
			}
			if l, ok = r.layoutOf(typeName); !ok {
				return typeLayout{}, false
			}
		}
		offset = roundUp(l.align, offset) + l.size
		align = max(align, l.align)
	}

	l := typeLayout{size: roundUp(align, offset), align: align}
	r.structs[name] = l
	return l, true
}

func roundUp(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// splitFields splits a struct body at commas outside angle brackets, so array<T, N> stays whole.
func splitFields(body string) []string {
	var fields []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				fields = append(fields, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(body[start:]); last != "" {
		fields = append(fields, last)
	}
	return fields
}

// stripComments removes // line comments and nested /* */ block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
