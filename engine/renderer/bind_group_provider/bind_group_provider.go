package bind_group_provider

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label prefixed to every bind group this provider creates.
	label string

	// The following resources are borrowed from their owners and bound by WGSL variable name. They are never released here.

	buffers      map[string]renderer.Buffer
	textureViews map[string]renderer.TextureView
	samplers     map[string]renderer.Sampler

	// bindGroups are the GPU bind groups created by Build, indexed by group. Owned by the provider.
	bindGroups []renderer.BindGroup
}

// BindGroupProvider collects the resources a pass binds, keyed by the WGSL variable names its programs use,
// and builds one bind group per group declared by a pipeline's program.
//
// Usage pattern:
//  1. The pass creates a provider and sets every resource any of its programs may declare
//  2. The pass calls Build with the pipeline it is about to draw with
//  3. The pass calls Bind inside the render pass before drawing
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// SetBuffer binds buf to the WGSL variable name.
	SetBuffer(name string, buf renderer.Buffer)

	// SetTextureView binds view to the WGSL variable name.
	SetTextureView(name string, view renderer.TextureView)

	// SetSampler binds s to the WGSL variable name.
	SetSampler(name string, s renderer.Sampler)

	// Build creates a bind group for every layout of p. Resources the program does not declare are ignored.
	// On failure the previously built bind groups are kept.
	//
	// Parameters:
	//   - r: the renderer creating the bind groups
	//   - p: a built pipeline
	//
	// Returns:
	//   - error: an error if the program declares a binding without a resource of the matching kind
	Build(r renderer.Renderer, p pipeline.Pipeline) error

	// BindGroups returns the built bind groups indexed by group.
	//
	// Returns:
	//   - []renderer.BindGroup: the bind groups, nil before Build
	BindGroups() []renderer.BindGroup

	// Bind sets every built bind group on pass.
	//
	// Parameters:
	//   - pass: the render pass being recorded
	Bind(pass renderer.RenderPassEncoder)

	// Release releases the bind groups created by Build.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider with the given options applied.
//
// Parameters:
//   - label: the debug label
//   - options: BindGroupProviderOption functions setting initial resources
//
// Returns:
//   - BindGroupProvider: the provider, with no bind groups until Build
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[string]renderer.Buffer),
		textureViews: make(map[string]renderer.TextureView),
		samplers:     make(map[string]renderer.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) SetBuffer(name string, buf renderer.Buffer) {
	p.buffers[name] = buf
}

func (p *bindGroupProvider) SetTextureView(name string, view renderer.TextureView) {
	p.textureViews[name] = view
}

func (p *bindGroupProvider) SetSampler(name string, s renderer.Sampler) {
	p.samplers[name] = s
}

func (p *bindGroupProvider) BindGroups() []renderer.BindGroup {
	return p.bindGroups
}

func (p *bindGroupProvider) Build(r renderer.Renderer, pl pipeline.Pipeline) error {
	prog := pl.Program()
	layouts := pl.Layouts()
	descs := prog.BindGroupLayouts()
	if len(descs) != len(layouts) {
		return fmt.Errorf("bind group %s: pipeline %s has %d layouts but its program declares %d groups", p.label, pl.PipelineKey(), len(layouts), len(descs))
	}

	// resolve every named resource the program declares to its group and binding
	slots := make(map[[2]uint32]renderer.BindGroupEntry)
	for _, name := range p.names() {
		group, binding, ok := prog.Binding(name)
		if !ok {
			continue
		}
		slots[[2]uint32{group, binding}] = renderer.BindGroupEntry{
			Binding:     binding,
			Buffer:      p.buffers[name],
			TextureView: p.textureViews[name],
			Sampler:     p.samplers[name],
		}
	}

	groups := make([]renderer.BindGroup, 0, len(descs))
	release := func() {
		for _, bg := range groups {
			bg.Release()
		}
	}
	for g, desc := range descs {
		entries := make([]renderer.BindGroupEntry, 0, len(desc.Entries))
		for _, le := range desc.Entries {
			entry, ok := slots[[2]uint32{uint32(g), le.Binding}]
			if !ok || !kindMatches(le, entry) {
				release()
				return fmt.Errorf("bind group %s: program %s binding (%d, %d) has no matching resource", p.label, prog.Name(), g, le.Binding)
			}
			entries = append(entries, entry)
		}
		bg, err := r.CreateBindGroup(renderer.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s Group %d", p.label, g),
			Layout:  layouts[g],
			Entries: entries,
		})
		if err != nil {
			release()
			return fmt.Errorf("bind group %s: %w", p.label, err)
		}
		groups = append(groups, bg)
	}

	p.Release()
	p.bindGroups = groups
	return nil
}

func (p *bindGroupProvider) Bind(pass renderer.RenderPassEncoder) {
	for i, bg := range p.bindGroups {
		pass.SetBindGroup(uint32(i), bg)
	}
}

func (p *bindGroupProvider) Release() {
	for _, bg := range p.bindGroups {
		bg.Release()
	}
	p.bindGroups = nil
}

func (p *bindGroupProvider) names() []string {
	seen := make(map[string]bool)
	for name := range p.buffers {
		seen[name] = true
	}
	for name := range p.textureViews {
		seen[name] = true
	}
	for name := range p.samplers {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// kindMatches reports whether entry carries the resource kind the layout entry expects.
func kindMatches(le wgpu.BindGroupLayoutEntry, entry renderer.BindGroupEntry) bool {
	switch {
	case le.Buffer.Type != wgpu.BufferBindingTypeUndefined:
		return entry.Buffer != nil
	case le.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		return entry.Sampler != nil
	default:
		return entry.TextureView != nil
	}
}
