package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It pairs a shared vertex module with a fragment program and owns the GPU objects built from them.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used as the debug label of every GPU object it creates
	pipelineKey string

	// vertexModule is borrowed from the owner of the vertex stage and never released here
	vertexModule     renderer.ShaderModule
	vertexEntryPoint string
	vertexBuffers    []wgpu.VertexBufferLayout

	// program is the fragment program requested by the owner; built may differ when it falls back
	program shader.Program
	built   shader.Program

	targetFormat wgpu.TextureFormat
	blendState   *wgpu.BlendState

	// The following fields are GPU allocated resources, populated by Build and released by Release.

	fragmentModule renderer.ShaderModule
	layouts        []renderer.BindGroupLayout
	renderPipeline renderer.RenderPipeline
}

// Pipeline defines a single-target render pipeline over the fullscreen vertex stage.
// Its bind group layouts are reflected from the fragment program, so a program that declares
// no resources (such as the fallback) produces a pipeline without bind groups.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Program returns the fragment program the pipeline was last built with.
	// After a fallback build this is shader.Fallback(), not the requested program.
	//
	// Returns:
	//   - shader.Program: the built program, or the requested one if Build has not succeeded
	Program() shader.Program

	// IsFallback reports whether the last successful build used the fallback program.
	IsFallback() bool

	// Build creates the fragment module, the bind group layouts and the render pipeline.
	// If the requested program fails to build, the fallback program is built instead and a warning is logged.
	// Any GPU objects from an earlier build are released once the new ones exist.
	//
	// Parameters:
	//   - r: the renderer creating the GPU objects
	//
	// Returns:
	//   - error: an error if neither the program nor the fallback could be built
	Build(r renderer.Renderer) error

	// Layouts returns the bind group layouts of the built pipeline indexed by group.
	//
	// Returns:
	//   - []renderer.BindGroupLayout: the layouts, nil before Build
	Layouts() []renderer.BindGroupLayout

	// RenderPipeline returns the built GPU pipeline, or nil before Build.
	RenderPipeline() renderer.RenderPipeline

	TargetFormat() wgpu.TextureFormat
	BlendState() *wgpu.BlendState

	// Release releases the GPU objects created by Build.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. No GPU objects exist until Build is called.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:      pipelineKey,
		vertexEntryPoint: "vs_main",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.program == nil {
		p.program = shader.Fallback()
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Program() shader.Program {
	if p.built != nil {
		return p.built
	}
	return p.program
}

func (p *pipeline) IsFallback() bool {
	return p.Program().IsFallback()
}

func (p *pipeline) Layouts() []renderer.BindGroupLayout {
	return p.layouts
}

func (p *pipeline) RenderPipeline() renderer.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) TargetFormat() wgpu.TextureFormat {
	return p.targetFormat
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Build(r renderer.Renderer) error {
	if p.vertexModule == nil {
		return errors.New("pipeline: " + p.pipelineKey + " has no vertex module")
	}

	built, err := p.build(r, p.program)
	if err != nil && !p.program.IsFallback() {
		logging.LogWarnErr(err, "Pipeline %s failed to build with %s, rebuilding with the fallback shader.", p.pipelineKey, p.program.Name())
		built, err = p.build(r, shader.Fallback())
	}
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}

	p.Release()
	*p = *built
	return nil
}

// build creates a complete set of GPU objects for prog on a copy of p, releasing partial results on failure.
func (p *pipeline) build(r renderer.Renderer, prog shader.Program) (out *pipeline, err error) {
	next := *p
	next.built = prog
	next.fragmentModule, next.layouts, next.renderPipeline = nil, nil, nil
	defer func() {
		if err != nil {
			next.Release()
		}
	}()

	entry := prog.EntryPoint(shader.StageFragment)
	if entry == "" {
		return nil, fmt.Errorf("program %s has no @fragment entry point", prog.Name())
	}

	next.fragmentModule, err = r.CreateShaderModule(p.pipelineKey+" "+prog.Name(), prog.Source())
	if err != nil {
		return nil, err
	}

	for _, desc := range prog.BindGroupLayouts() {
		layout, err := r.CreateBindGroupLayout(desc)
		if err != nil {
			return nil, err
		}
		next.layouts = append(next.layouts, layout)
	}

	next.renderPipeline, err = r.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label:              p.pipelineKey,
		VertexModule:       p.vertexModule,
		VertexEntryPoint:   p.vertexEntryPoint,
		VertexBuffers:      p.vertexBuffers,
		FragmentModule:     next.fragmentModule,
		FragmentEntryPoint: entry,
		BindGroupLayouts:   next.layouts,
		TargetFormat:       p.targetFormat,
		Blend:              p.blendState,
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	for _, l := range p.layouts {
		l.Release()
	}
	p.layouts = nil
	if p.fragmentModule != nil {
		p.fragmentModule.Release()
		p.fragmentModule = nil
	}
}
