package pipeline

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexStage sets the vertex module, its entry point and its vertex buffer layouts.
// The module is borrowed: the pipeline never releases it.
//
// Parameters:
//   - module: the compiled vertex module
//   - entryPoint: the vertex entry point, "vs_main" when empty
//   - buffers: the vertex buffer layouts the module consumes
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex stage for this pipeline
func WithVertexStage(module renderer.ShaderModule, entryPoint string, buffers []wgpu.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexModule = module
		if entryPoint != "" {
			p.vertexEntryPoint = entryPoint
		}
		p.vertexBuffers = buffers
	}
}

// WithProgram sets the fragment program for this pipeline.
//
// Parameters:
//   - prog: the program providing the @fragment entry point and the bind group layouts
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment program for this pipeline
func WithProgram(prog shader.Program) PipelineBuilderOption {
	return func(p *pipeline) {
		p.program = prog
	}
}

// WithTargetFormat sets the format of the single color target.
//
// Parameters:
//   - format: the color target format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target format for this pipeline
func WithTargetFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targetFormat = format
	}
}

// WithBlendState sets the blend state for this pipeline. A nil state disables blending.
//
// Parameters:
//   - blendState: the blend state to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend state for this pipeline
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = blendState
	}
}
