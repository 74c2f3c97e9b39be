package pass

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-rt/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Names of the WGSL resource variables the passes bind.
const (
	BindingCamera              = "camera"
	BindingObjects             = "objects"
	BindingMipParams           = "mip_params"
	BindingSourceTexture       = "source_texture"
	BindingSourceSampler       = "source_sampler"
	BindingBloomTexture        = "bloom_texture"
	BindingAccumulationTexture = "accumulation_texture"
	BindingAccumulationSampler = "accumulation_sampler"
	BindingEnvironmentTexture  = "environment_texture"
	BindingEnvironmentSampler  = "environment_sampler"
)

// stage is one pipeline and the binding sets drawn with it.
type stage struct {
	pipeline pipeline.Pipeline
	bindings []bgp.BindGroupProvider
}

// draw records one render pass into target with the i-th binding set.
func (s *stage) draw(f Frame, quad *Quad, label string, target renderer.TextureView, clear wgpu.Color, i int) {
	rp := f.Encoder.BeginRenderPass(renderer.RenderPassDescriptor{Label: label, Target: target, ClearColor: clear})
	rp.SetPipeline(s.pipeline.RenderPipeline())
	s.bindings[i].Bind(rp)
	quad.Draw(rp)
	rp.End()
}

func (s *stage) release() {
	if s == nil {
		return
	}
	for _, b := range s.bindings {
		b.Release()
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
}

// buildStage builds the pipeline for the program at path and builds every binding set against it.
// When the program's bindings cannot be satisfied the stage is rebuilt with the fallback program.
func (b *base) buildStage(key, path string, format wgpu.TextureFormat, blend *wgpu.BlendState, bindings ...bgp.BindGroupProvider) (*stage, error) {
	prog := b.res.Cache.Load(path)
	s, err := b.tryStage(key, prog, format, blend, bindings)
	if err != nil && !prog.IsFallback() {
		logging.LogWarnErr(err, "Pass %s cannot bind %s, rebuilding with the fallback shader.", b.name, prog.Name())
		s, err = b.tryStage(key, shader.Fallback(), format, blend, bindings)
	}
	return s, err
}

func (b *base) tryStage(key string, prog shader.Program, format wgpu.TextureFormat, blend *wgpu.BlendState, bindings []bgp.BindGroupProvider) (*stage, error) {
	pl := pipeline.NewPipeline(key,
		pipeline.WithVertexStage(b.res.Quad.Module, "", b.res.Quad.Layouts),
		pipeline.WithProgram(prog),
		pipeline.WithTargetFormat(format),
		pipeline.WithBlendState(blend),
	)
	if err := pl.Build(b.res.Renderer); err != nil {
		return nil, err
	}
	s := &stage{pipeline: pl}
	for _, bg := range bindings {
		if err := bg.Build(b.res.Renderer, pl); err != nil {
			s.release()
			return nil, err
		}
		s.bindings = append(s.bindings, bg)
	}
	return s, nil
}
