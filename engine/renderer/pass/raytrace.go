package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-rt/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// raytraceColorUsage lets the color target be drawn, sampled downstream and copied into the accumulation texture.
const raytraceColorUsage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
	wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst

// raytrace draws the scene into its color target. The previous frame's color is copied into an
// accumulation texture before drawing so the program can blend against it.
type raytrace struct {
	base

	program string
	objects renderer.Buffer
	env     *texture.Texture

	accum renderer.Texture
	// accumView is created with accum and released with it
	accumView renderer.TextureView

	bundle *raytraceBundle
}

type raytraceBundle struct {
	sampler renderer.Sampler
	stage   *stage
}

func (b *raytraceBundle) release() {
	if b == nil {
		return
	}
	b.stage.release()
	b.sampler.Release()
}

var _ Pass = &raytrace{}

// NewRaytrace creates the raytrace pass. No GPU objects exist until Resize is called.
//
// Parameters:
//   - res: the shared resources
//   - objects: the objects uniform buffer
//   - env: the environment cubemap, borrowed from the texture registry
//   - program: the shader path of the raytrace program
//
// Returns:
//   - Pass: the pass
//   - error: an error if a required resource is missing
func NewRaytrace(res Resources, objects renderer.Buffer, env *texture.Texture, program string) (Pass, error) {
	if err := res.validate(); err != nil {
		return nil, err
	}
	if objects == nil {
		return nil, errors.New("pass: raytrace has no objects buffer")
	}
	if env == nil || !env.Cube {
		return nil, errors.New("pass: raytrace needs an environment cubemap")
	}
	return &raytrace{
		base:    base{name: "Raytrace", res: res},
		program: program,
		objects: objects,
		env:     env,
	}, nil
}

func (p *raytrace) Programs() []string {
	return []string{p.program}
}

func (p *raytrace) Resize(width, height uint32) error {
	return commitResize(p.PrepareResize(width, height, Target{}))
}

func (p *raytrace) PrepareResize(width, height uint32, _ Target) (Resizing, error) {
	color, err := p.newTarget("Raytrace Color", width, height, raytraceColorUsage)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	accum, err := p.newTarget("Raytrace Accumulation", width, height, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst)
	if err != nil {
		releaseTarget(color)
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	next, err := p.build(accum.View)
	if err != nil {
		releaseTarget(accum)
		releaseTarget(color)
		return nil, err
	}

	color = p.stageOutput(color)
	return &resizing{
		output: color,
		commit: func() {
			p.bundle.release()
			if p.accum != nil {
				p.accumView.Release()
				p.accum.Release()
			}
			p.bundle = next
			p.accum, p.accumView = accum.Texture, accum.View
			p.swapOutput(color)
			p.gen++
		},
		discard: func() {
			next.release()
			releaseTarget(accum)
			releaseTarget(color)
		},
	}, nil
}

func (p *raytrace) Rebuild() error {
	if !p.output.Valid() {
		return fmt.Errorf("pass %s: rebuild before the first resize", p.name)
	}
	next, err := p.build(p.accumView)
	if err != nil {
		return err
	}
	p.bundle.release()
	p.bundle = next
	p.gen++
	return nil
}

func (p *raytrace) build(accum renderer.TextureView) (*raytraceBundle, error) {
	sampler, err := p.res.Renderer.CreateSampler("Raytrace Accumulation Sampler", common.LinearClampSampler())
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	bindings := bgp.NewBindGroupProvider(p.name,
		bgp.WithBuffer(BindingCamera, p.res.Camera),
		bgp.WithBuffer(BindingObjects, p.objects),
		bgp.WithTextureView(BindingAccumulationTexture, accum),
		bgp.WithSampler(BindingAccumulationSampler, sampler),
		bgp.WithTextureView(BindingEnvironmentTexture, p.env.View),
		bgp.WithSampler(BindingEnvironmentSampler, p.env.Sampler),
	)
	s, err := p.buildStage(p.name, p.program, ColorFormat, nil, bindings)
	if err != nil {
		sampler.Release()
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	return &raytraceBundle{sampler: sampler, stage: s}, nil
}

func (p *raytrace) Encode(f Frame) error {
	if p.bundle == nil {
		return fmt.Errorf("pass %s: not built", p.name)
	}
	out := p.output
	f.Encoder.CopyTextureToTexture(out.Texture, p.accum, out.Texture.Width(), out.Texture.Height())
	p.bundle.stage.draw(f, p.res.Quad, p.name, out.View, clearBlack, 0)
	return nil
}

func (p *raytrace) Release() {
	p.bundle.release()
	p.bundle = nil
	if p.accum != nil {
		p.accumView.Release()
		p.accum.Release()
		p.accum, p.accumView = nil, nil
	}
	releaseTarget(p.output)
	p.output = Target{}
}
