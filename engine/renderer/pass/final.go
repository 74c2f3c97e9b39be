package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-rt/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

var clearWhite = wgpu.Color{R: 1, G: 1, B: 1, A: 1}

// final tone-maps its input into the surface texture of the frame. It has no output target.
type final struct {
	base

	program string
	bundle  *finalBundle
}

type finalBundle struct {
	sampler renderer.Sampler
	stage   *stage
}

func (b *finalBundle) release() {
	if b == nil {
		return
	}
	b.stage.release()
	b.sampler.Release()
}

var _ Pass = &final{}

// NewFinal creates the final composite pass reading the output of input.
//
// Parameters:
//   - res: the shared resources
//   - input: the pass whose output is composited
//   - program: the shader path of the tone-mapping program
//
// Returns:
//   - Pass: the pass
//   - error: an error if a required resource is missing
func NewFinal(res Resources, input Source, program string) (Pass, error) {
	if err := res.validate(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("pass: final has no input")
	}
	return &final{
		base:    base{name: "Final", res: res, upstream: input},
		program: program,
	}, nil
}

func (p *final) Programs() []string {
	return []string{p.program}
}

// Resize rebuilds against the current surface format. The surface itself is owned by the renderer.
func (p *final) Resize(width, height uint32) error {
	return p.Rebuild()
}

func (p *final) PrepareResize(_, _ uint32, in Target) (Resizing, error) {
	if !in.Valid() {
		return nil, fmt.Errorf("pass %s: upstream %s has no output", p.name, p.upstream.Name())
	}
	next, err := p.build(in)
	if err != nil {
		return nil, err
	}
	return &resizing{
		commit: func() {
			p.install(next, in)
		},
		discard: next.release,
	}, nil
}

func (p *final) Rebuild() error {
	in, err := p.checkUpstream()
	if err != nil {
		return err
	}
	next, err := p.build(in)
	if err != nil {
		return err
	}
	p.install(next, in)
	return nil
}

func (p *final) install(next *finalBundle, in Target) {
	p.bundle.release()
	p.bundle = next
	p.bound = in.Generation
	p.gen++
}

func (p *final) build(in Target) (*finalBundle, error) {
	format := p.res.Renderer.SurfaceFormat()
	sampler, err := p.res.Renderer.CreateSampler("Final Sampler", common.LinearClampSampler())
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	bindings := bgp.NewBindGroupProvider(p.name,
		bgp.WithBuffer(BindingCamera, p.res.Camera),
		bgp.WithTextureView(BindingSourceTexture, in.View),
		bgp.WithSampler(BindingSourceSampler, sampler),
	)
	s, err := p.buildStage(p.name, p.program, format, nil, bindings)
	if err != nil {
		sampler.Release()
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	return &finalBundle{sampler: sampler, stage: s}, nil
}

func (p *final) Encode(f Frame) error {
	if p.bundle == nil {
		return fmt.Errorf("pass %s: not built", p.name)
	}
	if err := p.checkStale(); err != nil {
		return err
	}
	if f.Surface == nil {
		return fmt.Errorf("pass %s: no surface view", p.name)
	}
	p.bundle.stage.draw(f, p.res.Quad, p.name, f.Surface, clearWhite, 0)
	return nil
}

func (p *final) Release() {
	p.bundle.release()
	p.bundle = nil
}
