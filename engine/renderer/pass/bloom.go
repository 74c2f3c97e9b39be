package pass

import (
	"fmt"
	"math/bits"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-rt/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	bloomMipUsage    = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	bloomOutputUsage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
)

// BloomPrograms are the shader paths of the four bloom stages.
type BloomPrograms struct {
	Downsample    string
	UpsampleFirst string
	Upsample      string
	Merge         string
}

// DefaultBloomPrograms returns the shader paths used when none are configured.
func DefaultBloomPrograms() BloomPrograms {
	return BloomPrograms{
		Downsample:    "bloom_downsample.wgsl",
		UpsampleFirst: "bloom_upsample_first.wgsl",
		Upsample:      "bloom_upsample.wgsl",
		Merge:         "bloom_merge.wgsl",
	}
}

// MipCount returns the number of bloom levels for an input of the given size: floor(log2(min(width, height))),
// capped at maxMips when maxMips is not zero.
func MipCount(width, height, maxMips uint32) uint32 {
	m := min(width, height)
	if m < 2 {
		return 0
	}
	l := uint32(bits.Len32(m) - 1)
	if maxMips > 0 {
		l = min(l, maxMips)
	}
	return l
}

// bloom blurs the bright parts of its input through a mip chain and composites them back over it.
type bloom struct {
	base

	programs BloomPrograms
	maxMips  uint32

	width, height uint32
	bundle        *bloomBundle
}

// bloomBundle holds everything sized by the mip count. With zero mips it is empty and the pass copies.
type bloomBundle struct {
	mips uint32
	// input is the upstream output the bundle was built against
	input Target

	down, up       renderer.Texture
	downMip, upMip []renderer.TextureView
	params         []renderer.Buffer
	sampler        renderer.Sampler
	downsample     *stage
	upsampleFirst  *stage
	upsample       *stage
	merge          *stage
}

func (b *bloomBundle) release() {
	if b == nil {
		return
	}
	b.merge.release()
	b.upsample.release()
	b.upsampleFirst.release()
	b.downsample.release()
	if b.sampler != nil {
		b.sampler.Release()
	}
	for _, buf := range b.params {
		buf.Release()
	}
	for _, v := range b.upMip {
		v.Release()
	}
	for _, v := range b.downMip {
		v.Release()
	}
	if b.up != nil {
		b.up.Release()
	}
	if b.down != nil {
		b.down.Release()
	}
}

var _ Pass = &bloom{}

// NewBloom creates the bloom pass reading the output of input. No GPU objects exist until Resize is called.
//
// Parameters:
//   - res: the shared resources
//   - input: the pass whose output is bloomed
//   - options: BloomOption functions
//
// Returns:
//   - Pass: the pass
//   - error: an error if a required resource is missing
func NewBloom(res Resources, input Source, options ...BloomOption) (Pass, error) {
	if err := res.validate(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("pass: bloom has no input")
	}
	p := &bloom{
		base:     base{name: "Bloom", res: res, upstream: input},
		programs: DefaultBloomPrograms(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// MipLevels returns the number of levels of the built mip chain.
func (p *bloom) MipLevels() uint32 {
	if p.bundle == nil {
		return 0
	}
	return p.bundle.mips
}

func (p *bloom) Programs() []string {
	return []string{p.programs.Downsample, p.programs.UpsampleFirst, p.programs.Upsample, p.programs.Merge}
}

func (p *bloom) Resize(width, height uint32) error {
	return commitResize(p.PrepareResize(width, height, p.upstreamInput()))
}

func (p *bloom) PrepareResize(width, height uint32, in Target) (Resizing, error) {
	if !in.Valid() {
		return nil, fmt.Errorf("pass %s: upstream %s has no output", p.name, p.upstream.Name())
	}
	out, err := p.newTarget("Bloom Output", width, height, bloomOutputUsage)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	next, err := p.build(in, width, height)
	if err != nil {
		releaseTarget(out)
		return nil, err
	}

	out = p.stageOutput(out)
	return &resizing{
		output: out,
		commit: func() {
			p.bundle.release()
			p.bundle = next
			p.width, p.height = width, height
			p.bound = in.Generation
			p.swapOutput(out)
			p.gen++
		},
		discard: func() {
			next.release()
			releaseTarget(out)
		},
	}, nil
}

// Rebuild rebuilds against the upstream output. When the upstream was reallocated at another size
// the output and mip chains are reallocated to match it.
func (p *bloom) Rebuild() error {
	if !p.output.Valid() {
		return fmt.Errorf("pass %s: rebuild before the first resize", p.name)
	}
	in, err := p.checkUpstream()
	if err != nil {
		return err
	}
	if w, h := in.Texture.Width(), in.Texture.Height(); w != p.width || h != p.height {
		return commitResize(p.PrepareResize(w, h, in))
	}
	next, err := p.build(in, p.width, p.height)
	if err != nil {
		return err
	}
	p.bundle.release()
	p.bundle = next
	p.bound = in.Generation
	p.gen++
	return nil
}

func (p *bloom) build(in Target, width, height uint32) (*bloomBundle, error) {
	b := &bloomBundle{mips: MipCount(width, height, p.maxMips), input: in}
	if b.mips == 0 {
		return b, nil
	}
	if err := p.fill(b, in, width, height); err != nil {
		b.release()
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	return b, nil
}

// fill creates the mip chains, the per-level uniforms and the four stages of b.
func (p *bloom) fill(b *bloomBundle, in Target, width, height uint32) error {
	r := p.res.Renderer
	var err error
	if b.down, b.downMip, err = p.mipChain("Bloom Downsample", width, height, b.mips); err != nil {
		return err
	}
	if b.up, b.upMip, err = p.mipChain("Bloom Upsample", width, height, b.mips); err != nil {
		return err
	}
	for i := range b.mips {
		buf, err := r.CreateBuffer(renderer.BufferDescriptor{
			Label:    fmt.Sprintf("Bloom Mip Params %d", i),
			Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			Contents: MipParams{TargetMip: i, MipLevels: b.mips}.Std140().Bytes(),
		})
		if err != nil {
			return err
		}
		b.params = append(b.params, buf)
	}
	if b.sampler, err = r.CreateSampler("Bloom Sampler", common.LinearClampSampler()); err != nil {
		return err
	}

	level := func(label string, i uint32, source, bloomView renderer.TextureView) bgp.BindGroupProvider {
		opts := []bgp.BindGroupProviderOption{
			bgp.WithBuffer(BindingCamera, p.res.Camera),
			bgp.WithBuffer(BindingMipParams, b.params[i]),
			bgp.WithTextureView(BindingSourceTexture, source),
			bgp.WithSampler(BindingSourceSampler, b.sampler),
		}
		if bloomView != nil {
			opts = append(opts, bgp.WithTextureView(BindingBloomTexture, bloomView))
		}
		return bgp.NewBindGroupProvider(fmt.Sprintf("%s %d", label, i), opts...)
	}

	down := make([]bgp.BindGroupProvider, 0, b.mips)
	for i := range b.mips {
		source := in.View
		if i > 0 {
			source = b.downMip[i-1]
		}
		down = append(down, level("Bloom Downsample", i, source, nil))
	}
	if b.downsample, err = p.buildStage("Bloom Downsample", p.programs.Downsample, ColorFormat, nil, down...); err != nil {
		return err
	}

	last := b.mips - 1
	first := level("Bloom Upsample First", last, b.downMip[last], nil)
	if b.upsampleFirst, err = p.buildStage("Bloom Upsample First", p.programs.UpsampleFirst, ColorFormat, nil, first); err != nil {
		return err
	}

	// up[i] drives level i for i in [0, mips-2]
	up := make([]bgp.BindGroupProvider, 0, last)
	for i := range last {
		up = append(up, level("Bloom Upsample", i, b.upMip[i+1], b.downMip[i]))
	}
	if last > 0 {
		if b.upsample, err = p.buildStage("Bloom Upsample", p.programs.Upsample, ColorFormat, nil, up...); err != nil {
			return err
		}
	}

	merge := level("Bloom Merge", 0, in.View, b.upMip[0])
	if b.merge, err = p.buildStage("Bloom Merge", p.programs.Merge, ColorFormat, nil, merge); err != nil {
		return err
	}
	return nil
}

// mipChain creates a texture with the given mip count and one single-mip view per level.
func (p *bloom) mipChain(label string, width, height, mips uint32) (renderer.Texture, []renderer.TextureView, error) {
	tex, err := p.res.Renderer.CreateTexture(renderer.TextureDescriptor{
		Label:         label,
		Width:         width,
		Height:        height,
		MipLevelCount: mips,
		Format:        ColorFormat,
		Usage:         bloomMipUsage,
	})
	if err != nil {
		return nil, nil, err
	}
	views := make([]renderer.TextureView, 0, mips)
	for i := range mips {
		v, err := tex.CreateView(renderer.TextureViewDescriptor{
			Label:         fmt.Sprintf("%s Mip %d", label, i),
			BaseMipLevel:  i,
			MipLevelCount: 1,
		})
		if err != nil {
			for _, v := range views {
				v.Release()
			}
			tex.Release()
			return nil, nil, err
		}
		views = append(views, v)
	}
	return tex, views, nil
}

func (p *bloom) Encode(f Frame) error {
	if p.bundle == nil {
		return fmt.Errorf("pass %s: not built", p.name)
	}
	if err := p.checkStale(); err != nil {
		return err
	}
	b := p.bundle
	if b.mips == 0 {
		f.Encoder.CopyTextureToTexture(b.input.Texture, p.output.Texture, p.width, p.height)
		return nil
	}

	for i := range b.mips {
		b.downsample.draw(f, p.res.Quad, fmt.Sprintf("Bloom Downsample %d", i), b.downMip[i], clearBlack, int(i))
	}
	last := b.mips - 1
	b.upsampleFirst.draw(f, p.res.Quad, fmt.Sprintf("Bloom Upsample First %d", last), b.upMip[last], clearBlack, 0)
	for i := int(last) - 1; i >= 0; i-- {
		b.upsample.draw(f, p.res.Quad, fmt.Sprintf("Bloom Upsample %d", i), b.upMip[i], clearBlack, i)
	}
	b.merge.draw(f, p.res.Quad, "Bloom Merge", p.output.View, clearBlack, 0)
	return nil
}

func (p *bloom) Release() {
	p.bundle.release()
	p.bundle = nil
	releaseTarget(p.output)
	p.output = Target{}
}
