package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRenderer struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	width         uint32
	height        uint32
	presentMode   wgpu.PresentMode

	// surface texture held between AcquireSurfaceTexture and Present
	frameSurface *wgpuSurfaceTexture
}

var _ Renderer = &wgpuRenderer{}

func toWGPUPresentMode(mode PresentMode) wgpu.PresentMode {
	switch mode {
	case PresentModeUncapped:
		return wgpu.PresentModeImmediate
	case PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
}

func newWGPURenderer(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg *rendererConfig) (*wgpuRenderer, error) {
	runtime.LockOSThread()
	r := &wgpuRenderer{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: toWGPUPresentMode(cfg.presentMode),
	}
	r.surface = r.instance.CreateSurface(surfaceDescriptor)

	a, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		PowerPreference:      cfg.powerPreference,
		CompatibleSurface:    r.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	r.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: common.Coalesce(cfg.label, "Main Device"),
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	r.device = d
	r.queue = d.GetQueue()

	return r, nil
}

func (r *wgpuRenderer) SurfaceFormat() wgpu.TextureFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaceFormat
}

func (r *wgpuRenderer) SurfaceSize() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *wgpuRenderer) ConfigureSurface(width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capabilities := r.surface.GetCapabilities(r.adapter)
	r.surfaceFormat = capabilities.Formats[0]
	r.width, r.height = width, height

	r.surface.Configure(r.adapter, r.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      r.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: r.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	logging.LogDebug("surface configured %dx%d format %v", width, height, r.surfaceFormat)
}

func (r *wgpuRenderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presentMode = toWGPUPresentMode(mode)
}

func (r *wgpuRenderer) CreateShaderModule(label, source string) (ShaderModule, error) {
	m, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{label: label, m: m}, nil
}

func (r *wgpuRenderer) CreateTexture(desc TextureDescriptor) (Texture, error) {
	desc.Layers = max(desc.Layers, 1)
	desc.MipLevelCount = max(desc.MipLevelCount, 1)

	tex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: desc.Usage,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{desc: desc, tex: tex}, nil
}

func (r *wgpuRenderer) WriteTexture(tex Texture, data common.TextureStagingData) error {
	t, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("texture %q was not created by this renderer", tex.Label())
	}
	if data.Width != t.desc.Width || data.Height != t.desc.Height || data.LayerCount() > t.desc.Layers {
		return fmt.Errorf("staging data %dx%dx%d does not fit texture %q", data.Width, data.Height, data.LayerCount(), t.desc.Label)
	}

	for layer := uint32(0); layer < data.LayerCount(); layer++ {
		pixels := data.Layer(layer)
		if pixels == nil {
			return fmt.Errorf("staging data for texture %q is missing layer %d", t.desc.Label, layer)
		}
		r.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  t.tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{Z: layer},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  data.Width * 4,
				RowsPerImage: data.Height,
			},
			&wgpu.Extent3D{
				Width:              data.Width,
				Height:             data.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}
	return nil
}

func (r *wgpuRenderer) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	s, err := r.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
		Compare:       data.Compare,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{label: label, s: s}, nil
}

func (r *wgpuRenderer) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(desc.Contents))
	}
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             size,
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	if len(desc.Contents) > 0 {
		r.queue.WriteBuffer(buf, 0, desc.Contents)
	}
	return &wgpuBuffer{label: desc.Label, size: size, b: buf}, nil
}

func (r *wgpuRenderer) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	b, ok := buf.(*wgpuBuffer)
	if !ok || len(data) == 0 {
		return
	}
	r.queue.WriteBuffer(b.b, offset, data)
}

func (r *wgpuRenderer) CreateBindGroupLayout(desc wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	l, err := r.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{label: desc.Label, l: l}, nil
}

func (r *wgpuRenderer) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q has no layout created by this renderer", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*wgpuBuffer).b
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*wgpuTextureView).v
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpuSampler).s
		default:
			return nil, fmt.Errorf("bind group %q binding %d has no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}

	bg, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.l,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, bg: bg}, nil
}

func (r *wgpuRenderer) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	if desc.VertexModule == nil || desc.FragmentModule == nil {
		return nil, errors.New("both vertex and fragment modules must be set to create a render pipeline")
	}

	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*wgpuBindGroupLayout).l
	}
	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}

	target := wgpu.ColorTargetState{
		Format:    desc.TargetFormat,
		WriteMask: common.Coalesce(desc.WriteMask, wgpu.ColorWriteMaskAll),
		Blend:     desc.Blend,
	}

	created, err := r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     desc.VertexModule.(*wgpuShaderModule).m,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     desc.FragmentModule.(*wgpuShaderModule).m,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  common.Coalesce(desc.Topology, wgpu.PrimitiveTopologyTriangleList),
			FrontFace: common.Coalesce(desc.FrontFace, wgpu.FrontFaceCCW),
			CullMode:  common.Coalesce(desc.CullMode, wgpu.CullModeNone),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	pipelineLayout.Release()
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{label: desc.Label, p: created}, nil
}

func (r *wgpuRenderer) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := r.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{enc: enc}, nil
}

func (r *wgpuRenderer) AcquireSurfaceTexture() (SurfaceTexture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frameSurface != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := r.surface.GetCurrentTexture()
	if err != nil {
		return nil, classifySurfaceError(err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	r.frameSurface = &wgpuSurfaceTexture{
		owner: r,
		tex:   surfaceTexture,
		view:  &wgpuTextureView{label: "Surface View", v: view},
	}
	return r.frameSurface, nil
}

func (r *wgpuRenderer) Submit(cb CommandBuffer) {
	c, ok := cb.(*wgpuCommandBuffer)
	if !ok {
		return
	}
	r.queue.Submit(c.cb)
	c.Release()
}

func (r *wgpuRenderer) Present() {
	r.mu.Lock()
	fs := r.frameSurface
	r.frameSurface = nil
	r.mu.Unlock()

	if fs == nil {
		return
	}
	r.surface.Present()
	fs.release()
}

func (r *wgpuRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frameSurface != nil {
		r.frameSurface.release()
		r.frameSurface = nil
	}
	if r.queue != nil {
		r.queue.Release()
	}
	if r.device != nil {
		r.device.Release()
	}
	if r.adapter != nil {
		r.adapter.Release()
	}
	if r.surface != nil {
		r.surface.Release()
	}
	if r.instance != nil {
		r.instance.Release()
	}
}

type wgpuTexture struct {
	desc TextureDescriptor
	tex  *wgpu.Texture
}

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Width() uint32              { return t.desc.Width }
func (t *wgpuTexture) Height() uint32             { return t.desc.Height }
func (t *wgpuTexture) Layers() uint32             { return t.desc.Layers }
func (t *wgpuTexture) MipLevelCount() uint32      { return t.desc.MipLevelCount }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Release()                   { t.tex.Release() }

func (t *wgpuTexture) CreateView(desc TextureViewDescriptor) (TextureView, error) {
	mips := desc.MipLevelCount
	if mips == 0 {
		mips = t.desc.MipLevelCount - desc.BaseMipLevel
	}
	layers := desc.ArrayLayerCount
	if layers == 0 {
		layers = t.desc.Layers - desc.BaseArrayLayer
	}
	dim := common.Coalesce(desc.Dimension, wgpu.TextureViewDimension2D)

	v, err := t.tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          t.desc.Format,
		Dimension:       dim,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   mips,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTextureView{label: desc.Label, v: v}, nil
}

type wgpuTextureView struct {
	label string
	v     *wgpu.TextureView
}

func (v *wgpuTextureView) Label() string { return v.label }
func (v *wgpuTextureView) Release()      { v.v.Release() }

type wgpuSampler struct {
	label string
	s     *wgpu.Sampler
}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Release()      { s.s.Release() }

type wgpuBuffer struct {
	label string
	size  uint64
	b     *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release()      { b.b.Release() }

type wgpuShaderModule struct {
	label string
	m     *wgpu.ShaderModule
}

func (m *wgpuShaderModule) Label() string { return m.label }
func (m *wgpuShaderModule) Release()      { m.m.Release() }

type wgpuBindGroupLayout struct {
	label string
	l     *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Label() string { return l.label }
func (l *wgpuBindGroupLayout) Release()      { l.l.Release() }

type wgpuBindGroup struct {
	label string
	bg    *wgpu.BindGroup
}

func (g *wgpuBindGroup) Label() string { return g.label }
func (g *wgpuBindGroup) Release()      { g.bg.Release() }

type wgpuRenderPipeline struct {
	label string
	p     *wgpu.RenderPipeline
}

func (p *wgpuRenderPipeline) Label() string { return p.label }
func (p *wgpuRenderPipeline) Release()      { p.p.Release() }

type wgpuCommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() { c.cb.Release() }

type wgpuSurfaceTexture struct {
	owner    *wgpuRenderer
	tex      *wgpu.Texture
	view     *wgpuTextureView
	released bool
}

func (s *wgpuSurfaceTexture) View() TextureView { return s.view }

// Release abandons the frame without presenting it.
func (s *wgpuSurfaceTexture) Release() {
	s.owner.mu.Lock()
	if s.owner.frameSurface == s {
		s.owner.frameSurface = nil
	}
	s.owner.mu.Unlock()
	s.release()
}

func (s *wgpuSurfaceTexture) release() {
	if s.released {
		return
	}
	s.released = true
	s.view.Release()
	s.tex.Release()
}

type wgpuCommandEncoder struct {
	enc *wgpu.CommandEncoder
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc RenderPassDescriptor) RenderPassEncoder {
	pass := e.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       desc.Target.(*wgpuTextureView).v,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: desc.ClearColor,
			},
		},
	})
	return &wgpuRenderPass{pass: pass}
}

func (e *wgpuCommandEncoder) CopyTextureToTexture(src, dst Texture, width, height uint32) {
	e.enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  src.(*wgpuTexture).tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  dst.(*wgpuTexture).tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{cb: cb}, nil
}

func (e *wgpuCommandEncoder) Release() {
	e.enc.Release()
}

type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

func (p *wgpuRenderPass) SetPipeline(rp RenderPipeline) {
	p.pass.SetPipeline(rp.(*wgpuRenderPipeline).p)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, bg BindGroup) {
	p.pass.SetBindGroup(index, bg.(*wgpuBindGroup).bg, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.pass.SetVertexBuffer(slot, buf.(*wgpuBuffer).b, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	p.pass.SetIndexBuffer(buf.(*wgpuBuffer).b, format, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (p *wgpuRenderPass) End() {
	p.pass.End()
}
