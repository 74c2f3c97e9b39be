// Package backendtest provides a recording renderer.Renderer for exercising passes and the compositor without a GPU.
package backendtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInjected is returned by creation calls that were configured to fail.
var ErrInjected = errors.New("backendtest: injected failure")

// Recorder implements renderer.Renderer by appending one line per call to an in-memory log.
// Every created resource is tracked so tests can assert it was released.
type Recorder struct {
	mu  *sync.Mutex
	log []string

	format        wgpu.TextureFormat
	width, height uint32
	presentMode   renderer.PresentMode

	acquireErrs    []error
	failShaders    map[string]bool
	failPipelines  map[string]bool
	failShaderFunc func(label, source string) bool

	resources []*resource
	frame     *surfaceTexture
}

var _ renderer.Renderer = &Recorder{}

// NewRecorder creates a Recorder whose surface is configured to width x height.
func NewRecorder(width, height uint32) *Recorder {
	return &Recorder{
		mu:            &sync.Mutex{},
		format:        wgpu.TextureFormatBGRA8Unorm,
		width:         width,
		height:        height,
		failShaders:   make(map[string]bool),
		failPipelines: make(map[string]bool),
	}
}

// Log returns a copy of the call log.
func (r *Recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.log))
	copy(out, r.log)
	return out
}

// Filter returns the log lines that start with prefix.
func (r *Recorder) Filter(prefix string) []string {
	var out []string
	for _, line := range r.Log() {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

// Reset clears the call log. Tracked resources are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

// FailAcquire queues errors returned by the next AcquireSurfaceTexture calls, one per call.
func (r *Recorder) FailAcquire(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquireErrs = append(r.acquireErrs, errs...)
}

// FailShader makes CreateShaderModule fail for the given label while fail is true.
func (r *Recorder) FailShader(label string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failShaders[label] = fail
}

// FailShaderWhen makes CreateShaderModule fail whenever fn reports true.
func (r *Recorder) FailShaderWhen(fn func(label, source string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failShaderFunc = fn
}

// FailPipeline makes CreateRenderPipeline fail for the given label.
func (r *Recorder) FailPipeline(label string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPipelines[label] = fail
}

// Live returns the labels of tracked resources of the given kind that have not been released.
// An empty kind matches every kind.
func (r *Recorder) Live(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, res := range r.resources {
		if res.released || (kind != "" && res.kind != kind) {
			continue
		}
		out = append(out, res.label)
	}
	return out
}

// PresentMode returns the last present mode set.
func (r *Recorder) PresentMode() renderer.PresentMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presentMode
}

func (r *Recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

func (r *Recorder) track(kind, label string) *resource {
	res := &resource{owner: r, kind: kind, label: label}
	r.mu.Lock()
	r.resources = append(r.resources, res)
	r.mu.Unlock()
	return res
}

func (r *Recorder) SurfaceFormat() wgpu.TextureFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

func (r *Recorder) SurfaceSize() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Recorder) ConfigureSurface(width, height uint32) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.record("configure surface %dx%d", width, height)
}

func (r *Recorder) SetPresentMode(mode renderer.PresentMode) {
	r.mu.Lock()
	r.presentMode = mode
	r.mu.Unlock()
}

func (r *Recorder) CreateShaderModule(label, source string) (renderer.ShaderModule, error) {
	r.mu.Lock()
	fail := r.failShaders[label] || (r.failShaderFunc != nil && r.failShaderFunc(label, source))
	r.mu.Unlock()
	if fail {
		r.record("create shader failed: %s", label)
		return nil, fmt.Errorf("shader %q: %w", label, ErrInjected)
	}
	r.record("create shader: %s", label)
	return &ShaderModule{resource: r.track("shader", label), Source: source}, nil
}

func (r *Recorder) CreateTexture(desc renderer.TextureDescriptor) (renderer.Texture, error) {
	desc.Layers = max(desc.Layers, 1)
	desc.MipLevelCount = max(desc.MipLevelCount, 1)
	r.record("create texture: %s %dx%d mips=%d", desc.Label, desc.Width, desc.Height, desc.MipLevelCount)
	return &Texture{resource: r.track("texture", desc.Label), Desc: desc}, nil
}

func (r *Recorder) WriteTexture(tex renderer.Texture, data common.TextureStagingData) error {
	if data.Width != tex.Width() || data.Height != tex.Height() || data.LayerCount() > tex.Layers() {
		return fmt.Errorf("staging data %dx%dx%d does not fit texture %q", data.Width, data.Height, data.LayerCount(), tex.Label())
	}
	r.record("write texture: %s layers=%d", tex.Label(), data.LayerCount())
	return nil
}

func (r *Recorder) CreateSampler(label string, _ common.SamplerStagingData) (renderer.Sampler, error) {
	r.record("create sampler: %s", label)
	return &Sampler{resource: r.track("sampler", label)}, nil
}

func (r *Recorder) CreateBuffer(desc renderer.BufferDescriptor) (renderer.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(desc.Contents))
	}
	r.record("create buffer: %s size=%d", desc.Label, size)
	b := &Buffer{resource: r.track("buffer", desc.Label), size: size, Data: make([]byte, size)}
	copy(b.Data, desc.Contents)
	return b, nil
}

func (r *Recorder) WriteBuffer(buf renderer.Buffer, offset uint64, data []byte) {
	r.record("write buffer: %s offset=%d len=%d", buf.Label(), offset, len(data))
	if b, ok := buf.(*Buffer); ok && offset+uint64(len(data)) <= uint64(len(b.Data)) {
		copy(b.Data[offset:], data)
	}
}

func (r *Recorder) CreateBindGroupLayout(desc wgpu.BindGroupLayoutDescriptor) (renderer.BindGroupLayout, error) {
	r.record("create bind group layout: %s entries=%d", desc.Label, len(desc.Entries))
	return &BindGroupLayout{resource: r.track("bind group layout", desc.Label), Desc: desc}, nil
}

func (r *Recorder) CreateBindGroup(desc renderer.BindGroupDescriptor) (renderer.BindGroup, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("bind group %q has no layout", desc.Label)
	}
	for _, e := range desc.Entries {
		if e.Buffer == nil && e.TextureView == nil && e.Sampler == nil {
			return nil, fmt.Errorf("bind group %q binding %d has no resource", desc.Label, e.Binding)
		}
		if e.TextureView != nil && isReleased(e.TextureView) {
			return nil, fmt.Errorf("bind group %q binding %d uses released view %q", desc.Label, e.Binding, e.TextureView.Label())
		}
	}
	r.record("create bind group: %s", desc.Label)
	return &BindGroup{resource: r.track("bind group", desc.Label), Desc: desc}, nil
}

func (r *Recorder) CreateRenderPipeline(desc renderer.RenderPipelineDescriptor) (renderer.RenderPipeline, error) {
	r.mu.Lock()
	fail := r.failPipelines[desc.Label]
	r.mu.Unlock()
	if fail {
		r.record("create pipeline failed: %s", desc.Label)
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, ErrInjected)
	}
	if desc.VertexModule == nil || desc.FragmentModule == nil {
		return nil, errors.New("both vertex and fragment modules must be set to create a render pipeline")
	}
	r.record("create pipeline: %s", desc.Label)
	return &RenderPipeline{resource: r.track("pipeline", desc.Label), Desc: desc}, nil
}

func (r *Recorder) CreateCommandEncoder(label string) (renderer.CommandEncoder, error) {
	r.record("create encoder: %s", label)
	return &commandEncoder{owner: r}, nil
}

func (r *Recorder) AcquireSurfaceTexture() (renderer.SurfaceTexture, error) {
	r.mu.Lock()
	var err error
	if len(r.acquireErrs) > 0 {
		err = r.acquireErrs[0]
		r.acquireErrs = r.acquireErrs[1:]
	}
	r.mu.Unlock()
	if err != nil {
		r.record("acquire failed: %v", err)
		return nil, err
	}
	r.record("acquire")
	st := &surfaceTexture{view: &TextureView{resource: r.track("view", "Surface View")}}
	r.mu.Lock()
	r.frame = st
	r.mu.Unlock()
	return st, nil
}

func (r *Recorder) Submit(cb renderer.CommandBuffer) {
	r.record("submit")
	cb.Release()
}

func (r *Recorder) Present() {
	r.mu.Lock()
	st := r.frame
	r.frame = nil
	r.mu.Unlock()
	r.record("present")
	if st != nil {
		st.Release()
	}
}

func (r *Recorder) Release() {
	r.record("release renderer")
}

type resource struct {
	owner    *Recorder
	kind     string
	label    string
	released bool
}

func (res *resource) Label() string { return res.label }

func (res *resource) Release() {
	res.owner.mu.Lock()
	res.released = true
	res.owner.mu.Unlock()
	res.owner.record("release %s: %s", res.kind, res.label)
}

// Released reports whether Release was called.
func (res *resource) Released() bool {
	res.owner.mu.Lock()
	defer res.owner.mu.Unlock()
	return res.released
}

func isReleased(v any) bool {
	if rel, ok := v.(interface{ Released() bool }); ok {
		return rel.Released()
	}
	return false
}

// Texture is a recorded texture.
type Texture struct {
	*resource
	Desc renderer.TextureDescriptor
}

func (t *Texture) Width() uint32              { return t.Desc.Width }
func (t *Texture) Height() uint32             { return t.Desc.Height }
func (t *Texture) Layers() uint32             { return t.Desc.Layers }
func (t *Texture) MipLevelCount() uint32      { return t.Desc.MipLevelCount }
func (t *Texture) Format() wgpu.TextureFormat { return t.Desc.Format }

func (t *Texture) CreateView(desc renderer.TextureViewDescriptor) (renderer.TextureView, error) {
	if desc.BaseMipLevel >= t.Desc.MipLevelCount {
		return nil, fmt.Errorf("view %q: mip %d out of range for %q", desc.Label, desc.BaseMipLevel, t.Desc.Label)
	}
	t.owner.record("create view: %s mip=%d", desc.Label, desc.BaseMipLevel)
	return &TextureView{resource: t.owner.track("view", desc.Label), Texture: t, Desc: desc}, nil
}

// TextureView is a recorded texture view.
type TextureView struct {
	*resource
	Texture *Texture
	Desc    renderer.TextureViewDescriptor
}

// Sampler is a recorded sampler.
type Sampler struct {
	*resource
}

// Buffer is a recorded buffer. Data mirrors every write.
type Buffer struct {
	*resource
	size uint64
	Data []byte
}

func (b *Buffer) Size() uint64 { return b.size }

// ShaderModule is a recorded shader module.
type ShaderModule struct {
	*resource
	Source string
}

// BindGroupLayout is a recorded bind group layout.
type BindGroupLayout struct {
	*resource
	Desc wgpu.BindGroupLayoutDescriptor
}

// BindGroup is a recorded bind group.
type BindGroup struct {
	*resource
	Desc renderer.BindGroupDescriptor
}

// RenderPipeline is a recorded render pipeline.
type RenderPipeline struct {
	*resource
	Desc renderer.RenderPipelineDescriptor
}

type surfaceTexture struct {
	view *TextureView
}

func (s *surfaceTexture) View() renderer.TextureView { return s.view }

func (s *surfaceTexture) Release() {
	if !s.view.Released() {
		s.view.Release()
	}
}

type commandBuffer struct{}

func (commandBuffer) Release() {}

type commandEncoder struct {
	owner  *Recorder
	inPass bool
}

func (e *commandEncoder) BeginRenderPass(desc renderer.RenderPassDescriptor) renderer.RenderPassEncoder {
	e.owner.record("begin pass: %s -> %s", desc.Label, desc.Target.Label())
	e.inPass = true
	return &renderPass{encoder: e}
}

func (e *commandEncoder) CopyTextureToTexture(src, dst renderer.Texture, width, height uint32) {
	e.owner.record("copy texture: %s -> %s %dx%d", src.Label(), dst.Label(), width, height)
}

func (e *commandEncoder) Finish() (renderer.CommandBuffer, error) {
	if e.inPass {
		return nil, errors.New("finish called with an open render pass")
	}
	e.owner.record("finish")
	return commandBuffer{}, nil
}

func (e *commandEncoder) Release() {}

type renderPass struct {
	encoder *commandEncoder
}

func (p *renderPass) SetPipeline(rp renderer.RenderPipeline) {
	p.encoder.owner.record("set pipeline: %s", rp.Label())
}

func (p *renderPass) SetBindGroup(index uint32, bg renderer.BindGroup) {
	p.encoder.owner.record("set bind group %d: %s", index, bg.Label())
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf renderer.Buffer) {}

func (p *renderPass) SetIndexBuffer(buf renderer.Buffer, format wgpu.IndexFormat) {}

func (p *renderPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.encoder.owner.record("draw indexed %d", indexCount)
}

func (p *renderPass) End() {
	p.encoder.inPass = false
	p.encoder.owner.record("end pass")
}
