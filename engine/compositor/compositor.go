// Package compositor runs the frame: it applies invalidation events, uploads the scene and camera,
// and records the raytrace, bloom and final passes into one command buffer per frame.
package compositor

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-rt/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrFrameSkipped is returned by Frame when no surface texture could be acquired.
// The frame is dropped and the next one proceeds normally.
var ErrFrameSkipped = errors.New("frame skipped")

// State is the lifecycle state of the compositor.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// solidEnvironment is the registry name of the cubemap used when no environment is configured or it fails to load.
const solidEnvironment = "Solid Environment"

// compositor is the implementation of the Compositor interface.
type compositor struct {
	mu *sync.Mutex

	r        renderer.Renderer
	cache    shader.Cache
	registry texture.Registry
	scene    scene.Scene
	camera   camera.Camera
	queue    *Queue

	environment     string
	environmentTint color.RGBA
	maxMips         uint32
	raytraceProgram string
	finalProgram    string
	bloomPrograms   pass.BloomPrograms

	// The following fields are GPU resources created by Init and released by Release.

	quad          *pass.Quad
	cameraBuffer  renderer.Buffer
	objectsBuffer renderer.Buffer
	raytrace      pass.Pass
	bloom         pass.Pass
	final         pass.Pass

	state         State
	width, height uint32
	sceneVersion  uint64
}

// Compositor owns the passes of a frame and the protocol rebuilding them.
//
// Usage pattern:
//  1. Create with NewCompositor and call Init once the renderer's surface is configured
//  2. Push events from any goroutine with Resize and RequestReload
//  3. Call Frame once per loop iteration on the render thread
//  4. Call Release before releasing the renderer
type Compositor interface {
	// Init creates the shared quad and uniform buffers, resolves the environment and builds every pass
	// for the current surface size.
	//
	// Returns:
	//   - error: an error if a pass could not be built even with the fallback shader
	Init() error

	// Frame renders one frame.
	//
	// Returns:
	//   - error: ErrFrameSkipped when the surface was unavailable, an error wrapping renderer.ErrOutOfMemory
	//     or renderer.ErrDeviceLost when the device is unusable, or an encoding error
	Frame() error

	// Resize queues a SurfaceResized event for the next frame. Zero sizes are ignored when applied.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height uint32)

	// RequestReload queues a ShaderReloadRequested event for the next frame.
	//
	// Parameters:
	//   - paths: the changed shader files; none reloads every program
	RequestReload(paths ...string)

	// RecreateAll reallocates and rebuilds every pass in dependency order for the current size.
	//
	// Returns:
	//   - error: the first pass failure
	RecreateAll() error

	// Passes returns the passes in execution order: raytrace, bloom, final.
	Passes() []pass.Pass

	// State returns the lifecycle state.
	State() State

	// Size returns the size the passes are built for.
	Size() (width, height uint32)

	Scene() scene.Scene
	Camera() camera.Camera
	Cache() shader.Cache
	Registry() texture.Registry

	// Release releases every pass, the shared buffers and the texture registry.
	Release()
}

var _ Compositor = &compositor{}

// NewCompositor creates a compositor drawing on r. No GPU objects exist until Init.
// The compositor owns the texture registry, including one passed with WithRegistry.
//
// Parameters:
//   - r: the renderer
//   - options: CompositorBuilderOption functions
//
// Returns:
//   - Compositor: the compositor in StateUninitialized
func NewCompositor(r renderer.Renderer, options ...CompositorBuilderOption) Compositor {
	c := &compositor{
		mu:              &sync.Mutex{},
		r:               r,
		queue:           NewQueue(),
		environmentTint: color.RGBA{R: 40, G: 44, B: 52, A: 255},
		raytraceProgram: "raytrace.wgsl",
		finalProgram:    "final.wgsl",
		bloomPrograms:   pass.DefaultBloomPrograms(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.cache == nil {
		c.cache = shader.NewCache()
	}
	if c.registry == nil {
		c.registry = texture.NewRegistry(r)
	}
	if c.scene == nil {
		c.scene = scene.NewScene()
	}
	if c.camera == nil {
		c.camera = camera.NewCamera()
	}
	return c
}

func (c *compositor) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized {
		return fmt.Errorf("compositor: Init called in state %v", c.state)
	}
	c.width, c.height = c.r.SurfaceSize()
	c.camera.SetAspect(c.width, c.height)

	if err := c.createShared(); err != nil {
		c.releaseShared()
		return err
	}
	if err := c.createPasses(); err != nil {
		c.releasePasses()
		c.releaseShared()
		return err
	}
	if err := c.recreateAll(c.width, c.height); err != nil {
		c.releasePasses()
		c.releaseShared()
		return err
	}

	c.sceneVersion = c.scene.Version()
	c.state = StateReady
	logging.LogInfo("compositor ready at %dx%d", c.width, c.height)
	return nil
}

func (c *compositor) createShared() error {
	var err error
	if c.quad, err = pass.NewQuad(c.r); err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	if c.cameraBuffer, err = c.r.CreateBuffer(renderer.BufferDescriptor{
		Label: "Camera Uniform",
		Size:  camera.CameraUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	if c.objectsBuffer, err = c.r.CreateBuffer(renderer.BufferDescriptor{
		Label: "Objects Uniform",
		Size:  scene.ObjectsUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	return nil
}

// resolveEnvironment loads the configured cubemap, substituting a solid one when it is unset or fails to load.
func (c *compositor) resolveEnvironment() (*texture.Texture, error) {
	if c.environment != "" {
		env, err := c.registry.Load(c.environment)
		if err == nil && env.Cube {
			return env, nil
		}
		if err == nil {
			err = fmt.Errorf("%s is not a cubemap directory", c.environment)
		}
		logging.LogWarnErr(err, "Environment at path %v failed to load, substituting a solid cubemap.", c.environment)
	}
	return c.registry.SolidCubemap(solidEnvironment, c.environmentTint)
}

func (c *compositor) createPasses() error {
	env, err := c.resolveEnvironment()
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	res := pass.Resources{
		Renderer: c.r,
		Quad:     c.quad,
		Cache:    c.cache,
		Camera:   c.cameraBuffer,
	}
	if c.raytrace, err = pass.NewRaytrace(res, c.objectsBuffer, env, c.raytraceProgram); err != nil {
		return err
	}
	if c.bloom, err = pass.NewBloom(res, c.raytrace, pass.WithMaxMips(c.maxMips), pass.WithBloomPrograms(c.bloomPrograms)); err != nil {
		return err
	}
	if c.final, err = pass.NewFinal(res, c.bloom, c.finalProgram); err != nil {
		return err
	}
	return nil
}

func (c *compositor) passes() []pass.Pass {
	if c.raytrace == nil {
		return nil
	}
	return []pass.Pass{c.raytrace, c.bloom, c.final}
}

func (c *compositor) RecreateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return fmt.Errorf("compositor: RecreateAll called in state %v", c.state)
	}
	return c.recreateAll(c.width, c.height)
}

// recreateAll prepares every pass for the given size in dependency order and installs them together.
// When any pass fails the staged work is discarded and every pass keeps its previous size.
func (c *compositor) recreateAll(width, height uint32) error {
	passes := c.passes()
	staged := make([]pass.Resizing, 0, len(passes))
	var in pass.Target
	for _, p := range passes {
		r, err := p.PrepareResize(width, height, in)
		if err != nil {
			for i := len(staged) - 1; i >= 0; i-- {
				staged[i].Discard()
			}
			return fmt.Errorf("compositor: %w", err)
		}
		staged = append(staged, r)
		in = r.Output()
	}
	for i, r := range staged {
		r.Commit()
		logging.LogDebug("rebuilt pass %s at %dx%d (generation %d)", passes[i].Name(), width, height, passes[i].Generation())
	}
	return nil
}

func (c *compositor) Resize(width, height uint32) {
	c.queue.Push(SurfaceResized{Width: width, Height: height})
}

func (c *compositor) RequestReload(paths ...string) {
	c.queue.Push(ShaderReloadRequested{Paths: paths})
}

// applyEvents drains the queue and applies the coalesced result: a resize first, then shader reloads.
func (c *compositor) applyEvents() error {
	pl := planEvents(c.queue.Drain())

	if pl.resize != nil {
		if err := c.applyResize(*pl.resize); err != nil {
			return err
		}
	}

	if !pl.reloadAll && len(pl.reload) == 0 {
		return nil
	}
	changed := reloadPrograms(c.cache, pl)
	if len(changed) > 0 {
		logging.LogInfo("reloaded shaders %v", changed)
	}
	for _, p := range c.passes() {
		if !usesAny(p, changed) && !p.Stale() {
			continue
		}
		if err := p.Rebuild(); err != nil {
			logging.LogError("pass %s kept its previous bundle: %v", p.Name(), err)
		}
	}
	return nil
}

// applyResize reconfigures the surface and recreates every pass at the new size. On failure the surface
// is restored to the previous size and the resize is queued again for the next frame.
func (c *compositor) applyResize(e SurfaceResized) error {
	c.r.ConfigureSurface(e.Width, e.Height)
	if err := c.recreateAll(e.Width, e.Height); err != nil {
		c.r.ConfigureSurface(c.width, c.height)
		c.queue.Push(e)
		return err
	}
	c.width, c.height = e.Width, e.Height
	c.camera.SetAspect(c.width, c.height)
	return nil
}

// validate rebuilds every pass bound to a stale upstream output.
func (c *compositor) validate() error {
	for _, p := range c.passes() {
		if !p.Stale() {
			continue
		}
		logging.LogDebug("pass %s is bound to a stale input, rebuilding", p.Name())
		if err := p.Rebuild(); err != nil {
			return fmt.Errorf("compositor: %w", err)
		}
	}
	return nil
}

// upload serializes the camera and the scene into their uniform buffers. The camera uniform is the
// one of the next frame; the camera only advances once the frame is presented.
func (c *compositor) upload() {
	if v := c.scene.Version(); v != c.sceneVersion {
		c.camera.ResetAccumulation()
		c.sceneVersion = v
	}
	bgp.WriteBuffers(c.r,
		bgp.BufferWrite{Buffer: c.cameraBuffer, Data: c.camera.NextUniform(c.width, c.height).Std140().Bytes()},
		bgp.BufferWrite{Buffer: c.objectsBuffer, Data: c.scene.Std140().Bytes()},
	)
}

// acquire gets the surface texture, mapping recoverable surface failures onto ErrFrameSkipped.
func (c *compositor) acquire() (renderer.SurfaceTexture, error) {
	surface, err := c.r.AcquireSurfaceTexture()
	switch {
	case err == nil:
		return surface, nil
	case renderer.IsFatal(err):
		return nil, fmt.Errorf("compositor: %w", err)
	case errors.Is(err, renderer.ErrSurfaceLost), errors.Is(err, renderer.ErrSurfaceOutdated):
		logging.LogDebug("surface needs reconfiguring: %v", err)
		c.queue.Push(SurfaceResized{Width: c.width, Height: c.height})
		return nil, fmt.Errorf("%w: %w", ErrFrameSkipped, err)
	default:
		logging.LogWarnErr(err, "Surface texture unavailable, skipping frame.")
		return nil, fmt.Errorf("%w: %w", ErrFrameSkipped, err)
	}
}

func (c *compositor) Frame() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return fmt.Errorf("compositor: Frame called in state %v", c.state)
	}
	if err := c.applyEvents(); err != nil {
		return err
	}
	c.upload()

	surface, err := c.acquire()
	if err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		surface.Release()
		return err
	}

	enc, err := c.r.CreateCommandEncoder("Frame Encoder")
	if err != nil {
		surface.Release()
		return fmt.Errorf("compositor: %w", err)
	}
	f := pass.Frame{Encoder: enc, Surface: surface.View()}
	for _, p := range c.passes() {
		if err := p.Encode(f); err != nil {
			enc.Release()
			surface.Release()
			return fmt.Errorf("compositor: %w", err)
		}
	}
	cb, err := enc.Finish()
	enc.Release()
	if err != nil {
		surface.Release()
		return fmt.Errorf("compositor: %w", err)
	}

	c.r.Submit(cb)
	c.r.Present()
	c.camera.Update()
	return nil
}

func (c *compositor) Passes() []pass.Pass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes()
}

func (c *compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *compositor) Size() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *compositor) Scene() scene.Scene {
	return c.scene
}

func (c *compositor) Camera() camera.Camera {
	return c.camera
}

func (c *compositor) Cache() shader.Cache {
	return c.cache
}

func (c *compositor) Registry() texture.Registry {
	return c.registry
}

func (c *compositor) releasePasses() {
	for _, p := range []pass.Pass{c.final, c.bloom, c.raytrace} {
		if p != nil {
			p.Release()
		}
	}
	c.raytrace, c.bloom, c.final = nil, nil, nil
}

func (c *compositor) releaseShared() {
	if c.objectsBuffer != nil {
		c.objectsBuffer.Release()
		c.objectsBuffer = nil
	}
	if c.cameraBuffer != nil {
		c.cameraBuffer.Release()
		c.cameraBuffer = nil
	}
	if c.quad != nil {
		c.quad.Release()
		c.quad = nil
	}
}

func (c *compositor) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReleased {
		return
	}
	c.releasePasses()
	c.releaseShared()
	c.registry.Release()
	c.state = StateReleased
}
