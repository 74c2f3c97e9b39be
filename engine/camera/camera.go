package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxPitch is the largest pitch magnitude a camera accepts, in radians (89 degrees).
var MaxPitch = mgl32.DegToRad(89)

// worldUp is the fixed up axis used to build the view matrix.
var worldUp = mgl32.Vec3{0, 1, 0}

// depthRemap converts OpenGL clip depth [-1, 1] produced by mgl32.Perspective to WebGPU's [0, 1].
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	yaw      float32
	pitch    float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	view                  mgl32.Mat4
	projection            mgl32.Mat4
	viewProjection        mgl32.Mat4
	inverseView           mgl32.Mat4
	inverseProjection     mgl32.Mat4
	inverseViewProjection mgl32.Mat4

	// matrices captured by the last Update
	lastViewProjection        mgl32.Mat4
	lastInverseViewProjection mgl32.Mat4
	prevViewProjection        mgl32.Mat4
	prevInverseViewProjection mgl32.Mat4

	frameIndex   uint32
	resetPending bool
}

// Camera defines the interface for the camera system.
// The camera holds a position, a yaw/pitch orientation and perspective settings, and derives
// view and projection matrices from them. Update rolls the current matrices into the
// previous-frame slots used for temporal accumulation.
// Thread-safe for concurrent access.
type Camera interface {
	// Position returns the camera's world-space position.
	Position() mgl32.Vec3

	// SetPosition sets the camera's world-space position and recomputes matrices.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// Yaw returns the rotation around the world Y axis in radians. Zero looks down -Z.
	Yaw() float32

	// Pitch returns the elevation angle in radians, within [-MaxPitch, MaxPitch].
	Pitch() float32

	// SetRotation sets yaw and pitch in radians. Pitch is clamped to [-MaxPitch, MaxPitch].
	//
	// Parameters:
	//   - yaw: rotation around the world Y axis
	//   - pitch: elevation angle
	SetRotation(yaw, pitch float32)

	// Rotate adds deltas to yaw and pitch. Pitch is clamped to [-MaxPitch, MaxPitch].
	//
	// Parameters:
	//   - dYaw: yaw delta in radians
	//   - dPitch: pitch delta in radians
	Rotate(dYaw, dPitch float32)

	// Forward returns the unit view direction.
	Forward() mgl32.Vec3

	// Right returns the unit right vector, perpendicular to Forward and the world up axis.
	Right() mgl32.Vec3

	// LookAt orients the camera so Forward points at target.
	// Does nothing if target equals the camera position.
	//
	// Parameters:
	//   - target: the world-space point to look at
	LookAt(target mgl32.Vec3)

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	SetFov(fov float32)

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// SetAspect sets the aspect ratio from an output size and recomputes matrices.
	// A zero width or height is ignored.
	//
	// Parameters:
	//   - width: output width in pixels
	//   - height: output height in pixels
	SetAspect(width, height uint32)

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// View returns the current view matrix.
	View() mgl32.Mat4

	// Projection returns the current projection matrix with WebGPU clip depth.
	Projection() mgl32.Mat4

	// InverseView returns the inverse of the current view matrix.
	InverseView() mgl32.Mat4

	// InverseProjection returns the inverse of the current projection matrix.
	InverseProjection() mgl32.Mat4

	// ViewProjection returns projection * view.
	ViewProjection() mgl32.Mat4

	// InverseViewProjection returns the inverse of ViewProjection.
	InverseViewProjection() mgl32.Mat4

	// PreviousViewProjection returns the view-projection matrix of the frame before the last Update.
	PreviousViewProjection() mgl32.Mat4

	// PreviousInverseViewProjection returns the inverse view-projection of the frame before the last Update.
	PreviousInverseViewProjection() mgl32.Mat4

	// FrameIndex returns the number of consecutive updates the view has been unchanged.
	// The raytrace shader blends new samples with weight 1 / (FrameIndex + 1).
	FrameIndex() uint32

	// ResetAccumulation forces the next Update to restart the frame index at zero.
	// Called when the scene changes under a still camera.
	ResetAccumulation()

	// Update rolls the matrices captured at the previous Update into the previous-frame slots,
	// captures the current ones, and advances or resets the frame index.
	// Should be called once per frame before the uniform is serialized.
	Update()

	// Uniform builds the GPU uniform for the current state.
	//
	// Parameters:
	//   - width: output width in pixels
	//   - height: output height in pixels
	//
	// Returns:
	//   - CameraUniform: the uniform, ready for std140 serialization
	Uniform(width, height uint32) CameraUniform

	// NextUniform builds the uniform the camera will report after the next Update without changing any state,
	// so a frame can be uploaded before it is known to be presented.
	//
	// Parameters:
	//   - width: output width in pixels
	//   - height: output height in pixels
	//
	// Returns:
	//   - CameraUniform: the uniform of the next frame
	NextUniform(width, height uint32) CameraUniform
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at (0, 1, 4) looking down -Z with a 60 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 1, 4},
		fov:      mgl32.DegToRad(60),
		aspect:   1.0,
		near:     0.1,
		far:      1000.0,

		resetPending: true,
	}
	for _, option := range options {
		option(c)
	}
	c.pitch = common.Clamp(c.pitch, -MaxPitch, MaxPitch)
	c.updateMatrices()
	c.lastViewProjection = c.viewProjection
	c.lastInverseViewProjection = c.inverseViewProjection
	c.prevViewProjection = c.viewProjection
	c.prevInverseViewProjection = c.inverseViewProjection
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
	c.updateMatrices()
}

func (c *cameraImpl) Yaw() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yaw
}

func (c *cameraImpl) Pitch() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

func (c *cameraImpl) SetRotation(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw = yaw
	c.pitch = common.Clamp(pitch, -MaxPitch, MaxPitch)
	c.updateMatrices()
}

func (c *cameraImpl) Rotate(dYaw, dPitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw = float32(math.Mod(float64(c.yaw+dYaw), 2*math.Pi))
	c.pitch = common.Clamp(c.pitch+dPitch, -MaxPitch, MaxPitch)
	c.updateMatrices()
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward()
}

func (c *cameraImpl) Right() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward().Cross(worldUp).Normalize()
}

func (c *cameraImpl) LookAt(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := target.Sub(c.position)
	if dir.Len() < 1e-6 {
		return
	}
	dir = dir.Normalize()
	c.pitch = common.Clamp(float32(math.Asin(float64(dir.Y()))), -MaxPitch, MaxPitch)
	c.yaw = float32(math.Atan2(float64(dir.X()), float64(-dir.Z())))
	c.updateMatrices()
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = float32(width) / float32(height)
	c.updateMatrices()
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) InverseView() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseView
}

func (c *cameraImpl) InverseProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjection
}

func (c *cameraImpl) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection
}

func (c *cameraImpl) InverseViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewProjection
}

func (c *cameraImpl) PreviousViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prevViewProjection
}

func (c *cameraImpl) PreviousInverseViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prevInverseViewProjection
}

func (c *cameraImpl) FrameIndex() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameIndex
}

func (c *cameraImpl) ResetAccumulation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetPending = true
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prevViewProjection = c.lastViewProjection
	c.prevInverseViewProjection = c.lastInverseViewProjection
	c.frameIndex = c.nextFrame()
	c.resetPending = false
	c.lastViewProjection = c.viewProjection
	c.lastInverseViewProjection = c.inverseViewProjection
}

func (c *cameraImpl) Uniform(width, height uint32) CameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniform(width, height, c.prevViewProjection, c.prevInverseViewProjection, c.frameIndex)
}

func (c *cameraImpl) NextUniform(width, height uint32) CameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniform(width, height, c.lastViewProjection, c.lastInverseViewProjection, c.nextFrame())
}

// nextFrame returns the frame index the next Update sets. Caller must hold the mutex.
func (c *cameraImpl) nextFrame() uint32 {
	if c.resetPending || c.viewProjection != c.lastViewProjection {
		return 0
	}
	return c.frameIndex + 1
}

// uniform assembles the GPU uniform from the current matrices. Caller must hold the mutex.
func (c *cameraImpl) uniform(width, height uint32, prev, prevInv mgl32.Mat4, frame uint32) CameraUniform {
	return CameraUniform{
		ViewProjection:                c.viewProjection,
		InverseViewProjection:         c.inverseViewProjection,
		PreviousViewProjection:        prev,
		PreviousInverseViewProjection: prevInv,
		Position:                      c.position,
		Frame:                         frame,
		Resolution:                    mgl32.Vec2{float32(width), float32(height)},
		Near:                          c.near,
		Far:                           c.far,
		Fov:                           c.fov,
		Aspect:                        c.aspect,
	}
}

// forward computes the view direction from yaw and pitch. Caller must hold the mutex.
func (c *cameraImpl) forward() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.pitch)))
	return mgl32.Vec3{
		cp * float32(math.Sin(float64(c.yaw))),
		float32(math.Sin(float64(c.pitch))),
		-cp * float32(math.Cos(float64(c.yaw))),
	}
}

// updateMatrices recalculates view, projection and their combinations. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.position, c.position.Add(c.forward()), worldUp)
	c.projection = depthRemap.Mul4(mgl32.Perspective(c.fov, c.aspect, c.near, c.far))
	c.viewProjection = c.projection.Mul4(c.view)
	c.inverseView = c.view.Inv()
	c.inverseProjection = c.projection.Inv()
	c.inverseViewProjection = c.viewProjection.Inv()
}
