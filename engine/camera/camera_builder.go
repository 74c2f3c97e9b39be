package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option applied to a camera during construction via NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithPosition sets the camera's world-space position.
//
// Parameters:
//   - p: the initial position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(p mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = p
	}
}

// WithRotation sets the initial yaw and pitch in radians. Pitch is clamped when the camera is built.
//
// Parameters:
//   - yaw: rotation around the world Y axis
//   - pitch: elevation angle
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's orientation
func WithRotation(yaw, pitch float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.yaw = yaw
		c.pitch = pitch
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio from an output size. A zero dimension is ignored.
//
// Parameters:
//   - width: output width in pixels
//   - height: output height in pixels
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(width, height uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if width == 0 || height == 0 {
			return
		}
		c.aspect = float32(width) / float32(height)
	}
}

// WithNear sets the near clipping plane distance.
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}
