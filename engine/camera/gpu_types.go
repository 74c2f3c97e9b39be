package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-rt/engine/std140"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraUniformSource is the canonical WGSL definition of the Camera struct.
// Matches the CameraUniform std140 layout exactly (304 bytes).
//
//go:embed assets/camera.wgsl
var CameraUniformSource string

// CameraUniformSize is the size of the serialized CameraUniform in bytes.
const CameraUniformSize = 304

// CameraUniform is the per-frame camera data uploaded to the GPU.
// Layout (std140):
//
//	  0 view_projection                  mat4
//	 64 inverse_view_projection          mat4
//	128 previous_view_projection         mat4
//	192 previous_inverse_view_projection mat4
//	256 position                         vec3
//	268 frame                            u32
//	272 resolution                       vec2
//	280 near, far, fov, aspect           f32
type CameraUniform struct {
	ViewProjection                mgl32.Mat4
	InverseViewProjection         mgl32.Mat4
	PreviousViewProjection        mgl32.Mat4
	PreviousInverseViewProjection mgl32.Mat4
	Position                      mgl32.Vec3
	Frame                         uint32
	Resolution                    mgl32.Vec2
	Near                          float32
	Far                           float32
	Fov                           float32
	Aspect                        float32
}

var _ std140.Marshaler = CameraUniform{}

func (u CameraUniform) Std140() *std140.Buffer {
	return std140.New().
		WriteMat4(u.ViewProjection).
		WriteMat4(u.InverseViewProjection).
		WriteMat4(u.PreviousViewProjection).
		WriteMat4(u.PreviousInverseViewProjection).
		WriteVec3(u.Position).
		WriteU32(u.Frame).
		WriteVec2(u.Resolution).
		WriteF32(u.Near).
		WriteF32(u.Far).
		WriteF32(u.Fov).
		WriteF32(u.Aspect).
		Align()
}
