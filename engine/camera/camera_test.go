package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

// within compares component-wise with an absolute tolerance.
func within(a, b []float32, eps float64) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func approxVec(a, b mgl32.Vec3, eps float64) bool {
	return within(a[:], b[:], eps)
}

func TestPitchClamp(t *testing.T) {
	c := NewCamera(WithRotation(0, 2))
	if !approx(c.Pitch(), MaxPitch) {
		t.Errorf("constructor pitch = %v, want %v", c.Pitch(), MaxPitch)
	}
	c.SetRotation(0, -10)
	if !approx(c.Pitch(), -MaxPitch) {
		t.Errorf("SetRotation pitch = %v, want %v", c.Pitch(), -MaxPitch)
	}
	c.Rotate(0, 100)
	if !approx(c.Pitch(), MaxPitch) {
		t.Errorf("Rotate pitch = %v, want %v", c.Pitch(), MaxPitch)
	}
	c.LookAt(c.Position().Add(mgl32.Vec3{0, 10, 0}))
	if !approx(c.Pitch(), MaxPitch) {
		t.Errorf("LookAt straight up pitch = %v, want %v", c.Pitch(), MaxPitch)
	}
}

func TestAspectFromSize(t *testing.T) {
	c := NewCamera()
	c.SetAspect(1600, 1200)
	if !approx(c.Aspect(), 4.0/3.0) {
		t.Errorf("Aspect() = %v, want 4/3", c.Aspect())
	}
	c.SetAspect(0, 600)
	if !approx(c.Aspect(), 4.0/3.0) {
		t.Error("zero width should be ignored")
	}
}

func TestForwardAndLookAt(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{0, 0, 0}))
	if f := c.Forward(); !approxVec(f, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("default Forward() = %v, want -Z", f)
	}
	if r := c.Right(); !approxVec(r, mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("default Right() = %v, want +X", r)
	}

	c.LookAt(mgl32.Vec3{5, 0, 0})
	if f := c.Forward(); !approxVec(f, mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("Forward() after LookAt(+X) = %v", f)
	}

	target := mgl32.Vec3{3, 4, -5}
	c.LookAt(target)
	want := target.Normalize()
	if f := c.Forward(); !approxVec(f, want, 1e-4) {
		t.Errorf("Forward() after LookAt = %v, want %v", f, want)
	}
}

func TestViewProjectionMapsTargetToCenter(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 3}), WithAspect(800, 600))
	target := mgl32.Vec3{-2, 0, -7}
	c.LookAt(target)

	clip := c.ViewProjection().Mul4x1(target.Vec4(1))
	ndc := clip.Vec3().Mul(1 / clip.W())
	if !approx(ndc.X(), 0) || !approx(ndc.Y(), 0) {
		t.Errorf("target projects to %v, want screen center", ndc)
	}
	if ndc.Z() < 0 || ndc.Z() > 1 {
		t.Errorf("depth %v outside [0, 1]", ndc.Z())
	}

	id := c.ViewProjection().Mul4(c.InverseViewProjection())
	ident := mgl32.Ident4()
	if !within(id[:], ident[:], 1e-3) {
		t.Errorf("VP * inverse(VP) = %v", id)
	}
}

func TestUpdateRollsPreviousMatricesAndFrameIndex(t *testing.T) {
	c := NewCamera()
	c.Update()
	if c.FrameIndex() != 0 {
		t.Fatalf("first FrameIndex() = %d, want 0", c.FrameIndex())
	}
	c.Update()
	c.Update()
	if c.FrameIndex() != 2 {
		t.Fatalf("FrameIndex() after still updates = %d, want 2", c.FrameIndex())
	}

	before := c.ViewProjection()
	c.SetPosition(mgl32.Vec3{5, 5, 5})
	if c.PreviousViewProjection() != before {
		t.Error("previous matrix changed before Update")
	}
	c.Update()
	if c.FrameIndex() != 0 {
		t.Errorf("FrameIndex() after move = %d, want 0", c.FrameIndex())
	}
	if c.PreviousViewProjection() != before {
		t.Error("PreviousViewProjection() should hold the matrix of the prior frame")
	}
	if c.PreviousViewProjection() == c.ViewProjection() {
		t.Error("previous and current should differ after a move")
	}

	c.Update()
	if c.PreviousViewProjection() != c.ViewProjection() {
		t.Error("previous should catch up after a still frame")
	}

	c.ResetAccumulation()
	c.Update()
	if c.FrameIndex() != 0 {
		t.Errorf("FrameIndex() after ResetAccumulation = %d, want 0", c.FrameIndex())
	}
}

func TestNextUniformDoesNotAdvance(t *testing.T) {
	c := NewCamera()
	c.Update()
	c.Update()
	before := c.ViewProjection()

	next := c.NextUniform(64, 64)
	if next.Frame != 2 {
		t.Errorf("NextUniform().Frame = %d, want 2", next.Frame)
	}
	if next.PreviousViewProjection != before {
		t.Error("NextUniform() should report the matrix captured by the last Update as previous")
	}
	if c.FrameIndex() != 1 {
		t.Errorf("FrameIndex() = %d after NextUniform, want 1", c.FrameIndex())
	}

	c.Update()
	if got := c.Uniform(64, 64); got != next {
		t.Errorf("Uniform() after Update = %+v, want the NextUniform() result %+v", got, next)
	}

	c.ResetAccumulation()
	if c.NextUniform(64, 64).Frame != 0 {
		t.Error("NextUniform() should honor a pending reset")
	}
	c.NextUniform(64, 64)
	c.Update()
	if c.FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d, the reset must survive NextUniform", c.FrameIndex())
	}
}

func TestUniformLayout(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 3}), WithNear(0.5), WithFar(50), WithAspect(800, 600))
	c.Update()
	c.Update()
	b := c.Uniform(800, 600).Std140().Bytes()
	if len(b) != CameraUniformSize {
		t.Fatalf("uniform size = %d, want %d", len(b), CameraUniformSize)
	}

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	vp := c.ViewProjection()
	for i := 0; i < 16; i++ {
		if f(i*4) != vp[i] {
			t.Fatalf("view_projection[%d] = %v, want %v", i, f(i*4), vp[i])
		}
	}
	ivp := c.InverseViewProjection()
	if f(64+20) != ivp[5] {
		t.Error("inverse_view_projection mismatch")
	}
	if f(256) != 1 || f(260) != 2 || f(264) != 3 {
		t.Error("position mismatch")
	}
	if binary.LittleEndian.Uint32(b[268:]) != 1 {
		t.Errorf("frame = %d, want 1", binary.LittleEndian.Uint32(b[268:]))
	}
	if f(272) != 800 || f(276) != 600 {
		t.Error("resolution mismatch")
	}
	if f(280) != 0.5 || f(284) != 50 || !approx(f(292), 800.0/600.0) {
		t.Error("near/far/aspect mismatch")
	}
}

func TestFlyController(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{0, 0, 0}))
	fc := NewFlyController(WithSpeed(2), WithSensitivity(0.01))

	if fc.Apply(c, 1) {
		t.Error("Apply() with no input should report no motion")
	}

	fc.KeyDown(common.KeyW)
	if !fc.Apply(c, 0.5) {
		t.Fatal("Apply() with W held should move")
	}
	if p := c.Position(); !approxVec(p, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("position after W = %v, want (0, 0, -1)", p)
	}
	fc.KeyUp(common.KeyW)

	fc.MouseMove(100, 100)
	if fc.Apply(c, 1) {
		t.Error("mouse movement without look should be ignored")
	}
	fc.BeginLook(0, 0)
	fc.MouseMove(10, 0)
	fc.Apply(c, 0)
	if !approx(c.Yaw(), 0.1) {
		t.Errorf("yaw = %v, want 0.1", c.Yaw())
	}
	fc.EndLook()
}
