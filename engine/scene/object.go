package scene

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-rt/engine/std140"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Kind identifies one of the fixed set of scene object shapes.
type Kind int

const (
	KindSphere Kind = iota
	KindPlane
	KindBox
)

// Kinds lists every object kind in upload order.
var Kinds = []Kind{KindSphere, KindPlane, KindBox}

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindPlane:
		return "plane"
	case KindBox:
		return "box"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

const hitEpsilon = 1e-4

// Ray is a half-line used for CPU-side picking against scene objects.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Object is a shape that can be placed in a Scene.
// The set of implementations is closed to Sphere, Plane and Box.
type Object interface {
	std140.Marshaler

	// ID returns the object's unique identifier, assigned when it is constructed.
	ID() uuid.UUID

	// Kind returns which shape this object is.
	Kind() Kind

	// Material returns the surface material.
	Material() Material

	// Intersect tests the ray against the object.
	//
	// Parameters:
	//   - r: the ray to test
	//
	// Returns:
	//   - float32: the nearest ray parameter greater than a small epsilon
	//   - bool: true if the ray hits the object
	Intersect(r Ray) (float32, bool)

	// Bounds returns the object's axis-aligned bounds. Unbounded axes span ±MaxFloat32.
	Bounds() AABB

	object()
}

// Sphere is a sphere given by its center and radius.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
	Mat    Material

	id uuid.UUID
}

var _ Object = &Sphere{}

// NewSphere creates a sphere with a fresh ID.
func NewSphere(center mgl32.Vec3, radius float32, mat Material) *Sphere {
	return &Sphere{Center: center, Radius: radius, Mat: mat, id: uuid.New()}
}

func (s *Sphere) object()            {}
func (s *Sphere) ID() uuid.UUID      { return s.id }
func (s *Sphere) Kind() Kind         { return KindSphere }
func (s *Sphere) Material() Material { return s.Mat }

func (s *Sphere) Intersect(r Ray) (float32, bool) {
	oc := r.Origin.Sub(s.Center)
	a := r.Direction.Dot(r.Direction)
	h := oc.Dot(r.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := h*h - a*c
	if a == 0 || disc < 0 {
		return 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t := (-h - sq) / a
	if t <= hitEpsilon {
		t = (-h + sq) / a
	}
	if t <= hitEpsilon {
		return 0, false
	}
	return t, true
}

func (s *Sphere) Bounds() AABB {
	r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

// Std140 serializes the sphere as { center vec3, radius f32, material Material } (80 bytes).
func (s *Sphere) Std140() *std140.Buffer {
	return std140.New().
		WriteVec3(s.Center).
		WriteF32(s.Radius).
		WriteStruct(s.Mat).
		Align()
}

// Plane is the infinite plane of points p with dot(Normal, p) == Distance.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
	Mat      Material

	id uuid.UUID
}

var _ Object = &Plane{}

// NewPlane creates a plane with a fresh ID. The normal is normalized.
func NewPlane(normal mgl32.Vec3, distance float32, mat Material) *Plane {
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}
	return &Plane{Normal: normal, Distance: distance, Mat: mat, id: uuid.New()}
}

func (p *Plane) object()            {}
func (p *Plane) ID() uuid.UUID      { return p.id }
func (p *Plane) Kind() Kind         { return KindPlane }
func (p *Plane) Material() Material { return p.Mat }

func (p *Plane) Intersect(r Ray) (float32, bool) {
	denom := p.Normal.Dot(r.Direction)
	if float32(math.Abs(float64(denom))) < 1e-6 {
		return 0, false
	}
	t := (p.Distance - p.Normal.Dot(r.Origin)) / denom
	if t <= hitEpsilon {
		return 0, false
	}
	return t, true
}

func (p *Plane) Bounds() AABB {
	b := AABB{
		Min: mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
		Max: mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
	}
	// An axis-aligned plane is flat along its normal axis.
	for i := 0; i < 3; i++ {
		if n := p.Normal[i]; n == 1 || n == -1 {
			b.Min[i] = p.Distance * n
			b.Max[i] = p.Distance * n
		}
	}
	return b
}

// Std140 serializes the plane as { normal vec3, distance f32, material Material } (80 bytes).
func (p *Plane) Std140() *std140.Buffer {
	return std140.New().
		WriteVec3(p.Normal).
		WriteF32(p.Distance).
		WriteStruct(p.Mat).
		Align()
}

// Box is an axis-aligned box between Min and Max.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
	Mat Material

	id uuid.UUID
}

var _ Object = &Box{}

// NewBox creates a box with a fresh ID. The corners are reordered so Min <= Max on every axis.
func NewBox(a, b mgl32.Vec3, mat Material) *Box {
	var lo, hi mgl32.Vec3
	for i := 0; i < 3; i++ {
		lo[i] = min(a[i], b[i])
		hi[i] = max(a[i], b[i])
	}
	return &Box{Min: lo, Max: hi, Mat: mat, id: uuid.New()}
}

func (b *Box) object()            {}
func (b *Box) ID() uuid.UUID      { return b.id }
func (b *Box) Kind() Kind         { return KindBox }
func (b *Box) Material() Material { return b.Mat }

func (b *Box) Intersect(r Ray) (float32, bool) {
	tmin := float32(-math.MaxFloat32)
	tmax := float32(math.MaxFloat32)
	for i := 0; i < 3; i++ {
		if r.Direction[i] == 0 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Direction[i]
		t0 := (b.Min[i] - r.Origin[i]) * inv
		t1 := (b.Max[i] - r.Origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = max(tmin, t0)
		tmax = min(tmax, t1)
		if tmax < tmin {
			return 0, false
		}
	}
	if tmin > hitEpsilon {
		return tmin, true
	}
	if tmax > hitEpsilon {
		return tmax, true
	}
	return 0, false
}

func (b *Box) Bounds() AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

// Std140 serializes the box as { min vec3, max vec3, material Material } (96 bytes).
func (b *Box) Std140() *std140.Buffer {
	return std140.New().
		WriteVec3(b.Min).
		WriteVec3(b.Max).
		WriteStruct(b.Mat).
		Align()
}
