package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestPushNewestFirst(t *testing.T) {
	s := NewScene()
	a := NewSphere(mgl32.Vec3{0, 0, 0}, 1, DefaultMaterial())
	b := NewSphere(mgl32.Vec3{1, 0, 0}, 2, DefaultMaterial())
	if err := s.Push(a); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(b); err != nil {
		t.Fatal(err)
	}
	spheres := s.Spheres()
	if len(spheres) != 2 || spheres[0] != b || spheres[1] != a {
		t.Fatalf("Spheres() = %v, want newest first", spheres)
	}
}

func TestCapacityRejects(t *testing.T) {
	s := NewScene()
	for i := 0; i < DefaultCapacity; i++ {
		if err := s.Push(NewSphere(mgl32.Vec3{float32(i), 0, 0}, 1, DefaultMaterial())); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	before := s.Spheres()
	version := s.Version()

	err := s.Push(NewSphere(mgl32.Vec3{99, 0, 0}, 1, DefaultMaterial()))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("33rd push error = %v, want ErrCapacityExceeded", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) || capErr.Kind != KindSphere || capErr.Capacity != DefaultCapacity {
		t.Errorf("error = %#v, want CapacityError{sphere, 32}", err)
	}
	after := s.Spheres()
	if len(after) != DefaultCapacity || after[0] != before[0] {
		t.Error("rejected push modified the collection")
	}
	if s.Version() != version {
		t.Error("rejected push bumped the version")
	}

	// Other kinds have their own capacity.
	if err := s.Push(NewPlane(mgl32.Vec3{0, 1, 0}, 0, DefaultMaterial())); err != nil {
		t.Errorf("plane push into a scene with full spheres: %v", err)
	}
}

func TestRemoveAndFind(t *testing.T) {
	box := NewBox(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{-1, -1, -1}, DefaultMaterial())
	plane := NewPlane(mgl32.Vec3{0, 2, 0}, -1, DefaultMaterial())
	s := NewScene(WithObjects(box, plane))

	if got, ok := s.Find(box.ID()); !ok || got != box {
		t.Fatalf("Find(box) = %v, %v", got, ok)
	}
	if !s.Remove(box.ID()) {
		t.Fatal("Remove(box) = false")
	}
	if s.Remove(box.ID()) {
		t.Error("second Remove(box) = true")
	}
	if s.Remove(uuid.New()) {
		t.Error("Remove(unknown) = true")
	}
	if s.Len(KindBox) != 0 || s.Len(KindPlane) != 1 {
		t.Errorf("Len() after remove: boxes %d planes %d", s.Len(KindBox), s.Len(KindPlane))
	}
	if plane.Normal != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("plane normal = %v, want normalized", plane.Normal)
	}
	if box.Min != (mgl32.Vec3{-1, -1, -1}) {
		t.Errorf("box min = %v, want reordered corners", box.Min)
	}
}

func TestWithCapacity(t *testing.T) {
	s := NewScene(WithCapacity(2), WithObjects(
		NewSphere(mgl32.Vec3{}, 1, DefaultMaterial()),
		NewSphere(mgl32.Vec3{}, 1, DefaultMaterial()),
		NewSphere(mgl32.Vec3{}, 1, DefaultMaterial()),
	))
	if s.Len(KindSphere) != 2 {
		t.Errorf("Len() = %d, want 2", s.Len(KindSphere))
	}
}

func TestIntersect(t *testing.T) {
	near := NewSphere(mgl32.Vec3{0, 0, -3}, 1, DefaultMaterial())
	far := NewBox(mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -9}, DefaultMaterial())
	floor := NewPlane(mgl32.Vec3{0, 1, 0}, -5, DefaultMaterial())
	s := NewScene(WithObjects(far, near, floor))

	obj, dist, ok := s.Intersect(Ray{Origin: mgl32.Vec3{}, Direction: mgl32.Vec3{0, 0, -1}})
	if !ok || obj != near {
		t.Fatalf("Intersect() = %v, want the near sphere", obj)
	}
	if math.Abs(float64(dist-2)) > 1e-5 {
		t.Errorf("distance = %v, want 2", dist)
	}

	obj, dist, ok = s.Intersect(Ray{Origin: mgl32.Vec3{0, 0, 0}, Direction: mgl32.Vec3{0, -1, 0}})
	if !ok || obj != floor || math.Abs(float64(dist-5)) > 1e-5 {
		t.Errorf("downward ray hit %v at %v, want floor at 5", obj, dist)
	}

	if _, _, ok := s.Intersect(Ray{Origin: mgl32.Vec3{}, Direction: mgl32.Vec3{0, 1, 0}}); ok {
		t.Error("upward ray should miss")
	}

	// A ray starting inside a sphere hits the far side.
	if d, ok := near.Intersect(Ray{Origin: near.Center, Direction: mgl32.Vec3{1, 0, 0}}); !ok || math.Abs(float64(d-1)) > 1e-5 {
		t.Errorf("inside hit = %v %v, want 1", d, ok)
	}
}

func TestBounds(t *testing.T) {
	s := NewSphere(mgl32.Vec3{1, 2, 3}, 2, DefaultMaterial())
	if b := s.Bounds(); b.Min != (mgl32.Vec3{-1, 0, 1}) || b.Max != (mgl32.Vec3{3, 4, 5}) {
		t.Errorf("sphere bounds = %v", b)
	}
	p := NewPlane(mgl32.Vec3{0, 1, 0}, 2, DefaultMaterial())
	b := p.Bounds()
	if b.Min[1] != 2 || b.Max[1] != 2 || b.Max[0] != math.MaxFloat32 {
		t.Errorf("plane bounds = %v", b)
	}
	if !b.Contains(mgl32.Vec3{100, 2, -100}) {
		t.Error("plane bounds should contain points on the plane")
	}
}

func TestMaterialLayout(t *testing.T) {
	m := Material{
		Type:      MaterialDielectric,
		Albedo:    mgl32.Vec3{0.1, 0.2, 0.3},
		Emission:  mgl32.Vec3{4, 5, 6},
		Roughness: 0.25,
		IOR:       1.33,
	}
	b := m.Std140().Bytes()
	if len(b) != 64 {
		t.Fatalf("material size = %d, want 64", len(b))
	}
	if binary.LittleEndian.Uint32(b[0:]) != uint32(MaterialDielectric) {
		t.Errorf("type = %d", binary.LittleEndian.Uint32(b[0:]))
	}
	checks := []struct {
		off  int
		want float32
	}{
		{16, 0.1}, {20, 0.2}, {24, 0.3},
		{32, 4}, {36, 5}, {40, 6},
		{44, 0.25}, {48, 1.33},
	}
	for _, c := range checks {
		if got := f32At(b, c.off); got != c.want {
			t.Errorf("offset %d = %v, want %v", c.off, got, c.want)
		}
	}
}

func TestObjectsUniformLayout(t *testing.T) {
	sphere := NewSphere(mgl32.Vec3{1, 2, 3}, 4, Diffuse(mgl32.Vec3{0.5, 0.6, 0.7}))
	plane := NewPlane(mgl32.Vec3{0, 1, 0}, -1, DefaultMaterial())
	box := NewBox(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 2, 3}, Material{Type: MaterialMetal, Roughness: 0.5})
	s := NewScene(WithObjects(sphere, plane, box))

	b := s.Std140().Bytes()
	if len(b) != 8208 {
		t.Fatalf("objects uniform size = %d, want 8208", len(b))
	}
	for i, want := range []uint32{1, 1, 1} {
		if got := binary.LittleEndian.Uint32(b[i*4:]); got != want {
			t.Errorf("count %d = %d, want %d", i, got, want)
		}
	}

	// spheres[0]
	if f32At(b, 16) != 1 || f32At(b, 20) != 2 || f32At(b, 24) != 3 || f32At(b, 28) != 4 {
		t.Error("sphere center/radius mismatch")
	}
	if f32At(b, 16+16+16) != 0.5 {
		t.Errorf("sphere albedo.r = %v", f32At(b, 48))
	}
	// spheres[1] is empty
	for _, v := range b[96:176] {
		if v != 0 {
			t.Fatal("unused sphere slot is not zero")
		}
	}
	// planes[0]
	if f32At(b, 2576+4) != 1 || f32At(b, 2576+12) != -1 {
		t.Error("plane normal/distance mismatch")
	}
	// boxes[0]
	if f32At(b, 5136+16+4) != 2 || f32At(b, 5136+16+8) != 3 {
		t.Error("box max mismatch")
	}
	if binary.LittleEndian.Uint32(b[5136+32:]) != uint32(MaterialMetal) {
		t.Error("box material type mismatch")
	}
	if f32At(b, 5136+32+44) != 0.5 {
		t.Error("box roughness mismatch")
	}
}

func TestParseMaterialType(t *testing.T) {
	tests := map[string]MaterialType{
		"diffuse":    MaterialLambertian,
		"Lambertian": MaterialLambertian,
		"metal":      MaterialMetal,
		"glass":      MaterialDielectric,
		"dielectric": MaterialDielectric,
	}
	for in, want := range tests {
		got, err := ParseMaterialType(in)
		if err != nil || got != want {
			t.Errorf("ParseMaterialType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMaterialType("plastic"); err == nil {
		t.Error("ParseMaterialType(\"plastic\") should fail")
	}
}

func TestStd140IgnoresCapacity(t *testing.T) {
	for _, n := range []int{1, 4, DefaultCapacity + 8} {
		t.Run(fmt.Sprintf("capacity %d", n), func(t *testing.T) {
			s := NewScene(WithCapacity(n), WithObjects(
				NewPlane(mgl32.Vec3{0, 1, 0}, -1, DefaultMaterial()),
				NewBox(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 2, 3}, DefaultMaterial()),
			))
			if want := min(n, DefaultCapacity); s.Capacity() != want {
				t.Errorf("Capacity() = %d, want %d", s.Capacity(), want)
			}

			b := s.Std140().Bytes()
			if len(b) != ObjectsUniformSize {
				t.Fatalf("objects uniform size = %d, want %d", len(b), ObjectsUniformSize)
			}
			if f32At(b, 2576+4) != 1 || f32At(b, 2576+12) != -1 {
				t.Error("plane moved from its fixed offset")
			}
			if f32At(b, 5136+16+4) != 2 || f32At(b, 5136+16+8) != 3 {
				t.Error("box moved from its fixed offset")
			}
		})
	}
}
