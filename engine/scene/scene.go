package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/std140"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of objects of each kind the objects uniform can hold.
const DefaultCapacity = 32

// ErrCapacityExceeded is matched by every CapacityError.
var ErrCapacityExceeded = errors.New("scene capacity exceeded")

// CapacityError reports a push into a full collection. The collection is left unchanged.
type CapacityError struct {
	Kind     Kind
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("scene: %s collection is full (capacity %d)", e.Kind, e.Capacity)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// Scene owns the analytic objects rendered by the raytrace pass.
// Each kind is kept in its own insertion-ordered collection with the newest object at index 0.
// Thread-safe for concurrent access.
type Scene interface {
	std140.Marshaler

	// Push inserts an object at index 0 of its kind's collection.
	//
	// Parameters:
	//   - obj: the object to insert
	//
	// Returns:
	//   - error: a *CapacityError if the collection is full, or an error if obj is nil
	Push(obj Object) error

	// Remove deletes the object with the given ID from whichever collection holds it.
	//
	// Parameters:
	//   - id: the object's ID
	//
	// Returns:
	//   - bool: true if an object was removed
	Remove(id uuid.UUID) bool

	// Find looks up an object by ID.
	Find(id uuid.UUID) (Object, bool)

	// Spheres returns a copy of the sphere collection, newest first.
	Spheres() []*Sphere

	// Planes returns a copy of the plane collection, newest first.
	Planes() []*Plane

	// Boxes returns a copy of the box collection, newest first.
	Boxes() []*Box

	// Objects returns every object, spheres first, then planes, then boxes.
	Objects() []Object

	// Len returns the number of objects of the given kind.
	Len(kind Kind) int

	// Capacity returns the per-kind capacity.
	Capacity() int

	// Clear removes every object.
	Clear()

	// Intersect finds the nearest object hit by the ray.
	//
	// Parameters:
	//   - r: the ray to test
	//
	// Returns:
	//   - Object: the nearest object hit, or nil
	//   - float32: the ray parameter of the hit
	//   - bool: true if any object was hit
	Intersect(r Ray) (Object, float32, bool)

	// Version returns a counter that increases on every mutation.
	Version() uint64
}

type scene struct {
	mu       *sync.Mutex
	capacity int
	spheres  []*Sphere
	planes   []*Plane
	boxes    []*Box
	version  uint64
}

var _ Scene = &scene{}

// NewScene creates an empty Scene with DefaultCapacity per kind, then applies the options in order.
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:       &sync.Mutex{},
		capacity: DefaultCapacity,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func pushFront[T any](items []T, v T) []T {
	return slices.Insert(items, 0, v)
}

func (s *scene) Push(obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push(obj)
}

func (s *scene) push(obj Object) error {
	if obj == nil {
		return errors.New("scene: nil object")
	}
	if s.len(obj.Kind()) >= s.capacity {
		return &CapacityError{Kind: obj.Kind(), Capacity: s.capacity}
	}

	switch o := obj.(type) {
	case *Sphere:
		s.spheres = pushFront(s.spheres, o)
	case *Plane:
		s.planes = pushFront(s.planes, o)
	case *Box:
		s.boxes = pushFront(s.boxes, o)
	}
	s.version++
	return nil
}

func removeID[T Object](items []T, id uuid.UUID) ([]T, bool) {
	i := slices.IndexFunc(items, func(o T) bool { return o.ID() == id })
	if i < 0 {
		return items, false
	}
	return slices.Delete(items, i, i+1), true
}

func (s *scene) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ok bool
	if s.spheres, ok = removeID(s.spheres, id); ok {
		s.version++
		return true
	}
	if s.planes, ok = removeID(s.planes, id); ok {
		s.version++
		return true
	}
	if s.boxes, ok = removeID(s.boxes, id); ok {
		s.version++
		return true
	}
	return false
}

func (s *scene) Find(id uuid.UUID) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.objects() {
		if o.ID() == id {
			return o, true
		}
	}
	return nil, false
}

func (s *scene) Spheres() []*Sphere {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.spheres)
}

func (s *scene) Planes() []*Plane {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.planes)
}

func (s *scene) Boxes() []*Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.boxes)
}

func (s *scene) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects()
}

func (s *scene) objects() []Object {
	out := make([]Object, 0, len(s.spheres)+len(s.planes)+len(s.boxes))
	for _, o := range s.spheres {
		out = append(out, o)
	}
	for _, o := range s.planes {
		out = append(out, o)
	}
	for _, o := range s.boxes {
		out = append(out, o)
	}
	return out
}

func (s *scene) Len(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len(kind)
}

func (s *scene) len(kind Kind) int {
	switch kind {
	case KindSphere:
		return len(s.spheres)
	case KindPlane:
		return len(s.planes)
	case KindBox:
		return len(s.boxes)
	default:
		return 0
	}
}

func (s *scene) Capacity() int {
	return s.capacity
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spheres = nil
	s.planes = nil
	s.boxes = nil
	s.version++
}

func (s *scene) Intersect(r Ray) (Object, float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nearest Object
	var best float32
	for _, o := range s.objects() {
		if t, ok := o.Intersect(r); ok && (nearest == nil || t < best) {
			nearest, best = o, t
		}
	}
	return nearest, best, nearest != nil
}

func (s *scene) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Std140 serializes the objects uniform:
// { num_spheres u32, num_planes u32, num_boxes u32, spheres [N]Sphere, planes [N]Plane, boxes [N]Box }
// where N is DefaultCapacity regardless of WithCapacity. Unused slots are zero.
func (s *scene) Std140() *std140.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := std140.New().
		WriteU32(uint32(len(s.spheres))).
		WriteU32(uint32(len(s.planes))).
		WriteU32(uint32(len(s.boxes)))
	std140.WriteStructs(b, s.spheres, DefaultCapacity, &Sphere{})
	std140.WriteStructs(b, s.planes, DefaultCapacity, &Plane{})
	std140.WriteStructs(b, s.boxes, DefaultCapacity, &Box{})
	return b.Align()
}
