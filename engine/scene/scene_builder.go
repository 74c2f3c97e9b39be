package scene

import "github.com/Carmen-Shannon/oxy-rt/engine/logging"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithCapacity lowers the per-kind object capacity enforced by Push. Values below 1 are ignored and
// values above DefaultCapacity are clamped. Std140 always lays out DefaultCapacity slots per kind to match the raytrace shader.
//
// Parameters:
//   - n: the capacity of each collection
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCapacity(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			return
		}
		s.capacity = min(n, DefaultCapacity)
	}
}

// WithObjects pushes initial objects into the scene in order, so the last object ends up at index 0.
// Objects beyond the capacity are dropped with a warning.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...Object) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			if err := s.push(obj); err != nil {
				logging.LogWarn("dropping initial scene object: %v", err)
			}
		}
	}
}
