package scene

import _ "embed"

// ObjectsUniformSource is the WGSL definition of the Objects uniform and the structs it nests.
// It matches the std140 layout produced by Scene.Std140 at the default capacity.
//
//go:embed assets/objects.wgsl
var ObjectsUniformSource string

// Serialized sizes in bytes at DefaultCapacity.
const (
	MaterialSize       = 64
	SphereSize         = 80
	PlaneSize          = 80
	BoxSize            = 96
	ObjectsUniformSize = 16 + DefaultCapacity*(SphereSize+PlaneSize+BoxSize)
)
