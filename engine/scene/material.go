package scene

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-rt/engine/std140"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialType selects the scattering model the raytrace shader applies to a surface.
type MaterialType uint32

const (
	// MaterialLambertian scatters diffusely around the surface normal.
	MaterialLambertian MaterialType = iota

	// MaterialMetal reflects about the normal, blurred by roughness.
	MaterialMetal

	// MaterialDielectric refracts using the index of refraction.
	MaterialDielectric
)

func (t MaterialType) String() string {
	switch t {
	case MaterialLambertian:
		return "lambertian"
	case MaterialMetal:
		return "metal"
	case MaterialDielectric:
		return "dielectric"
	default:
		return fmt.Sprintf("MaterialType(%d)", uint32(t))
	}
}

// ParseMaterialType parses a material name. Accepted names are lambertian (or diffuse),
// metal, and dielectric (or glass), case-insensitive.
//
// Parameters:
//   - s: the name to parse
//
// Returns:
//   - MaterialType: the parsed type
//   - error: error if the name is not recognized
func ParseMaterialType(s string) (MaterialType, error) {
	switch strings.ToLower(s) {
	case "lambertian", "diffuse":
		return MaterialLambertian, nil
	case "metal":
		return MaterialMetal, nil
	case "dielectric", "glass":
		return MaterialDielectric, nil
	default:
		return 0, fmt.Errorf("unknown material type %q", s)
	}
}

// Material describes how a surface scatters and emits light.
type Material struct {
	Type      MaterialType
	Albedo    mgl32.Vec3
	Emission  mgl32.Vec3
	Roughness float32
	IOR       float32
}

// DefaultMaterial returns a light grey Lambertian material.
func DefaultMaterial() Material {
	return Material{
		Type:   MaterialLambertian,
		Albedo: mgl32.Vec3{0.8, 0.8, 0.8},
		IOR:    1.5,
	}
}

// Diffuse returns a Lambertian material with the given albedo.
func Diffuse(albedo mgl32.Vec3) Material {
	m := DefaultMaterial()
	m.Albedo = albedo
	return m
}

// Std140 serializes the material as
// { type u32, albedo vec3, emission vec3, roughness f32, ior f32 } (64 bytes).
func (m Material) Std140() *std140.Buffer {
	return std140.New().
		WriteU32(uint32(m.Type)).
		WriteVec3(m.Albedo).
		WriteVec3(m.Emission).
		WriteF32(m.Roughness).
		WriteF32(m.IOR).
		Align()
}
