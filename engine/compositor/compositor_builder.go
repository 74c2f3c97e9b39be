package compositor

import (
	"image/color"

	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
)

// CompositorBuilderOption is a functional option applied to a compositor by NewCompositor.
type CompositorBuilderOption func(*compositor)

// WithShaderCache sets the cache the passes load their programs from.
//
// Parameters:
//   - cache: the shader cache, usually rooted at the shader directory
//
// Returns:
//   - CompositorBuilderOption: a function that applies the cache
func WithShaderCache(cache shader.Cache) CompositorBuilderOption {
	return func(c *compositor) {
		c.cache = cache
	}
}

// WithRegistry sets the texture registry. The compositor takes ownership and releases it.
func WithRegistry(reg texture.Registry) CompositorBuilderOption {
	return func(c *compositor) {
		c.registry = reg
	}
}

// WithScene sets the scene uploaded every frame.
func WithScene(s scene.Scene) CompositorBuilderOption {
	return func(c *compositor) {
		c.scene = s
	}
}

// WithCamera sets the camera uploaded every frame.
func WithCamera(cam camera.Camera) CompositorBuilderOption {
	return func(c *compositor) {
		c.camera = cam
	}
}

// WithEnvironment sets the cubemap directory sampled by rays that leave the scene.
//
// Parameters:
//   - dir: a directory holding the six face images
//
// Returns:
//   - CompositorBuilderOption: a function that applies the environment
func WithEnvironment(dir string) CompositorBuilderOption {
	return func(c *compositor) {
		c.environment = dir
	}
}

// WithEnvironmentColor sets the color of the solid cubemap used when no environment loads.
func WithEnvironmentColor(tint color.RGBA) CompositorBuilderOption {
	return func(c *compositor) {
		c.environmentTint = tint
	}
}

// WithMaxBloomMips caps the number of bloom levels. Zero leaves the chain uncapped.
func WithMaxBloomMips(n uint32) CompositorBuilderOption {
	return func(c *compositor) {
		c.maxMips = n
	}
}

// WithPrograms overrides the shader paths of the raytrace and final passes. Empty paths keep their defaults.
//
// Parameters:
//   - raytrace: the raytrace program path
//   - final: the final composite program path
//
// Returns:
//   - CompositorBuilderOption: a function that applies the paths
func WithPrograms(raytrace, final string) CompositorBuilderOption {
	return func(c *compositor) {
		if raytrace != "" {
			c.raytraceProgram = raytrace
		}
		if final != "" {
			c.finalProgram = final
		}
	}
}

// WithBloomPrograms overrides the shader paths of the bloom stages.
func WithBloomPrograms(programs pass.BloomPrograms) CompositorBuilderOption {
	return func(c *compositor) {
		c.bloomPrograms = programs
	}
}
