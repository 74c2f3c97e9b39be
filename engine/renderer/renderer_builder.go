package renderer

import "github.com/cogentcore/webgpu/wgpu"

type rendererConfig struct {
	presentMode          PresentMode
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
	label                string
}

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*rendererConfig)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync, Uncapped or Mailbox)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithHighPerformanceAdapter prefers a discrete GPU when more than one adapter is available.
func WithHighPerformanceAdapter() RendererBuilderOption {
	return func(c *rendererConfig) {
		c.powerPreference = wgpu.PowerPreferenceHighPerformance
	}
}

// WithDeviceLabel sets the debug label of the GPU device.
func WithDeviceLabel(label string) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.label = label
	}
}
