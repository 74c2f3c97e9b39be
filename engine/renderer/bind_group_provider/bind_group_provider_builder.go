package bind_group_provider

import "github.com/Carmen-Shannon/oxy-rt/engine/renderer"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds a buffer to a WGSL variable name.
//
// Parameters:
//   - name: the WGSL variable name
//   - buf: the buffer to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the named variable
func WithBuffer(name string, buf renderer.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[name] = buf
	}
}

// WithTextureView binds a texture view to a WGSL variable name.
//
// Parameters:
//   - name: the WGSL variable name
//   - view: the texture view to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture view for the named variable
func WithTextureView(name string, view renderer.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[name] = view
	}
}

// WithSampler binds a sampler to a WGSL variable name.
//
// Parameters:
//   - name: the WGSL variable name
//   - s: the sampler to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the named variable
func WithSampler(name string, s renderer.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[name] = s
	}
}
