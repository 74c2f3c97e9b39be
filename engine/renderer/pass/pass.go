// Package pass implements the fullscreen GPU passes of a frame: raytrace, bloom and the final composite.
//
// Every pass owns an output Target and a bundle of pipelines, binding sets and intermediate
// resources. Rebuilding a pass builds a complete new bundle before the old one is released,
// so a failed rebuild always leaves the pass drawable.
package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ColorFormat is the format of every intermediate color target.
const ColorFormat = wgpu.TextureFormatRGBA16Float

// ErrStaleBinding is returned by Encode when a pass is bound to an upstream output that has since been reallocated.
var ErrStaleBinding = errors.New("pass is bound to a stale upstream output")

// Target is the output of a pass. Generation changes every time the texture is reallocated.
type Target struct {
	Texture    renderer.Texture
	View       renderer.TextureView
	Generation uint64
}

// Valid reports whether the target has a texture.
func (t Target) Valid() bool {
	return t.Texture != nil && t.View != nil
}

// Source is anything producing an output Target a pass can bind.
type Source interface {
	Name() string
	Output() Target
}

// Frame carries the per-frame recording state passed to Encode.
type Frame struct {
	Encoder renderer.CommandEncoder
	// Surface is the view of the acquired presentable texture.
	Surface renderer.TextureView
}

// Pass is one stage of the frame.
type Pass interface {
	// Name returns the pass name used as the label prefix of its GPU objects.
	Name() string

	// Output returns the current output target. The final pass renders to the surface and has no target.
	Output() Target

	// Generation returns the bundle generation, incremented on every successful rebuild.
	Generation() uint64

	// Programs returns the shader paths the pass draws with.
	Programs() []string

	// Resize reallocates the output target for the new size and rebuilds the bundle against it.
	// On failure the previous target and bundle are kept.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the target or bundle could not be created
	Resize(width, height uint32) error

	// PrepareResize builds the output target and bundle for a new size against input without installing them.
	// The pass keeps drawing its current bundle until the returned Resizing is committed.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//   - input: the upstream output the new bundle binds, usually the Output of the upstream's own Resizing;
	//     ignored by passes without an upstream
	//
	// Returns:
	//   - Resizing: the staged resize
	//   - error: an error if the target or bundle could not be created; nothing is left allocated
	PrepareResize(width, height uint32, input Target) (Resizing, error)

	// Rebuild rebuilds the bundle with the current programs and upstream outputs, keeping the output target.
	//
	// Returns:
	//   - error: an error if the bundle could not be built; the previous bundle is kept
	Rebuild() error

	// Stale reports whether an upstream output changed since the bundle was built.
	Stale() bool

	// Encode records the pass into the frame.
	//
	// Parameters:
	//   - f: the frame being recorded
	//
	// Returns:
	//   - error: ErrStaleBinding if an upstream output changed since the last rebuild, or an error if the pass is not built
	Encode(f Frame) error

	// Release releases the output target and the bundle.
	Release()
}

// Resizing is a resize built by PrepareResize and not yet installed.
// Exactly one of Commit or Discard must be called, and staged resizes of chained passes
// must be committed in the order they were prepared.
type Resizing interface {
	// Output returns the target the pass owns after Commit, with the generation it will have.
	Output() Target

	// Commit installs the staged target and bundle, releasing the previous ones.
	Commit()

	// Discard releases the staged target and bundle, leaving the pass unchanged.
	Discard()
}

type resizing struct {
	output  Target
	commit  func()
	discard func()
}

func (r *resizing) Output() Target {
	return r.output
}

func (r *resizing) Commit() {
	r.commit()
}

func (r *resizing) Discard() {
	r.discard()
}

// commitResize commits r when preparing it succeeded.
func commitResize(r Resizing, err error) error {
	if err != nil {
		return err
	}
	r.Commit()
	return nil
}

// Resources are the shared objects every pass borrows.
type Resources struct {
	Renderer renderer.Renderer
	Quad     *Quad
	Cache    shader.Cache
	// Camera is the camera uniform buffer.
	Camera renderer.Buffer
}

func (res Resources) validate() error {
	switch {
	case res.Renderer == nil:
		return errors.New("pass: no renderer")
	case res.Quad == nil:
		return errors.New("pass: no fullscreen quad")
	case res.Cache == nil:
		return errors.New("pass: no shader cache")
	case res.Camera == nil:
		return errors.New("pass: no camera buffer")
	}
	return nil
}

// base holds the output and generation bookkeeping shared by every pass.
type base struct {
	name string
	res  Resources

	output    Target
	outputGen uint64
	gen       uint64

	// bound records the upstream output generation the current bundle was built against.
	upstream Source
	bound    uint64
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Output() Target {
	return b.output
}

func (b *base) Generation() uint64 {
	return b.gen
}

func (b *base) Stale() bool {
	return b.upstream != nil && b.upstream.Output().Generation != b.bound
}

// checkUpstream returns the upstream output to bind, or an error if it has none.
func (b *base) checkUpstream() (Target, error) {
	if b.upstream == nil {
		return Target{}, nil
	}
	out := b.upstream.Output()
	if !out.Valid() {
		return Target{}, fmt.Errorf("pass %s: upstream %s has no output", b.name, b.upstream.Name())
	}
	return out, nil
}

// checkStale returns ErrStaleBinding if the bundle was built against an older upstream output.
func (b *base) checkStale() error {
	if b.Stale() {
		return fmt.Errorf("pass %s: bound %s generation %d, current %d: %w", b.name, b.upstream.Name(), b.bound, b.upstream.Output().Generation, ErrStaleBinding)
	}
	return nil
}

// newTarget allocates a color target, returning it without a generation.
func (b *base) newTarget(label string, width, height uint32, usage wgpu.TextureUsage) (Target, error) {
	tex, err := b.res.Renderer.CreateTexture(renderer.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: ColorFormat,
		Usage:  usage,
	})
	if err != nil {
		return Target{}, err
	}
	view, err := tex.CreateView(renderer.TextureViewDescriptor{Label: label + " View"})
	if err != nil {
		tex.Release()
		return Target{}, err
	}
	return Target{Texture: tex, View: view}, nil
}

// stageOutput stamps t with the generation it takes when installed by swapOutput.
func (b *base) stageOutput(t Target) Target {
	t.Generation = b.outputGen + 1
	return t
}

// swapOutput installs a target returned by stageOutput, releasing the previous one.
func (b *base) swapOutput(t Target) {
	releaseTarget(b.output)
	b.outputGen = t.Generation
	b.output = t
}

// upstreamInput returns the current upstream output for a resize driven by the pass alone.
func (b *base) upstreamInput() Target {
	if b.upstream == nil {
		return Target{}
	}
	return b.upstream.Output()
}

func releaseTarget(t Target) {
	if t.View != nil {
		t.View.Release()
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// clearBlack is the clear color of every intermediate target.
var clearBlack = wgpu.Color{R: 0, G: 0, B: 0, A: 1}
