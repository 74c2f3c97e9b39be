// Package window owns the GLFW window the compositor presents into and forwards its input.
package window

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the presentation target and input source of the engine.
// Every method must be called from the thread that created the window.
type Window interface {
	// SetFrameCallback sets the function called once per loop iteration after events are polled.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetFrameCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes.
	// Minimizing the window reports a zero size.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer width and height in pixels
	SetResizeCallback(callback func(width, height uint32))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetLookCallback sets the callback for the look button (right mouse).
	//
	// Parameters:
	//   - callback: function receiving whether the button is held and the cursor position
	SetLookCallback(callback func(pressed bool, x, y int32))

	// SetMouseMoveCallback sets the callback for cursor movement.
	SetMouseMoveCallback(callback func(x, y int32))

	// SetScrollCallback sets the callback for vertical scroll. Positive delta scrolls up.
	SetScrollCallback(callback func(delta float32))

	// SurfaceDescriptor returns the platform descriptor used to create the WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is open and has not been asked to close.
	IsRunning() bool

	// Run polls events and calls the frame callback until the window closes.
	Run()

	// RequestClose asks the loop in Run to exit after the current iteration.
	RequestClose()

	// Close destroys the window and terminates GLFW. Safe to call more than once.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

type engineWindow struct {
	title string

	width  int
	height int

	// Size limits in screen coordinates; zero leaves the bound free.
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int

	platform  *glfwWindow
	closeOnce sync.Once

	onFrame     func()
	onResize    func(width, height uint32)
	onKeyDown   func(keyCode uint32)
	onKeyUp     func(keyCode uint32)
	onLook      func(pressed bool, x, y int32)
	onMouseMove func(x, y int32)
	onScroll    func(delta float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. The calling goroutine is locked to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: error if GLFW or the window cannot be initialized
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-rt",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetFrameCallback(callback func()) {
	w.onFrame = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height uint32)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetLookCallback(callback func(pressed bool, x, y int32)) {
	w.onLook = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.platform.running()
}

func (w *engineWindow) Run() {
	for w.IsRunning() {
		w.platform.poll()
		if !w.IsRunning() {
			return
		}
		if w.onFrame != nil {
			w.onFrame()
		}
	}
}

func (w *engineWindow) RequestClose() {
	w.platform.requestClose()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return errNotCreated
	}
	w.closeOnce.Do(w.platform.destroy)
	return nil
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// resized records a framebuffer size change and forwards it. Negative sizes are clamped to zero.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = max(width, 0), max(height, 0)
	if w.onResize != nil {
		w.onResize(uint32(w.width), uint32(w.height))
	}
}
