package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var errNotCreated = errors.New("window is not created")

type glfwWindow struct {
	window    *glfw.Window
	destroyed bool
}

// newPlatformWindow creates the GLFW window without a client API and registers input callbacks.
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(limit(w.minWidth), limit(w.minHeight), limit(w.maxWidth), limit(w.maxHeight))
	w.platform = &glfwWindow{window: win}

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
			return
		}
		switch action {
		case glfw.Press, glfw.Repeat:
			if w.onKeyDown != nil {
				w.onKeyDown(uint32(key))
			}
		case glfw.Release:
			if w.onKeyUp != nil {
				w.onKeyUp(uint32(key))
			}
		}
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonRight || w.onLook == nil {
			return
		}
		x, y := win.GetCursorPos()
		w.onLook(action == glfw.Press, int32(x), int32(y))
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if w.onMouseMove != nil {
			w.onMouseMove(int32(x), int32(y))
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	// Framebuffer size is in pixels, which differs from the window size on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})
	w.width, w.height = win.GetFramebufferSize()

	return nil
}

func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

func (gw *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	if gw == nil || gw.destroyed {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func (gw *glfwWindow) running() bool {
	return gw != nil && !gw.destroyed && !gw.window.ShouldClose()
}

func (gw *glfwWindow) poll() {
	glfw.PollEvents()
}

func (gw *glfwWindow) requestClose() {
	if gw != nil && !gw.destroyed {
		gw.window.SetShouldClose(true)
	}
}

func (gw *glfwWindow) destroy() {
	gw.destroyed = true
	gw.window.Destroy()
	glfw.Terminate()
}
