// Package engine wires the window, renderer, compositor, shader watcher and stdin commands into one
// frame loop that runs on the main thread.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/command"
	"github.com/Carmen-Shannon/oxy-rt/engine/compositor"
	"github.com/Carmen-Shannon/oxy-rt/engine/config"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// commandBuffer bounds the number of parsed commands waiting for the next frame.
const commandBuffer = 64

// zoomStep is the field of view change per scroll notch, in radians.
const zoomStep = float32(0.05)

// Engine owns every runtime component and drives the frame loop.
type Engine interface {
	// Run executes frames until the window closes or ctx is cancelled. It must be called from the
	// goroutine that created the engine.
	//
	// Parameters:
	//   - ctx: stops the loop and the command reader when cancelled
	//
	// Returns:
	//   - error: a fatal renderer error, or nil on a normal close
	Run(ctx context.Context) error

	// Compositor returns the frame compositor.
	Compositor() compositor.Compositor

	// Scene returns the scene edited by commands.
	Scene() scene.Scene

	// Camera returns the camera driven by input and commands.
	Camera() camera.Camera

	// Quit asks the loop to exit after the current frame.
	Quit()

	// Release closes the watcher, releases GPU resources and destroys the window.
	Release()
}

type engine struct {
	cfg config.Config

	window      window.Window
	renderer    renderer.Renderer
	compositor  compositor.Compositor
	watcher     shader.Watcher
	scene       scene.Scene
	camera      camera.Camera
	controller  camera.CameraController
	interpreter command.Interpreter
	commands    chan command.Command
	input       io.Reader

	profiler         *profiler.Profiler
	profilingEnabled bool
	renderFrameLimit time.Duration
	frameCallback    func(deltaTime float32)

	lastFrame time.Time
	fatal     error
}

// NewEngine creates the window, renderer and compositor described by cfg and initializes every pass.
// Must be called from the main goroutine; the window locks it to its OS thread.
//
// Parameters:
//   - cfg: the application configuration
//   - options: functional options, see WithScene, WithProfiling, WithCommandInput
//
// Returns:
//   - Engine: the initialized engine
//   - error: error if the window, GPU device or compositor cannot be created
func NewEngine(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		logging.LogWarnErr(err, "Unknown log level %q, keeping info", cfg.Log.Level)
	}

	e := &engine{
		cfg:      cfg,
		commands: make(chan command.Command, commandBuffer),
		input:    os.Stdin,
		profiler: profiler.NewProfiler(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.scene == nil {
		e.scene = scene.NewScene()
	}

	if err := e.init(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func (e *engine) init() error {
	var err error
	e.window, err = window.NewWindow(
		window.WithTitle(e.cfg.Window.Title),
		window.WithSize(e.cfg.Window.Width, e.cfg.Window.Height),
	)
	if err != nil {
		return err
	}

	e.renderer, err = renderer.NewRenderer(renderer.BackendTypeWGPU, e.window,
		renderer.WithPresentMode(e.cfg.PresentMode()),
		renderer.WithDeviceLabel("oxy-rt"),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	pos := e.cfg.Camera.Position
	e.camera = camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{pos[0], pos[1], pos[2]}),
		camera.WithFov(mgl32.DegToRad(e.cfg.Camera.FovDegrees)),
	)
	e.controller = camera.NewFlyController(
		camera.WithSpeed(e.cfg.Camera.Speed),
		camera.WithSensitivity(e.cfg.Camera.Sensitivity),
	)

	cache := shader.NewCache(shader.WithRoot(e.cfg.Shaders.Dir))
	options := []compositor.CompositorBuilderOption{
		compositor.WithShaderCache(cache),
		compositor.WithRegistry(texture.NewRegistry(e.renderer, texture.WithDecodeWorkers(e.cfg.Workers.Decode))),
		compositor.WithScene(e.scene),
		compositor.WithCamera(e.camera),
		compositor.WithMaxBloomMips(uint32(e.cfg.Render.BloomMaxMips)),
	}
	if env := e.cfg.Render.Environment; env != "" {
		options = append(options, compositor.WithEnvironment(filepath.Clean(env)))
	}
	e.compositor = compositor.NewCompositor(e.renderer, options...)
	if err := e.compositor.Init(); err != nil {
		return fmt.Errorf("init compositor: %w", err)
	}

	if e.cfg.Shaders.Watch {
		e.watcher, err = shader.NewWatcher(cache, func(paths []string) {
			logging.LogInfo("Shader files changed: %v", paths)
			e.compositor.RequestReload(paths...)
		})
		if err != nil {
			logging.LogWarnErr(err, "Shader hot reload disabled")
		}
	}

	e.interpreter = command.NewInterpreter(e.scene, e.camera, command.WithReload(e.compositor.RequestReload))
	e.bindInput()
	return nil
}

// bindInput routes window callbacks to the compositor and fly controller.
func (e *engine) bindInput() {
	e.window.SetResizeCallback(e.compositor.Resize)
	e.window.SetKeyDownCallback(e.controller.KeyDown)
	e.window.SetKeyUpCallback(e.controller.KeyUp)
	e.window.SetMouseMoveCallback(e.controller.MouseMove)
	e.window.SetLookCallback(func(pressed bool, x, y int32) {
		if pressed {
			e.controller.BeginLook(x, y)
		} else {
			e.controller.EndLook()
		}
	})
	e.window.SetScrollCallback(func(delta float32) {
		e.camera.SetFov(e.camera.Fov() - delta*zoomStep)
	})
	e.window.SetFrameCallback(e.frame)
}

func (e *engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.input != nil {
		go func() {
			if err := command.Scan(ctx, e.input, e.commands); err != nil && !errors.Is(err, context.Canceled) {
				logging.LogWarnErr(err, "Command input closed")
			}
		}()
	}
	go func() {
		<-ctx.Done()
		e.Quit()
	}()

	e.lastFrame = time.Now()
	e.window.Run()
	return e.fatal
}

// frame runs once per window loop iteration on the main thread.
func (e *engine) frame() {
	now := time.Now()
	dt := float32(now.Sub(e.lastFrame).Seconds())
	e.lastFrame = now

	// Commands mutate the scene only between frames.
	e.interpreter.Drain(e.commands)
	e.controller.Apply(e.camera, dt)
	if e.watcher != nil {
		if err := e.watcher.Sync(); err != nil {
			logging.LogWarnErr(err, "Shader watcher sync failed")
		}
	}

	skipped := false
	if err := e.compositor.Frame(); err != nil {
		switch {
		case errors.Is(err, compositor.ErrFrameSkipped):
			skipped = true
		case renderer.IsFatal(err):
			logging.LogError("Renderer is unusable: %v", err)
			e.fatal = err
			e.Quit()
			return
		default:
			logging.LogWarnErr(err, "Frame failed")
			skipped = true
		}
	}

	if e.frameCallback != nil {
		e.frameCallback(dt)
	}
	if e.profilingEnabled {
		e.profiler.Tick(skipped)
	}
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) Compositor() compositor.Compositor {
	return e.compositor
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Quit() {
	if e.window != nil {
		e.window.RequestClose()
	}
}

func (e *engine) Release() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			logging.LogWarnErr(err, "Closing shader watcher")
		}
		e.watcher = nil
	}
	if e.compositor != nil {
		e.compositor.Release()
	}
	if e.renderer != nil {
		e.renderer.Release()
		e.renderer = nil
	}
	if e.window != nil {
		_ = e.window.Close()
	}
}
