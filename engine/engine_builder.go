package engine

import (
	"io"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables the once-per-second frame statistics log line.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithScene sets the scene the engine renders and edits. Defaults to an empty scene.
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithCommandInput sets where command lines are read from. Defaults to os.Stdin; nil disables commands.
func WithCommandInput(r io.Reader) EngineBuilderOption {
	return func(e *engine) {
		e.input = r
	}
}

// WithFrameCallback registers a function called after every frame on the main thread.
//
// Parameters:
//   - callback: receives the delta time of the frame in seconds
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameCallback(callback func(deltaTime float32)) EngineBuilderOption {
	return func(e *engine) {
		e.frameCallback = callback
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
