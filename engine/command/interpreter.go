package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoSpheres is returned by LookAtSphere when the scene holds no spheres.
var ErrNoSpheres = errors.New("scene has no spheres")

// ErrNotFound is returned by RemoveObject when no object has the given ID.
var ErrNotFound = errors.New("object not found")

// Interpreter applies parsed commands to a scene and camera.
// Not safe for concurrent use; call it from the thread that renders frames.
type Interpreter interface {
	// Execute applies one command.
	//
	// Parameters:
	//   - cmd: the command to apply
	//
	// Returns:
	//   - error: error if the command could not be applied; the scene is left unchanged
	Execute(cmd Command) error

	// Drain executes every command currently buffered in ch without blocking.
	// Failures are logged and do not stop the drain.
	//
	// Parameters:
	//   - ch: the command channel fed by Scan
	//
	// Returns:
	//   - int: the number of commands received
	Drain(ch <-chan Command) int
}

type interpreter struct {
	scene  scene.Scene
	camera camera.Camera
	reload func(paths ...string)
}

var _ Interpreter = &interpreter{}

// NewInterpreter creates an Interpreter over s and cam.
//
// Parameters:
//   - s: the scene edited by object commands
//   - cam: the camera driven by lookAt and reported by pos and camera
//   - options: functional options, see WithReload
//
// Returns:
//   - Interpreter: the interpreter
func NewInterpreter(s scene.Scene, cam camera.Camera, options ...InterpreterOption) Interpreter {
	in := &interpreter{scene: s, camera: cam}
	for _, opt := range options {
		opt(in)
	}
	return in
}

func (in *interpreter) Execute(cmd Command) error {
	switch c := cmd.(type) {
	case PrintPosition:
		p := in.camera.Position()
		logging.LogInfo("Camera position: (%.3f, %.3f, %.3f)", p.X(), p.Y(), p.Z())
	case PrintCamera:
		in.logCamera()
	case AddObject:
		if err := in.scene.Push(c.Object); err != nil {
			return err
		}
		logging.LogInfo("Added %s %s", c.Object.Kind(), c.Object.ID())
	case RemoveObject:
		if !in.scene.Remove(c.ID) {
			return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
		}
		logging.LogInfo("Removed %s", c.ID)
	case ListObjects:
		objects := in.scene.Objects()
		logging.LogInfo("Scene has %d objects", len(objects))
		for _, obj := range objects {
			logging.LogInfo("  %s", describe(obj))
		}
	case ClearObjects:
		in.scene.Clear()
		logging.LogInfo("Cleared scene")
	case LookAt:
		in.camera.LookAt(c.Target)
	case LookAtSphere:
		spheres := in.scene.Spheres()
		if len(spheres) == 0 {
			return ErrNoSpheres
		}
		in.camera.LookAt(spheres[0].Center)
	case Reload:
		if in.reload == nil {
			return errors.New("shader reload is not available")
		}
		in.reload(c.Paths...)
	default:
		return fmt.Errorf("%w %T", ErrUnknownCommand, cmd)
	}
	return nil
}

func (in *interpreter) Drain(ch <-chan Command) int {
	n := 0
	for {
		select {
		case cmd, ok := <-ch:
			if !ok {
				return n
			}
			n++
			if err := in.Execute(cmd); err != nil {
				logging.LogWarnErr(err, "Command %s failed", cmd.Name())
			}
		default:
			return n
		}
	}
}

func (in *interpreter) logCamera() {
	p, f := in.camera.Position(), in.camera.Forward()
	logging.LogInfo(
		"Camera position=(%.3f, %.3f, %.3f) forward=(%.3f, %.3f, %.3f) yaw=%.1f pitch=%.1f fov=%.1f aspect=%.3f frame=%d",
		p.X(), p.Y(), p.Z(),
		f.X(), f.Y(), f.Z(),
		mgl32.RadToDeg(in.camera.Yaw()), mgl32.RadToDeg(in.camera.Pitch()),
		mgl32.RadToDeg(in.camera.Fov()), in.camera.Aspect(), in.camera.FrameIndex(),
	)
}

func describe(obj scene.Object) string {
	m := obj.Material()
	switch o := obj.(type) {
	case *scene.Sphere:
		return fmt.Sprintf("sphere %s center=%v radius=%.3f material=%s", o.ID(), o.Center, o.Radius, m.Type)
	case *scene.Plane:
		return fmt.Sprintf("plane %s normal=%v distance=%.3f material=%s", o.ID(), o.Normal, o.Distance, m.Type)
	case *scene.Box:
		return fmt.Sprintf("box %s min=%v max=%v material=%s", o.ID(), o.Min, o.Max, m.Type)
	default:
		return fmt.Sprintf("%s %s", obj.Kind(), obj.ID())
	}
}

// Scan reads commands from r one line at a time and sends them to out until r is exhausted
// or ctx is done. Lines that fail to parse are logged and skipped. Blank lines are ignored.
//
// Parameters:
//   - ctx: cancels the scan between lines
//   - r: the line source, typically os.Stdin
//   - out: receives parsed commands; Scan does not close it
//
// Returns:
//   - error: the read error, ctx.Err() on cancellation, or nil at end of input
func Scan(ctx context.Context, r io.Reader, out chan<- Command) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, err := Parse(line)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			logging.LogWarnErr(err, "Ignoring command %q", line)
			continue
		}
		logging.LogInfo("Received command %s", cmd.Name())
		select {
		case out <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
