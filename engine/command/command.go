// Package command parses and executes the scene-editing commands read from stdin.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrEmpty is returned by Parse for a blank line.
	ErrEmpty = errors.New("empty command")

	// ErrUnknownCommand is returned by Parse for a command name it does not know.
	ErrUnknownCommand = errors.New("unknown command")
)

// ParseError reports a malformed command line.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Command is a parsed command line. The set of commands is closed.
type Command interface {
	// Name returns the command name as typed.
	Name() string
	command()
}

// PrintPosition logs the camera position.
type PrintPosition struct{}

// PrintCamera logs the camera state.
type PrintCamera struct{}

// AddObject pushes an object into the scene.
type AddObject struct {
	Object scene.Object
}

// RemoveObject removes the object with ID from the scene.
type RemoveObject struct {
	ID uuid.UUID
}

// ListObjects logs every object in the scene.
type ListObjects struct{}

// ClearObjects removes every object from the scene.
type ClearObjects struct{}

// LookAt points the camera at Target.
type LookAt struct {
	Target mgl32.Vec3
}

// LookAtSphere points the camera at the newest sphere.
type LookAtSphere struct{}

// Reload requests a shader reload of Paths, or of every program when empty.
type Reload struct {
	Paths []string
}

func (PrintPosition) Name() string { return "pos" }
func (PrintCamera) Name() string   { return "camera" }
func (c AddObject) Name() string   { return c.Object.Kind().String() }
func (RemoveObject) Name() string  { return "remove" }
func (ListObjects) Name() string   { return "list" }
func (ClearObjects) Name() string  { return "clear" }
func (LookAt) Name() string        { return "lookAt" }
func (LookAtSphere) Name() string  { return "lookAtSphere" }
func (Reload) Name() string        { return "reload" }

func (PrintPosition) command() {}
func (PrintCamera) command()   {}
func (AddObject) command()     {}
func (RemoveObject) command()  {}
func (ListObjects) command()   {}
func (ClearObjects) command()  {}
func (LookAt) command()        {}
func (LookAtSphere) command()  {}
func (Reload) command()        {}

// Parse parses one whitespace-separated command line.
//
//	pos
//	camera
//	sphere x y z r cr cg cb [material [roughness ior]]
//	plane nx ny nz d cr cg cb [material [roughness ior]]
//	box minx miny minz maxx maxy maxz cr cg cb [material [roughness ior]]
//	remove <uuid>
//	list
//	clear
//	lookAt x y z
//	lookAtSphere
//	reload [path...]
//
// Parameters:
//   - line: the input line
//
// Returns:
//   - Command: the parsed command
//   - error: ErrEmpty, ErrUnknownCommand, or a *ParseError for malformed arguments
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}
	a := &args{name: fields[0], rest: fields[1:]}

	var cmd Command
	switch a.name {
	case "pos":
		cmd = PrintPosition{}
	case "camera":
		cmd = PrintCamera{}
	case "list":
		cmd = ListObjects{}
	case "clear":
		cmd = ClearObjects{}
	case "lookAtSphere":
		cmd = LookAtSphere{}
	case "reload":
		return Reload{Paths: a.rest}, nil
	case "lookAt":
		cmd = LookAt{Target: a.vec3()}
	case "remove":
		id, err := uuid.Parse(a.next())
		if err != nil && a.err == nil {
			a.err = err
		}
		cmd = RemoveObject{ID: id}
	case "sphere":
		center, radius := a.vec3(), a.float()
		albedo := a.vec3()
		cmd = AddObject{Object: scene.NewSphere(center, radius, a.material(albedo))}
	case "plane":
		normal, distance := a.vec3(), a.float()
		albedo := a.vec3()
		if a.err == nil && normal.Len() == 0 {
			a.err = errors.New("plane normal must not be zero")
		}
		cmd = AddObject{Object: scene.NewPlane(normal, distance, a.material(albedo))}
	case "box":
		lo, hi := a.vec3(), a.vec3()
		albedo := a.vec3()
		cmd = AddObject{Object: scene.NewBox(lo, hi, a.material(albedo))}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, a.name)
	}

	if err := a.finish(); err != nil {
		return nil, &ParseError{Name: a.name, Err: err}
	}
	return cmd, nil
}

// args consumes the arguments of one command, keeping the first error.
type args struct {
	name string
	rest []string
	pos  int
	err  error
}

func (a *args) next() string {
	if a.pos >= len(a.rest) {
		if a.err == nil {
			a.err = fmt.Errorf("missing argument %d", a.pos+1)
		}
		a.pos++
		return ""
	}
	s := a.rest[a.pos]
	a.pos++
	return s
}

func (a *args) more() bool {
	return a.pos < len(a.rest)
}

func (a *args) float() float32 {
	s := a.next()
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		a.err = fmt.Errorf("argument %d: %q is not a number", a.pos, s)
		return 0
	}
	return float32(v)
}

func (a *args) vec3() mgl32.Vec3 {
	return mgl32.Vec3{a.float(), a.float(), a.float()}
}

// material parses the optional [material [roughness ior]] suffix.
func (a *args) material(albedo mgl32.Vec3) scene.Material {
	m := scene.Diffuse(albedo)
	if a.err != nil || !a.more() {
		return m
	}
	kind, err := scene.ParseMaterialType(a.next())
	if err != nil {
		a.err = err
		return m
	}
	m.Type = kind
	if a.more() {
		m.Roughness = a.float()
		m.IOR = a.float()
	}
	return m
}

// finish reports the first argument error, or an error for unconsumed arguments.
func (a *args) finish() error {
	if a.err != nil {
		return a.err
	}
	if a.more() {
		return fmt.Errorf("unexpected argument %q", a.rest[a.pos])
	}
	return nil
}
