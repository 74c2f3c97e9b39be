package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController turns window input into camera motion.
// Input callbacks may arrive from any goroutine; Apply is called once per frame on the render thread.
type CameraController interface {
	// KeyDown records a pressed key.
	//
	// Parameters:
	//   - keyCode: the GLFW key code
	KeyDown(keyCode uint32)

	// KeyUp records a released key.
	//
	// Parameters:
	//   - keyCode: the GLFW key code
	KeyUp(keyCode uint32)

	// BeginLook starts mouse-look at the given cursor position.
	BeginLook(x, y int32)

	// EndLook stops mouse-look.
	EndLook()

	// MouseMove accumulates cursor movement into pending yaw and pitch while looking.
	//
	// Parameters:
	//   - x, y: the cursor position in window coordinates
	MouseMove(x, y int32)

	// Apply moves and rotates the camera by the input gathered since the last call.
	//
	// Parameters:
	//   - cam: the camera to drive
	//   - dt: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - bool: true if the camera moved or rotated
	Apply(cam Camera, dt float32) bool

	// Speed returns the movement speed in world units per second.
	Speed() float32

	// Sensitivity returns the mouse-look sensitivity in radians per pixel.
	Sensitivity() float32
}

type flyController struct {
	mu *sync.Mutex

	pressed map[uint32]bool

	looking  bool
	lastX    int32
	lastY    int32
	dYaw     float32
	dPitch   float32
	speed    float32
	sens     float32
	boostMul float32
}

var _ CameraController = &flyController{}

// NewFlyController creates a first-person fly controller.
// W/S move along the view direction, A/D strafe, Space/Left Shift move along world Y,
// and holding Left Control multiplies the speed.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewFlyController(options ...CameraControllerOption) CameraController {
	fc := &flyController{
		mu:       &sync.Mutex{},
		pressed:  make(map[uint32]bool),
		speed:    4.0,
		sens:     0.002,
		boostMul: 4.0,
	}
	for _, option := range options {
		option(fc)
	}
	return fc
}

func (fc *flyController) KeyDown(keyCode uint32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.pressed[keyCode] = true
}

func (fc *flyController) KeyUp(keyCode uint32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.pressed, keyCode)
}

func (fc *flyController) BeginLook(x, y int32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.looking = true
	fc.lastX, fc.lastY = x, y
}

func (fc *flyController) EndLook() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.looking = false
}

func (fc *flyController) MouseMove(x, y int32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if !fc.looking {
		return
	}
	fc.dYaw += float32(x-fc.lastX) * fc.sens
	fc.dPitch -= float32(y-fc.lastY) * fc.sens
	fc.lastX, fc.lastY = x, y
}

func (fc *flyController) axis(pos, neg uint32) float32 {
	var v float32
	if fc.pressed[pos] {
		v++
	}
	if fc.pressed[neg] {
		v--
	}
	return v
}

func (fc *flyController) Apply(cam Camera, dt float32) bool {
	fc.mu.Lock()
	dYaw, dPitch := fc.dYaw, fc.dPitch
	fc.dYaw, fc.dPitch = 0, 0
	forward := fc.axis(common.KeyW, common.KeyS)
	strafe := fc.axis(common.KeyD, common.KeyA)
	lift := fc.axis(common.KeySpace, common.KeyLeftShift)
	speed := fc.speed
	if fc.pressed[common.KeyLeftControl] {
		speed *= fc.boostMul
	}
	fc.mu.Unlock()

	moved := false
	if dYaw != 0 || dPitch != 0 {
		cam.Rotate(dYaw, dPitch)
		moved = true
	}
	if forward == 0 && strafe == 0 && lift == 0 {
		return moved
	}

	move := cam.Forward().Mul(forward).
		Add(cam.Right().Mul(strafe)).
		Add(mgl32.Vec3{0, lift, 0})
	if move.Len() == 0 {
		return moved
	}
	cam.SetPosition(cam.Position().Add(move.Normalize().Mul(speed * dt)))
	return true
}

func (fc *flyController) Speed() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.speed
}

func (fc *flyController) Sensitivity() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.sens
}
