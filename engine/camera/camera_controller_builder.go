package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*flyController)

// WithSpeed sets the movement speed in world units per second.
//
// Parameters:
//   - speed: units per second
//
// Returns:
//   - CameraControllerOption: functional option to set the speed
func WithSpeed(speed float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.speed = speed
	}
}

// WithSensitivity sets the mouse-look sensitivity in radians per pixel of cursor movement.
//
// Parameters:
//   - sensitivity: radians per pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the sensitivity
func WithSensitivity(sensitivity float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.sens = sensitivity
	}
}

// WithBoost sets the speed multiplier applied while Left Control is held.
func WithBoost(multiplier float32) CameraControllerOption {
	return func(fc *flyController) {
		fc.boostMul = multiplier
	}
}
