package common

// Key codes bound by the fly camera controller. Values are GLFW key codes;
// printable keys use their upper-case ASCII value.
const (
	KeyW     = 87
	KeyA     = 65
	KeyS     = 83
	KeyD     = 68
	KeySpace = 32

	KeyLeftShift   = 340
	KeyLeftControl = 341
)
