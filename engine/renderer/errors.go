package renderer

import (
	"errors"
	"strings"
)

var (
	// ErrSurfaceLost reports that the surface must be reconfigured before it can be used again.
	ErrSurfaceLost = errors.New("surface lost")

	// ErrSurfaceOutdated reports that the surface no longer matches the window and must be reconfigured.
	ErrSurfaceOutdated = errors.New("surface outdated")

	// ErrSurfaceTimeout reports that no surface texture became available in time.
	ErrSurfaceTimeout = errors.New("surface acquisition timed out")

	// ErrOutOfMemory reports that the GPU ran out of memory. It is not recoverable.
	ErrOutOfMemory = errors.New("gpu out of memory")

	// ErrDeviceLost reports that the GPU device was lost. It is not recoverable.
	ErrDeviceLost = errors.New("gpu device lost")
)

// IsFatal reports whether err leaves the renderer unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrDeviceLost)
}

// classifySurfaceError maps a surface acquisition failure onto one of the sentinel errors.
// The wgpu bindings report the native status only through the error text.
func classifySurfaceError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(strings.ReplaceAll(err.Error(), " ", ""))
	switch {
	case strings.Contains(msg, "outofmemory") || strings.Contains(msg, "memory"):
		return errors.Join(ErrOutOfMemory, err)
	case strings.Contains(msg, "devicelost"):
		return errors.Join(ErrDeviceLost, err)
	case strings.Contains(msg, "outdated"):
		return errors.Join(ErrSurfaceOutdated, err)
	case strings.Contains(msg, "lost"):
		return errors.Join(ErrSurfaceLost, err)
	case strings.Contains(msg, "timeout"):
		return errors.Join(ErrSurfaceTimeout, err)
	default:
		return err
	}
}
