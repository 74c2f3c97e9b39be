package renderer

import (
	"fmt"
	"strings"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped

	// PresentModeMailbox replaces the queued frame with the newest one at each vertical blank.
	// Adapter-dependent; falls back to VSync where unsupported by the driver.
	PresentModeMailbox
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeVSync:
		return "fifo"
	case PresentModeUncapped:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	default:
		return fmt.Sprintf("PresentMode(%d)", int(m))
	}
}

// ParsePresentMode parses a present mode name: fifo (or vsync), immediate (or uncapped), or mailbox.
//
// Parameters:
//   - s: the name to parse, case-insensitive
//
// Returns:
//   - PresentMode: the parsed mode
//   - error: error if the name is not recognized
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(s) {
	case "fifo", "vsync":
		return PresentModeVSync, nil
	case "immediate", "uncapped":
		return PresentModeUncapped, nil
	case "mailbox":
		return PresentModeMailbox, nil
	default:
		return 0, fmt.Errorf("unknown present mode %q", s)
	}
}
