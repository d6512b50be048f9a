package gpu

import (
	"log/slog"
)

// PresentMode controls how frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync waits for vertical blank (FIFO).
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped
	// PresentModeMailbox replaces the queued frame without tearing where supported.
	PresentModeMailbox
)

// ParsePresentMode maps a configuration string to a PresentMode. Unknown values map to VSync.
func ParsePresentMode(s string) PresentMode {
	switch s {
	case "uncapped", "immediate":
		return PresentModeUncapped
	case "mailbox":
		return PresentModeMailbox
	default:
		return PresentModeVSync
	}
}

// DeviceBuilderOption is a functional option for configuring a wgpu-backed SurfaceDevice.
type DeviceBuilderOption func(*wgpuDevice)

// WithLogger sets the logger used for device diagnostics.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - DeviceBuilderOption: a function that applies the logger
func WithLogger(logger *slog.Logger) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPresentMode sets the initial present mode.
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.presentMode = mode
	}
}

// WithForceFallbackAdapter requests the software adapter.
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallback = force
	}
}

// WithFrameCapacity sets how many uniform slots (camera updates plus draws) and line vertices a
// single frame may record. Work beyond either limit is dropped with a warning.
//
// Parameters:
//   - uniformSlots: maximum camera and draw uniform writes per frame
//   - lineVertices: maximum DrawLines vertices per frame
//
// Returns:
//   - DeviceBuilderOption: a function that applies the capacities
func WithFrameCapacity(uniformSlots, lineVertices int) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		if uniformSlots > 0 {
			d.maxUniformSlots = uniformSlots
		}
		if lineVertices > 0 {
			d.maxLineVertices = lineVertices
		}
	}
}
