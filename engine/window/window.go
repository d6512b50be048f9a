// Package window opens the viewer window and turns its input into orbit-camera events.
package window

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// MouseButton identifies the button held during a drag.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// Window is a single native window with a WebGPU-compatible surface.
// All methods must be called from the thread that created the window.
type Window interface {
	// SurfaceDescriptor returns the platform surface descriptor for gpu.NewWGPUDevice.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size returns the framebuffer size in pixels, which differs from the window size on high-DPI
	// displays.
	Size() common.Extent2D

	// SetResizeCallback sets the function called with the new framebuffer size.
	SetResizeCallback(callback func(size common.Extent2D))

	// SetKeyCallback sets the function called on key press and release. Key codes follow
	// common.Key*; repeats are reported as presses.
	SetKeyCallback(callback func(key int, pressed bool))

	// SetDragCallback sets the function called while a mouse button is held and the cursor moves.
	//
	// Parameters:
	//   - callback: receives the cursor delta in pixels and the held button
	SetDragCallback(callback func(dx, dy float32, button MouseButton))

	// SetScrollCallback sets the function called on wheel movement; positive is away from the user.
	SetScrollCallback(callback func(delta float32))

	// Run polls events and calls frame until the window closes or frame returns an error.
	//
	// Parameters:
	//   - frame: called once per iteration with the seconds since the previous call
	//
	// Returns:
	//   - error: the first error returned by frame
	Run(frame func(dt float32) error) error

	// RequestClose makes Run return after the current iteration.
	RequestClose()

	// Close destroys the window and terminates the platform layer.
	Close() error
}

// viewerWindow is the implementation of the Window interface.
type viewerWindow struct {
	logger *slog.Logger

	title     string
	size      common.Extent2D
	minSize   common.Extent2D
	resizable bool

	platform *glfwWindow

	onResize func(size common.Extent2D)
	onKey    func(key int, pressed bool)
	onDrag   func(dx, dy float32, button MouseButton)
	onScroll func(delta float32)
}

var _ Window = &viewerWindow{}

// NewWindow creates and shows a window.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Window: the window
//   - error: error if the platform layer or the window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &viewerWindow{
		logger:    common.NopLogger(),
		title:     "oxyview",
		size:      common.Extent2D{Width: 1280, Height: 720},
		minSize:   common.Extent2D{Width: 320, Height: 240},
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := openGLFW(w); err != nil {
		return nil, fmt.Errorf("open window: %w", err)
	}
	w.logger.Info("[Window] opened", "title", w.title, "size", w.size)
	return w, nil
}

func (w *viewerWindow) SetResizeCallback(callback func(size common.Extent2D)) { w.onResize = callback }

func (w *viewerWindow) SetKeyCallback(callback func(key int, pressed bool)) { w.onKey = callback }

func (w *viewerWindow) SetDragCallback(callback func(dx, dy float32, button MouseButton)) {
	w.onDrag = callback
}

func (w *viewerWindow) SetScrollCallback(callback func(delta float32)) { w.onScroll = callback }

func (w *viewerWindow) Size() common.Extent2D { return w.size }

func (w *viewerWindow) resized(size common.Extent2D) {
	if size == w.size {
		return
	}
	w.size = size
	w.logger.Debug("[Window] resized", "size", size)
	if w.onResize != nil {
		w.onResize(size)
	}
}

func (w *viewerWindow) key(key int, pressed bool) {
	if key == common.KeyEsc && pressed {
		w.RequestClose()
		return
	}
	if w.onKey != nil {
		w.onKey(key, pressed)
	}
}

func (w *viewerWindow) drag(dx, dy float32, button MouseButton) {
	if w.onDrag != nil && (dx != 0 || dy != 0) {
		w.onDrag(dx, dy, button)
	}
}

func (w *viewerWindow) scroll(delta float32) {
	if w.onScroll != nil {
		w.onScroll(delta)
	}
}
