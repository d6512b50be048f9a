package window

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// WindowBuilderOption is a functional option for configuring a Window.
// Use the With* functions to create options.
type WindowBuilderOption func(w *viewerWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.title = title
	}
}

// WithSize sets the requested window size. Zero dimensions are ignored.
//
// Parameters:
//   - width: width in screen coordinates
//   - height: height in screen coordinates
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		if width > 0 && height > 0 {
			w.size = common.Extent2D{Width: uint32(width), Height: uint32(height)}
		}
	}
}

// WithMinSize sets the smallest size the user can resize the window to.
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		if width > 0 && height > 0 {
			w.minSize = common.Extent2D{Width: uint32(width), Height: uint32(height)}
		}
	}
}

// WithResizable toggles user resizing.
func WithResizable(resizable bool) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.resizable = resizable
	}
}

// WithLogger sets the logger for window events. A nil logger is ignored.
func WithLogger(logger *slog.Logger) WindowBuilderOption {
	return func(w *viewerWindow) {
		if logger != nil {
			w.logger = logger
		}
	}
}
