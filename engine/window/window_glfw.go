package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW state and the cursor tracking used for drags.
type glfwWindow struct {
	window   *glfw.Window
	held     MouseButton
	dragging bool
	lastX    float64
	lastY    float64
}

var glfwButtons = map[glfw.MouseButton]MouseButton{
	glfw.MouseButtonLeft:   MouseLeft,
	glfw.MouseButtonRight:  MouseRight,
	glfw.MouseButtonMiddle: MouseMiddle,
}

// openGLFW creates the native window without a client API, since wgpu owns presentation.
func openGLFW(w *viewerWindow) error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if w.resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	win, err := glfw.CreateWindow(int(w.size.Width), int(w.size.Height), w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("glfw create window: %w", err)
	}
	win.SetSizeLimits(int(w.minSize.Width), int(w.minSize.Height), glfw.DontCare, glfw.DontCare)

	gw := &glfwWindow{window: win}
	w.platform = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		w.key(int(key), action != glfw.Release)
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.scroll(float32(yoff))
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		b, ok := glfwButtons[button]
		if !ok {
			return
		}
		switch action {
		case glfw.Press:
			gw.held, gw.dragging = b, true
			gw.lastX, gw.lastY = win.GetCursorPos()
		case glfw.Release:
			if gw.held == b {
				gw.dragging = false
			}
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if !gw.dragging {
			return
		}
		w.drag(float32(x-gw.lastX), float32(y-gw.lastY), gw.held)
		gw.lastX, gw.lastY = x, y
	})
	// The framebuffer size is what the swapchain needs on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(common.Extent2D{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))})
	})

	fw, fh := win.GetFramebufferSize()
	w.size = common.Extent2D{Width: uint32(fw), Height: uint32(fh)}
	return nil
}

func (w *viewerWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.platform.window)
}

func (w *viewerWindow) Run(frame func(dt float32) error) error {
	if w.platform == nil {
		return errors.New("run window: closed")
	}
	last := glfw.GetTime()
	for !w.platform.window.ShouldClose() {
		glfw.PollEvents()
		now := glfw.GetTime()
		dt := float32(now - last)
		last = now
		if w.size.Width == 0 || w.size.Height == 0 {
			// Minimised; nothing to draw into.
			glfw.WaitEventsTimeout(0.1)
			continue
		}
		if err := frame(dt); err != nil {
			return err
		}
	}
	return nil
}

func (w *viewerWindow) RequestClose() {
	if w.platform != nil {
		w.platform.window.SetShouldClose(true)
	}
}

func (w *viewerWindow) Close() error {
	if w.platform == nil {
		return errors.New("close window: not open")
	}
	w.platform.window.Destroy()
	w.platform = nil
	glfw.Terminate()
	w.logger.Debug("[Window] closed")
	return nil
}
