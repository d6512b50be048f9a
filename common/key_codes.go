package common

// Virtual key codes used by the viewer. Values match GLFW key codes, which use ASCII
// for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87  // orbit up
	KeyA     = 65  // orbit left
	KeyS     = 83  // orbit down
	KeyD     = 68  // orbit right
	KeyQ     = 81  // zoom out
	KeyE     = 69  // zoom in
	KeyB     = 66  // toggle debug bounds
	KeyF     = 70  // toggle fluid volume overlay
	KeyV     = 86  // toggle voxel overlay
	KeyP     = 80  // toggle post-processing
	KeyN     = 78  // select next node
	KeyR     = 82  // reload changed assets
	KeyEsc   = 256 // close (GLFW)
	KeyTab   = 258 // cycle selection backwards (GLFW)
	KeyRight = 262 // (GLFW)
	KeyLeft  = 263 // (GLFW)
)
