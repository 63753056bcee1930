// Package scene owns the viewer camera and draws the world: the editor grid, streamed
// content and node bounds colored by state.
package scene

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"hlod-engine/internal/fsm"
	"hlod-engine/internal/hlod"
	"hlod-engine/internal/space"
)

const (
	gridExtent     = 50
	gridMinorStep  = 1
	gridMajorStep  = 10
	gridMinorAlpha = 50
	gridMajorAlpha = 120
	axisLineAlpha  = 220
)

var (
	boundsHigh     = rl.NewColor(80, 220, 120, 255)
	boundsLow      = rl.NewColor(230, 200, 60, 255)
	boundsEntering = rl.NewColor(240, 120, 40, 255)
)

// Scene holds a 3D camera and draws the 3D world. Update runs camera logic (free camera);
// Draw renders between BeginMode3D and EndMode3D. Based on raylib examples/core/core_3d_camera_free.
type Scene struct {
	Camera      rl.Camera3D
	LODBias     float32
	GridVisible bool
	ShowBounds  bool
	cursorDone  bool
}

// New returns a scene with a perspective camera looking at the origin from above.
func New() *Scene {
	s := &Scene{LODBias: 1, GridVisible: true}
	s.Camera.Position = rl.NewVector3(0, 40, 60)
	s.Camera.Target = rl.NewVector3(0, 0, 0)
	s.Camera.Up = rl.NewVector3(0, 1, 0)
	s.Camera.Fovy = 45
	s.Camera.Projection = rl.CameraPerspective
	return s
}

// View returns the camera as the streaming runtime sees it. For orthographic cameras raylib's
// Fovy is the full view height.
func (s *Scene) View() space.Camera {
	cam := space.Camera{
		Position: space.Vec3{s.Camera.Position.X, s.Camera.Position.Y, s.Camera.Position.Z},
		Fov:      s.Camera.Fovy,
		LODBias:  s.LODBias,
	}
	if s.Camera.Projection == rl.CameraOrthographic {
		cam.Orthographic = true
		cam.OrthoSize = s.Camera.Fovy / 2
	}
	return cam
}

// Update runs once per frame. Uses raylib UpdateCamera with CameraFree so the user can
// move the camera with mouse and keyboard. Skipped while capture is false (e.g. terminal open).
func (s *Scene) Update(capture bool) {
	if !s.cursorDone {
		rl.DisableCursor()
		s.cursorDone = true
	}
	if capture {
		rl.UpdateCamera(&s.Camera, rl.CameraFree)
	}
}

// Draw renders the 3D scene: the grid when GridVisible, then content, then the bounds of every
// controller's non-released nodes when ShowBounds. Call after ClearBackground and before 2D overlays.
func (s *Scene) Draw(content func(), controllers []*hlod.Controller) {
	rl.BeginMode3D(s.Camera)
	if s.GridVisible {
		drawEditorGrid()
	}
	if content != nil {
		content()
	}
	if s.ShowBounds {
		for _, c := range controllers {
			drawBounds(c)
		}
	}
	rl.EndMode3D()
}

func drawBounds(c *hlod.Controller) {
	origin := c.Origin()
	c.Walk(func(n *hlod.TreeNode) bool {
		var col rl.Color
		switch {
		case n.Status().Phase == fsm.Entering:
			col = boundsEntering
		case n.CurrentState() == hlod.High:
			col = boundsHigh
		case n.CurrentState() == hlod.Low:
			col = boundsLow
		default:
			return true
		}
		b := n.Bounds()
		center, size := b.Center.Add(origin), b.Size()
		rl.DrawCubeWires(rl.NewVector3(center[0], center[1], center[2]), size[0], size[1], size[2], col)
		return true
	})
}

// drawEditorGrid draws an infinite-style grid on the XZ plane with major/minor lines and axis lines.
// Reuses start/end vectors to avoid per-frame allocations in the hot loop.
func drawEditorGrid() {
	minor := rl.NewColor(128, 128, 128, gridMinorAlpha)
	major := rl.NewColor(160, 160, 160, gridMajorAlpha)
	axisX := rl.NewColor(220, 80, 80, axisLineAlpha)
	axisY := rl.NewColor(80, 220, 80, axisLineAlpha)
	axisZ := rl.NewColor(80, 80, 220, axisLineAlpha)

	var start, end rl.Vector3
	// Grid lines on XZ plane (Y=0): lines along X (varying Z) and along Z (varying X)
	for x := -gridExtent; x <= gridExtent; x += gridMinorStep {
		c := major
		if x%gridMajorStep != 0 {
			c = minor
		}
		start.X, start.Y, start.Z = float32(x), 0, float32(-gridExtent)
		end.X, end.Y, end.Z = float32(x), 0, float32(gridExtent)
		rl.DrawLine3D(start, end, c)
	}
	for z := -gridExtent; z <= gridExtent; z += gridMinorStep {
		c := major
		if z%gridMajorStep != 0 {
			c = minor
		}
		start.X, start.Y, start.Z = float32(-gridExtent), 0, float32(z)
		end.X, end.Y, end.Z = float32(gridExtent), 0, float32(z)
		rl.DrawLine3D(start, end, c)
	}

	// Axis lines through origin (X=red, Y=green, Z=blue)
	start.X, start.Y, start.Z = float32(-gridExtent), 0, 0
	end.X, end.Y, end.Z = float32(gridExtent), 0, 0
	rl.DrawLine3D(start, end, axisX)
	start.X, start.Y, start.Z = 0, float32(-gridExtent), 0
	end.X, end.Y, end.Z = 0, float32(gridExtent), 0
	rl.DrawLine3D(start, end, axisY)
	start.X, start.Y, start.Z = 0, 0, float32(-gridExtent)
	end.X, end.Y, end.Z = 0, 0, float32(gridExtent)
	rl.DrawLine3D(start, end, axisZ)
}
