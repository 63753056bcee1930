package graphics

import rl "github.com/gen2brain/raylib-go/raylib"

// Window describes the viewer window. Zero width or height with Fullscreen false opens a
// 1280x720 window.
type Window struct {
	Title      string
	Width      int32
	Height     int32
	Fullscreen bool
	TargetFPS  int32
}

// Run opens the window and runs the main loop until it is closed. Each frame it calls update
// (input, streaming), then clears the screen and calls draw. ESC is left to the terminal;
// close via the window button. cleanup, when set, runs while the GL context still exists.
func Run(w Window, update, draw, cleanup func()) {
	width, height := w.Width, w.Height
	if w.Fullscreen {
		rl.SetConfigFlags(rl.FlagFullscreenMode)
		width, height = int32(rl.GetMonitorWidth(0)), int32(rl.GetMonitorHeight(0))
	} else {
		rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
		if width == 0 || height == 0 {
			width, height = 1280, 720
		}
	}
	rl.InitWindow(width, height, w.Title)
	defer rl.CloseWindow()
	if cleanup != nil {
		defer cleanup()
	}

	rl.SetExitKey(rl.KeyNull)
	fps := w.TargetFPS
	if fps == 0 {
		fps = 60
	}
	rl.SetTargetFPS(fps)

	for !rl.WindowShouldClose() {
		update()

		rl.BeginDrawing()
		rl.ClearBackground(rl.NewColor(20, 22, 28, 255))
		draw()
		rl.EndDrawing()
	}
}
