package debug

import (
	"fmt"
	"runtime"

	rl "github.com/gen2brain/raylib-go/raylib"

	"hlod-engine/internal/hlod"
)

const (
	fontSize   = 20
	padding    = 12
	lineHeight = fontSize + 4
	// updateInterval: only refresh overlay text every N frames to reduce allocations.
	updateInterval = 30
)

// Debug holds runtime debugging overlays, drawn top-right. All overlays are off by default.
type Debug struct {
	ShowFPS      bool
	ShowMemAlloc bool
	ShowStats    bool
	// Stats supplies the streaming counters shown when ShowStats is set.
	Stats func() hlod.Stats

	font         rl.Font // optional; when set, Draw uses DrawTextEx instead of default font
	frameCount   uint32
	lastFpsText  string
	lastMemText  string
	lastStats    []string
	lastMemStats runtime.MemStats
}

// New returns a Debug system with all overlays hidden.
func New(stats func() hlod.Stats) *Debug {
	return &Debug{Stats: stats}
}

// SetFont sets the font used to draw overlays. Zero texture ID = use raylib default.
func (d *Debug) SetFont(font rl.Font) {
	d.font = font
}

// StatsLines formats s for display, one counter group per line.
func StatsLines(s hlod.Stats) []string {
	return []string{
		fmt.Sprintf("Nodes: %d ready %d", s.Nodes, s.Ready),
		fmt.Sprintf("High %d  Low %d  Released %d", s.High, s.Low, s.Released),
		fmt.Sprintf("Entering %d  Queued %d  In flight %d", s.Pending, s.Queued, s.InFlight),
	}
}

// Draw renders any enabled overlays. Call after scene and terminal in the draw loop.
// Text is only recomputed every updateInterval frames to limit allocations.
func (d *Debug) Draw() {
	d.frameCount++
	update := (d.frameCount % updateInterval) == 0
	if d.ShowFPS && d.lastFpsText == "" || d.ShowMemAlloc && d.lastMemText == "" || d.ShowStats && d.lastStats == nil {
		update = true
	}

	y := int32(padding)
	if d.ShowFPS {
		if update {
			d.lastFpsText = fmt.Sprintf("FPS: %d", rl.GetFPS())
		}
		d.drawRight(d.lastFpsText, y, rl.Green)
		y += lineHeight
	}
	if d.ShowMemAlloc {
		if update {
			runtime.ReadMemStats(&d.lastMemStats)
			mb := float64(d.lastMemStats.Alloc) / (1024 * 1024)
			d.lastMemText = fmt.Sprintf("Mem: %.2f MiB", mb)
		}
		d.drawRight(d.lastMemText, y, rl.Green)
		y += lineHeight
	}
	if d.ShowStats && d.Stats != nil {
		if update {
			d.lastStats = StatsLines(d.Stats())
		}
		for _, line := range d.lastStats {
			d.drawRight(line, y, rl.SkyBlue)
			y += lineHeight
		}
	}
}

func (d *Debug) drawRight(text string, y int32, col rl.Color) {
	if text == "" {
		return
	}
	screenW := int32(rl.GetScreenWidth())
	if d.font.Texture.ID != 0 {
		sz := float32(fontSize)
		pos := rl.NewVector2(float32(screenW)-rl.MeasureTextEx(d.font, text, sz, 1).X-float32(padding), float32(y))
		rl.DrawTextEx(d.font, text, pos, sz, 1, col)
		return
	}
	x := screenW - rl.MeasureText(text, fontSize) - padding
	rl.DrawText(text, x, y, fontSize, col)
}
