// Package space classifies tree cells against the viewer: it turns a camera into a
// screen-relative size metric per bounding box, used to pick High/Low detail or cull.
package space

import (
	"github.com/chewxy/math32"
)

// minHalfAngle keeps a degenerate field of view from dividing by zero.
const minHalfAngle = 1e-6

// Camera is the viewer input refreshed once per tick.
type Camera struct {
	Position     Vec3
	Orthographic bool
	// Fov is the vertical field of view in degrees, used when not orthographic.
	Fov float32
	// OrthoSize is half the vertical view size, used when orthographic.
	OrthoSize float32
	// LODBias scales every relative size; 1 is neutral.
	LODBias float32
}

// Evaluator is the swappable space strategy used by controllers.
type Evaluator interface {
	// UpdateCamera precomputes the per-camera scale. origin is the hierarchy's world offset.
	UpdateCamera(origin Vec3, cam Camera)
	// IsHigh reports whether b is large enough on screen for fine detail.
	IsHigh(lodThreshold float32, b Bounds) bool
	// IsCull reports whether b is too small on screen to show at all.
	IsCull(cullThreshold float32, b Bounds) bool
	// DistanceSquared is the squared distance from the camera to b, used for load priority.
	DistanceSquared(b Bounds) float32
	// RelativeSize is the screen-relative size of b.
	RelativeSize(b Bounds) float32
}

// QuadTree evaluates distance on the horizontal XZ plane, which suits terrain-like
// hierarchies split on X and Z only.
type QuadTree struct {
	scale  float32
	camPos Vec3
}

// NewQuadTree returns an evaluator for a neutral perspective camera at the origin.
func NewQuadTree() *QuadTree {
	q := &QuadTree{}
	q.UpdateCamera(Vec3{}, Camera{Fov: 60, LODBias: 1})
	return q
}

// UpdateCamera implements Evaluator.
func (q *QuadTree) UpdateCamera(origin Vec3, cam Camera) {
	q.scale = Scale(cam)
	q.camPos = cam.Position.Sub(origin)
}

// Scale is the per-camera factor turning size/distance into a screen-relative size.
func Scale(cam Camera) float32 {
	var s float32
	if cam.Orthographic {
		size := cam.OrthoSize
		if size <= 0 {
			size = 1
		}
		s = 0.5 / size
	} else {
		half := math32.Tan(cam.Fov * 0.5 * math32.Pi / 180)
		if half <= minHalfAngle {
			half = minHalfAngle
		}
		s = 0.5 / half
	}
	bias := cam.LODBias
	if bias <= 0 {
		bias = 1
	}
	return s * bias
}

// RelativeSize implements Evaluator. A camera standing on the cell center gets +Inf.
func (q *QuadTree) RelativeSize(b Bounds) float32 {
	d := math32.Sqrt(q.DistanceSquared(b))
	if d == 0 {
		return math32.Inf(1)
	}
	return b.Size()[0] * q.scale / d
}

// IsHigh implements Evaluator.
func (q *QuadTree) IsHigh(lodThreshold float32, b Bounds) bool {
	return q.RelativeSize(b) > lodThreshold
}

// IsCull implements Evaluator.
func (q *QuadTree) IsCull(cullThreshold float32, b Bounds) bool {
	return q.RelativeSize(b) < cullThreshold
}

// DistanceSquared implements Evaluator.
func (q *QuadTree) DistanceSquared(b Bounds) float32 {
	x := b.Center[0] - q.camPos[0]
	z := b.Center[2] - q.camPos[2]
	return x*x + z*z
}
