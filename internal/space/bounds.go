package space

// Vec3 is a position or extent in local space.
type Vec3 [3]float32

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Bounds is an axis-aligned box stored as center and half extents.
type Bounds struct {
	Center  Vec3 `yaml:"center" json:"center"`
	Extents Vec3 `yaml:"extents" json:"extents"`
}

// NewBounds returns the box with the given center and full size.
func NewBounds(center, size Vec3) Bounds {
	return Bounds{Center: center, Extents: size.Scale(0.5)}
}

// MinMax returns the box corners.
func MinMax(min, max Vec3) Bounds {
	return Bounds{Center: min.Add(max).Scale(0.5), Extents: max.Sub(min).Scale(0.5)}
}

func (b Bounds) Size() Vec3 { return b.Extents.Scale(2) }
func (b Bounds) Min() Vec3 { return b.Center.Sub(b.Extents) }
func (b Bounds) Max() Vec3 { return b.Center.Add(b.Extents) }

// PlanarRadiusSquared is the squared half diagonal of the box on the XZ plane.
func (b Bounds) PlanarRadiusSquared() float32 {
	return b.Extents[0]*b.Extents[0] + b.Extents[2]*b.Extents[2]
}

// Contains reports whether o lies entirely inside b.
func (b Bounds) Contains(o Bounds) bool {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	for i := 0; i < 3; i++ {
		if omin[i] < bmin[i] || omax[i] > bmax[i] {
			return false
		}
	}
	return true
}

// Encapsulate returns the smallest box holding both b and o.
func (b Bounds) Encapsulate(o Bounds) Bounds {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	for i := 0; i < 3; i++ {
		bmin[i] = min(bmin[i], omin[i])
		bmax[i] = max(bmax[i], omax[i])
	}
	return MinMax(bmin, bmax)
}
