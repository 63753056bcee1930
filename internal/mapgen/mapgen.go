// Package mapgen generates synthetic terrain scenes as ready-to-stream hierarchies: a quadtree
// over a fractal-noise height field, with one merged proxy per cell as low detail and one cube
// per terrain tile as high detail on the leaves.
package mapgen

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-playground/validator/v10"

	"hlod-engine/internal/content"
	"hlod-engine/internal/hlod"
	"hlod-engine/internal/space"
)

// minHeight keeps every tile visible above the ground plane.
const minHeight float32 = 0.15

// Options controls scene generation.
// Depth is the number of hierarchy levels; each leaf covers LeafTiles×LeafTiles tiles, so the
// map is LeafTiles·2^(Depth-1) tiles wide. TileSize is the world size of one tile on X/Z and
// HeightScale the maximum terrain height. Seed controls randomness; Seed == 0 uses a time-based
// seed. Octaves, Frequency, Lacunarity and Gain control the fractal noise shape.
type Options struct {
	Depth       int     `yaml:"depth" validate:"gte=1,lte=8"`
	LeafTiles   int     `yaml:"leaf_tiles" validate:"gte=1,lte=64"`
	TileSize    float32 `yaml:"tile_size" validate:"gt=0"`
	HeightScale float32 `yaml:"height_scale" validate:"gt=0"`

	Seed       int64   `yaml:"seed"`
	Octaves    int     `yaml:"octaves" validate:"gte=1,lte=12"`
	Frequency  float32 `yaml:"frequency" validate:"gt=0"`
	Lacunarity float32 `yaml:"lacunarity" validate:"gt=0"`
	Gain       float32 `yaml:"gain" validate:"gt=0"`
}

// DefaultOptions returns a 4-level scene of 32×32 tiles.
func DefaultOptions() Options {
	return Options{
		Depth:       4,
		LeafTiles:   4,
		TileSize:    1.0,
		HeightScale: 6.0,
		Seed:        0,
		Octaves:     4,
		Frequency:   0.08,
		Lacunarity:  2.0,
		Gain:        0.5,
	}
}

var validate = validator.New()

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("mapgen: %w", err)
	}
	return nil
}

// Tiles is the number of tiles along one side of the map.
func (o Options) Tiles() int {
	return o.LeafTiles << (o.Depth - 1)
}

// Scene is a generated hierarchy and the definitions its content ids refer to.
type Scene struct {
	Tree    *hlod.TreeSpec
	Content content.Set
	Heights [][]float32
}

// Generate builds a scene. The map is centered around the origin on XZ and sits on Y=0.
func Generate(opts Options) (*Scene, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	g := &generator{
		opts:    opts,
		heights: Heights(opts),
		tree:    &hlod.TreeSpec{},
		set:     content.NewSet(),
	}
	g.tree.Root = g.build(0, 0, opts.Tiles(), 0)
	return &Scene{Tree: g.tree, Content: g.set, Heights: g.heights}, nil
}

// Heights samples the height field, indexed [z][x], in [minHeight, HeightScale].
func Heights(opts Options) [][]float32 {
	n := opts.Tiles()
	out := make([][]float32, n)
	for z := 0; z < n; z++ {
		out[z] = make([]float32, n)
		for x := 0; x < n; x++ {
			// Sample fractal noise in a continuous domain; use X/Z indices scaled by base frequency.
			h := fractalValueNoise2D(float32(x)*opts.Frequency, float32(z)*opts.Frequency, opts.Seed, opts.Octaves, opts.Lacunarity, opts.Gain)
			height := minHeight + h*(opts.HeightScale-minHeight)
			if !isFinite(height) || height <= 0 {
				height = minHeight
			}
			out[z][x] = height
		}
	}
	return out
}

type generator struct {
	opts    Options
	heights [][]float32
	tree    *hlod.TreeSpec
	set     content.Set
	nextLow int
	nextHi  int
}

// world maps a tile index to the world coordinate of its low edge.
func (g *generator) world(tile int) float32 {
	return (float32(tile) - float32(g.opts.Tiles())*0.5) * g.opts.TileSize
}

// build adds the node covering tiles [x0, x0+n) × [z0, z0+n) and its subtree, returning its index.
func (g *generator) build(x0, z0, n, level int) int {
	maxH, sum := float32(0), float32(0)
	for z := z0; z < z0+n; z++ {
		for x := x0; x < x0+n; x++ {
			h := g.heights[z][x]
			maxH = max(maxH, h)
			sum += h
		}
	}
	avg := sum / float32(n*n)
	w := float32(n) * g.opts.TileSize
	cx := g.world(x0) + w*0.5
	cz := g.world(z0) + w*0.5

	i := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, hlod.NodeSpec{
		Bounds: space.NewBounds(space.Vec3{cx, maxH * 0.5, cz}, space.Vec3{w, maxH, w}),
	})

	lowID := g.nextLow
	g.nextLow++
	g.set.Low[lowID] = content.ObjectDef{
		Type:     "cube",
		Position: [3]float32{cx, avg * 0.5, cz},
		Size:     [3]float32{w, avg, w},
		Color:    g.color(avg),
	}
	g.tree.Nodes[i].Low = []int{lowID}

	if level == g.opts.Depth-1 {
		high := make([]int, 0, n*n)
		for z := z0; z < z0+n; z++ {
			for x := x0; x < x0+n; x++ {
				h := g.heights[z][x]
				id := g.nextHi
				g.nextHi++
				g.set.High[id] = content.ObjectDef{
					Type:     "cube",
					Position: [3]float32{g.world(x) + g.opts.TileSize*0.5, h * 0.5, g.world(z) + g.opts.TileSize*0.5},
					Size:     [3]float32{g.opts.TileSize, h, g.opts.TileSize},
					Color:    g.color(h),
				}
				high = append(high, id)
			}
		}
		g.tree.Nodes[i].High = high
		return i
	}

	half := n / 2
	children := make([]int, 0, 4)
	for _, q := range [][2]int{{0, 0}, {half, 0}, {0, half}, {half, half}} {
		children = append(children, g.build(x0+q[0], z0+q[1], half, level+1))
	}
	g.tree.Nodes[i].Children = children
	return i
}

// color shades from dark green valleys to pale peaks.
func (g *generator) color(h float32) string {
	t := h / g.opts.HeightScale
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	r := uint8(lerp(40, 220, t))
	gr := uint8(lerp(110, 220, t))
	b := uint8(lerp(40, 200, t))
	return fmt.Sprintf("#%02x%02x%02x", r, gr, b)
}

// fractalValueNoise2D is simple fractal value noise: layered smooth value noise with
// configurable octaves, lacunarity, and gain. Output is in [0,1].
func fractalValueNoise2D(x, y float32, seed int64, octaves int, lacunarity, gain float32) float32 {
	var sum, maxAmp float32
	amplitude, freq := float32(1), float32(1)
	for i := 0; i < octaves; i++ {
		sum += valueNoise2D(x*freq, y*freq, int32(seed)+int32(i)) * amplitude
		maxAmp += amplitude
		amplitude *= gain
		freq *= lacunarity
	}
	if maxAmp == 0 {
		return 0
	}
	return sum / maxAmp
}

// valueNoise2D is smooth value noise in [0,1] using a hash-based lattice and cubic easing.
func valueNoise2D(x, y float32, seed int32) float32 {
	fx, fy := math32.Floor(x), math32.Floor(y)
	x0, y0 := int32(fx), int32(fy)
	tx, ty := x-fx, y-fy

	v00 := hash2D(x0, y0, seed)
	v10 := hash2D(x0+1, y0, seed)
	v01 := hash2D(x0, y0+1, seed)
	v11 := hash2D(x0+1, y0+1, seed)

	sx := smoothStep(tx)
	sy := smoothStep(ty)
	return lerp(lerp(v00, v10, sx), lerp(v01, v11, sx), sy)
}

// hash2D maps integer lattice coordinates to a deterministic pseudo-random float in [0,1].
func hash2D(x, y, seed int32) float32 {
	n := x*374761393 + y*668265263 + seed*362437
	n = (n ^ (n >> 13)) * 1274126177
	n = n ^ (n >> 16)
	const invMaxInt = 1.0 / 2147483647.0
	return float32(n&0x7fffffff) * float32(invMaxInt)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// smoothStep is Perlin-style cubic easing: 3t^2 - 2t^3.
func smoothStep(t float32) float32 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func isFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
