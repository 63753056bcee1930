// Package primitives draws content instances as lit raylib primitive meshes.
package primitives

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"hlod-engine/internal/content"
)

// shape describes how a primitive mesh is generated and centered.
type shape struct {
	gen func() rl.Mesh
	// offset shifts the mesh in model space so the instance position is its center.
	offset [3]float32
}

// Radius 0.5 and height 1 so every shape matches the unit cube.
var shapes = map[string]shape{
	"cube":   {gen: func() rl.Mesh { return rl.GenMeshCube(1, 1, 1) }},
	"sphere": {gen: func() rl.Mesh { return rl.GenMeshSphere(0.5, sphereRings, sphereSlices) }},
	// raylib cylinders have their base at Y=0
	"cylinder": {gen: func() rl.Mesh { return rl.GenMeshCylinder(0.5, 1, cylinderSlices) }, offset: [3]float32{0, -0.5, 0}},
	"plane":    {gen: func() rl.Mesh { return rl.GenMeshPlane(1, 1, 1, 1) }},
}

const (
	sphereRings    = 16
	sphereSlices   = 16
	cylinderSlices = 16
)

// cached holds mesh and material for a primitive type. Created lazily on first Draw.
type cached struct {
	mesh   rl.Mesh
	mtl    rl.Material
	offset [3]float32
}

// Registry maps primitive type names to mesh+material. Meshes are created on first use
// so that GPU resources are allocated after the window/OpenGL context exists.
type Registry struct {
	cache    map[string]cached
	shader   rl.Shader
	viewPos  [3]float32 // camera position, set each frame for lighting
	lightDir [3]float32 // direction to light (normalized), set each frame
	drawn    int
}

// NewRegistry returns a registry with no primitives loaded.
func NewRegistry() *Registry {
	return &Registry{
		cache:    make(map[string]cached),
		lightDir: [3]float32{0.5, 1, 0.5},
	}
}

// SetView sets camera position and direction-to-light for this frame and resets the draw count.
// Call once per frame before drawing.
func (r *Registry) SetView(viewPos, lightDir [3]float32) {
	r.viewPos = viewPos
	r.lightDir = lightDir
	r.drawn = 0
}

// Drawn returns the number of instances drawn since the last SetView.
func (r *Registry) Drawn() int { return r.drawn }

// ensure creates the mesh and material for kind if not yet cached. All kinds share one lit shader.
func (r *Registry) ensure(kind string) (cached, bool) {
	if c, ok := r.cache[kind]; ok {
		return c, true
	}
	sh, ok := shapes[kind]
	if !ok {
		return cached{}, false
	}
	if !rl.IsShaderValid(r.shader) {
		r.shader = rl.LoadShaderFromMemory(litVS, litFS)
	}
	mtl := rl.LoadMaterialDefault()
	if rl.IsShaderValid(r.shader) {
		mtl.Shader = r.shader
	}
	c := cached{mesh: sh.gen(), mtl: mtl, offset: sh.offset}
	r.cache[kind] = c
	return c, true
}

// Draw draws inst when it is active, tinted with its definition's color and shifted by offset
// (the origin of the hierarchy it was loaded for).
// Must be called between BeginMode3D and EndMode3D, after SetView.
func (r *Registry) Draw(inst *content.Instance, offset [3]float32) {
	if inst == nil || !inst.Active() {
		return
	}
	def := inst.Def
	for i := range def.Position {
		def.Position[i] += offset[i]
	}
	r.DrawDef(def)
}

// DrawDef draws one primitive from its definition. Unknown types are skipped; a zero size axis
// is drawn as 1.
func (r *Registry) DrawDef(def content.ObjectDef) {
	c, ok := r.ensure(def.Type)
	if !ok {
		return
	}
	if albedo := c.mtl.GetMap(rl.MapAlbedo); albedo != nil {
		cr, cg, cb, ca := def.RGBA()
		albedo.Color = rl.NewColor(cr, cg, cb, ca)
	}
	r.setLitShaderUniforms(c.mtl.Shader)
	size := def.Size
	for i := range size {
		if size[i] == 0 {
			size[i] = 1
		}
	}
	scaleM := rl.MatrixScale(size[0], size[1], size[2])
	transM := rl.MatrixTranslate(def.Position[0], def.Position[1], def.Position[2])
	transform := rl.MatrixMultiply(scaleM, transM)
	if c.offset != [3]float32{} {
		offsetM := rl.MatrixTranslate(c.offset[0], c.offset[1], c.offset[2])
		// offset (center mesh), then scale, then translate to position
		transform = rl.MatrixMultiply(offsetM, transform)
	}
	rl.DrawMesh(c.mesh, c.mtl, transform)
	r.drawn++
}

// Unload frees every cached mesh and the shared shader. Call before closing the window.
func (r *Registry) Unload() {
	for kind, c := range r.cache {
		rl.UnloadMesh(&c.mesh)
		delete(r.cache, kind)
	}
	if rl.IsShaderValid(r.shader) {
		rl.UnloadShader(r.shader)
		r.shader = rl.Shader{}
	}
}

const (
	litVS = `#version 330
in vec3 vertexPosition;
in vec2 vertexTexCoord;
in vec3 vertexNormal;
uniform mat4 matProjection;
uniform mat4 matView;
uniform mat4 matModel;
out vec3 fragPosition;
out vec2 fragTexCoord;
out vec3 fragNormal;
void main() {
  vec4 worldPos = matModel * vec4(vertexPosition, 1.0);
  fragPosition = worldPos.xyz;
  fragTexCoord = vertexTexCoord;
  fragNormal = mat3(matModel) * vertexNormal;
  gl_Position = matProjection * matView * worldPos;
}
`
	litFS = `#version 330
in vec3 fragPosition;
in vec2 fragTexCoord;
in vec3 fragNormal;
uniform vec4 colDiffuse;
uniform vec3 viewPos;
uniform vec3 lightDir;
uniform vec4 ambient;
uniform vec3 lightColor;
uniform float lightIntensity;
uniform float specularPower;
uniform float specularStrength;
out vec4 finalColor;
void main() {
  vec4 tint = colDiffuse;
  vec3 N = normalize(fragNormal);
  vec3 L = normalize(lightDir);
  vec3 V = normalize(viewPos - fragPosition);
  float NdotL = max(dot(N, L), 0.0);
  vec3 diffuse = tint.rgb * NdotL * lightColor * lightIntensity;
  vec3 amb = ambient.rgb * tint.rgb;
  vec3 H = normalize(L + V);
  float NdotH = max(dot(N, H), 0.0);
  float spec = pow(NdotH, specularPower) * specularStrength;
  vec3 specular = lightColor * spec * (NdotL > 0.0 ? 1.0 : 0.0);
  finalColor = vec4(amb + diffuse + specular, tint.a);
}
`
)

// defaultAmbient is the ambient term (dim so shadowed areas aren't pure black).
var defaultAmbient = [4]float32{0.2, 0.22, 0.26, 1.0}

// defaultLightColor is a soft warm-white for the directional light.
var defaultLightColor = [3]float32{1.0, 0.98, 0.95}

// defaultLightIntensity scales the directional diffuse (0–1).
const defaultLightIntensity = float32(0.75)

// defaultSpecularPower controls highlight tightness (higher = smaller, sharper highlight).
const defaultSpecularPower = float32(48.0)

// defaultSpecularStrength scales specular contribution (0–1).
const defaultSpecularStrength = float32(0.35)

// setLitShaderUniforms sets viewPos, lightDir, ambient, light color/intensity, and specular on the given shader (cgo-safe: local arrays).
func (r *Registry) setLitShaderUniforms(shader rl.Shader) {
	if !rl.IsShaderValid(shader) {
		return
	}
	viewPos := [3]float32{r.viewPos[0], r.viewPos[1], r.viewPos[2]}
	lightDir := [3]float32{r.lightDir[0], r.lightDir[1], r.lightDir[2]}
	amb := [4]float32{defaultAmbient[0], defaultAmbient[1], defaultAmbient[2], defaultAmbient[3]}
	lightColor := [3]float32{defaultLightColor[0], defaultLightColor[1], defaultLightColor[2]}
	if loc := rl.GetShaderLocation(shader, "viewPos"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, viewPos[:], rl.ShaderUniformVec3, 1)
	}
	if loc := rl.GetShaderLocation(shader, "lightDir"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, lightDir[:], rl.ShaderUniformVec3, 1)
	}
	if loc := rl.GetShaderLocation(shader, "ambient"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, amb[:], rl.ShaderUniformVec4, 1)
	}
	if loc := rl.GetShaderLocation(shader, "lightColor"); loc >= 0 {
		rl.SetShaderValueV(shader, loc, lightColor[:], rl.ShaderUniformVec3, 1)
	}
	if loc := rl.GetShaderLocation(shader, "lightIntensity"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{defaultLightIntensity}, rl.ShaderUniformFloat)
	}
	if loc := rl.GetShaderLocation(shader, "specularPower"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{defaultSpecularPower}, rl.ShaderUniformFloat)
	}
	if loc := rl.GetShaderLocation(shader, "specularStrength"); loc >= 0 {
		rl.SetShaderValue(shader, loc, []float32{defaultSpecularStrength}, rl.ShaderUniformFloat)
	}
}
