package testbed

import (
	"path/filepath"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

const (
	gridSize    = 5
	cubeSpacing = float32(2.5)
	// spinSpeed is in radians per second.
	spinSpeed = float32(0.8)
	moveSpeed = float32(0.5)
	turnSpeed = float32(0.05)
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera    *Camera
	instances []*math.Transform
	aspect    float32
	params    *resource.RenderParams
	mode      metadata.RenderMode
}

func NewTestGame() *TestGame {
	state := &gameState{camera: NewCamera(), aspect: 16.0 / 9.0}
	tg := &TestGame{
		Game: &engine.Game{State: state},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize declares the cube grid: mesh vertices at binding 0, one model
// matrix per instance at binding 1, the camera at uniform binding 0 and the
// albedo texture at binding 1.
func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.state()

	am := e.Assets()
	vert, err := am.LoadShader(am.ShaderPath("cube.vert"), "")
	if err != nil {
		return err
	}
	frag, err := am.LoadShader(am.ShaderPath("cube.frag"), "")
	if err != nil {
		return err
	}
	mode, err := e.RenderMode()
	if err != nil {
		return err
	}

	state.camera.SetPosition(mgl32.Vec3{0, 4, 14})
	state.camera.Pitch(-0.3)
	state.instances = grid(gridSize)
	state.mode = mode

	params := resource.NewRenderParams(resource.ShaderSet{Vertex: vert, Fragment: frag})
	params.SetRenderMode(mode)
	resource.Attach(params.SetUniform(0, gpu.ShaderStageVertex), state.viewProjection)
	params.SetUniformImage(1, filepath.Join(am.Root(), "textures", "albedo.png"), gpu.ShaderStageFragment).Linear(true)

	models := params.SetAttribute(1, gpu.InputRateInstance)
	for col := uint32(0); col < 4; col++ {
		models.Add(col*16, gpu.FormatR32G32B32A32Sfloat)
	}
	resource.AttachElements(models, state.models)
	state.params = params

	vertices, indices := math.GeometryCube(1)
	mesh := &metadata.Mesh{
		Name:          "cube-grid",
		Vertices:      vertices,
		Indices:       indices,
		InstanceCount: uint32(len(state.instances)),
	}
	if _, err := e.AddRenderer(mesh, params); err != nil {
		return err
	}

	e.Bus().Register(core.EventCodeKeyPressed, g, g.onKey)
	return nil
}

func (g *TestGame) Update(fc *resource.FrameContext) error {
	state := g.state()
	angle := spinSpeed * float32(fc.DeltaTime.Seconds())
	rotation := mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
	for _, t := range state.instances {
		t.Rotate(rotation)
	}
	return nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	g.state().aspect = float32(width) / float32(height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}

func (g *TestGame) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	state := g.state()
	switch glfw.Key(context.Data.U32[0]) {
	case glfw.KeyW:
		state.camera.MoveForward(moveSpeed)
	case glfw.KeyS:
		state.camera.MoveForward(-moveSpeed)
	case glfw.KeyA:
		state.camera.MoveRight(-moveSpeed)
	case glfw.KeyD:
		state.camera.MoveRight(moveSpeed)
	case glfw.KeyQ:
		state.camera.Yaw(turnSpeed)
	case glfw.KeyE:
		state.camera.Yaw(-turnSpeed)
	case glfw.KeyM:
		state.mode = nextMode(state.mode)
		state.params.SetRenderMode(state.mode)
		core.LogInfo("render mode: %s", state.mode)
	case glfw.KeyC:
		state.params.SetBackfaceCulling(!state.params.BackfaceCulling())
		core.LogInfo("backface culling: %t", state.params.BackfaceCulling())
	default:
		return false
	}
	return true
}

// grid lays out n*n unit cubes centered on the origin.
func grid(n int) []*math.Transform {
	offset := cubeSpacing * float32(n-1) / 2
	out := make([]*math.Transform, 0, n*n)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			pos := mgl32.Vec3{float32(x)*cubeSpacing - offset, 0, float32(z)*cubeSpacing - offset}
			out = append(out, math.TransformFromPosition(pos))
		}
	}
	return out
}

func nextMode(m metadata.RenderMode) metadata.RenderMode {
	switch m {
	case metadata.RenderModeTriangles:
		return metadata.RenderModeLines
	case metadata.RenderModeLines:
		return metadata.RenderModePoints
	}
	return metadata.RenderModeTriangles
}

// viewProjection flips Y for Vulkan clip space.
func (s *gameState) viewProjection(fc *resource.FrameContext) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(45), s.aspect, 0.1, 1000)
	proj[5] *= -1
	return proj.Mul4(s.camera.View())
}

func (s *gameState) models(fc *resource.FrameContext, out []mgl32.Mat4) {
	for i := range out {
		out[i] = s.instances[i].GetWorld()
	}
}
