package renderer

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	stdmath "math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/frame"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func shaders() resource.ShaderSet {
	return resource.ShaderSet{
		Vertex:   metadata.ShaderSource{Path: "shaders/cube.vert.spv", Code: spirv},
		Fragment: metadata.ShaderSource{Path: "shaders/cube.frag.spv", Code: spirv},
	}
}

func cube(instances uint32) *metadata.Mesh {
	vertices, indices := math.GeometryCube(1)
	return &metadata.Mesh{Name: "cube", Vertices: vertices, Indices: indices, InstanceCount: instances}
}

func swapInfo() gpu.SwapchainInfo {
	return gpu.SwapchainInfo{
		ImageCount:  3,
		ColorFormat: gpu.FormatB8G8R8A8Srgb,
		DepthFormat: gpu.FormatD32Sfloat,
		Extent:      gpu.Extent2D{Width: 1280, Height: 720},
	}
}

func newRenderer(t *testing.T, frames uint32, params *resource.RenderParams, instances uint32) (*Renderer, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	r := New(gpu.NewContext(dev, frames), cube(instances), params, swapInfo())
	require.NoError(t, r.Setup())
	return r, dev
}

func recording(t *testing.T, dev *gputest.Device) gpu.CommandBuffer {
	t.Helper()
	cb, err := dev.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, dev.BeginCommandBuffer(cb))
	return cb
}

func ops(cmds []gputest.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// readFloat returns the i-th float32 of data.
func readFloat(data []byte, i int) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
}

func cameraParams() *resource.RenderParams {
	params := resource.NewRenderParams(shaders())
	resource.Attach(params.SetUniform(0, gpu.ShaderStageVertex), func(fc *resource.FrameContext) mgl32.Mat4 {
		return mgl32.Translate3D(float32(fc.Frame), 0, 0)
	})
	return params
}

func TestSetupUploadsMeshAndBuildsPipeline(t *testing.T) {
	gputest.CaptureLog(t)
	r, dev := newRenderer(t, 2, cameraParams(), 1)

	vertices := dev.BufferByName("cube.vertices[0]")
	require.Len(t, vertices, 1)
	assert.Len(t, dev.Buffers[vertices[0]].Data, 24*math.Vertex3DStride)
	assert.Equal(t, gpu.MemoryDeviceLocal, dev.Buffers[vertices[0]].Desc.Memory)

	indices := dev.BufferByName("cube.indices[0]")
	require.Len(t, indices, 1)
	assert.Len(t, dev.Buffers[indices[0]].Data, 36*4)

	assert.Empty(t, dev.Modules, "shader modules are released once the pipeline exists")
	require.Len(t, dev.Pipelines, 1)
	assert.Equal(t, 0, r.Rebuilds())
	assert.NotEqual(t, r.ID().String(), "")
	assert.Empty(t, dev.Violations)
}

func TestSetupRejectsEmptyMesh(t *testing.T) {
	dev := gputest.NewDevice()
	r := New(gpu.NewContext(dev, 2), &metadata.Mesh{Name: "empty"}, resource.NewRenderParams(shaders()), swapInfo())
	defer func() {
		v := recover()
		require.NotNil(t, v)
		assert.True(t, core.IsContractViolation(v))
	}()
	_ = r.Setup()
}

func TestUpdateRebuildsOnlyAfterParamsChange(t *testing.T) {
	gputest.CaptureLog(t)
	params := cameraParams()
	r, dev := newRenderer(t, 2, params, 1)

	for f := uint32(0); f < 4; f++ {
		require.NoError(t, r.Update(&resource.FrameContext{Frame: f % 2, Number: uint64(f)}))
	}
	assert.Equal(t, 0, r.Rebuilds())
	assert.Zero(t, dev.WaitIdles)

	params.Invalidate()
	require.NoError(t, r.Update(&resource.FrameContext{Frame: 0}))
	require.NoError(t, r.Update(&resource.FrameContext{Frame: 1}))
	assert.Equal(t, 1, r.Rebuilds())
	assert.Equal(t, 1, dev.WaitIdles)

	params.SetRenderMode(metadata.RenderModeLines)
	require.NoError(t, r.Update(&resource.FrameContext{Frame: 0}))
	assert.Equal(t, 2, r.Rebuilds())
	require.Len(t, dev.Pipelines, 1)
	for _, p := range dev.Pipelines {
		assert.Equal(t, gpu.PolygonModeLine, p.Graphics.Polygon)
	}
	assert.Empty(t, dev.Violations)
}

func TestRebuildIsIdempotent(t *testing.T) {
	gputest.CaptureLog(t)
	params := cameraParams()
	params.SetUniformImage(1, "missing.png", gpu.ShaderStageFragment)
	r, dev := newRenderer(t, 3, params, 1)

	live := dev.Live()
	entries := append([]gpu.LayoutEntry(nil), dev.SetLayouts[r.renderSet.SetLayout()]...)
	images := len(dev.Images)

	require.NoError(t, r.Rebuild())
	require.NoError(t, r.Rebuild())

	assert.Equal(t, live, dev.Live())
	assert.Equal(t, entries, dev.SetLayouts[r.renderSet.SetLayout()])
	assert.Equal(t, images, len(dev.Images), "unchanged slots keep their resources")
	assert.Equal(t, 2, r.Rebuilds())
	assert.Empty(t, dev.Violations)
}

func TestCleanupOrder(t *testing.T) {
	gputest.CaptureLog(t)
	r, dev := newRenderer(t, 2, cameraParams(), 1)
	vertices := dev.BufferByName("cube.vertices[0]")
	indices := dev.BufferByName("cube.indices[0]")
	require.Len(t, vertices, 1)
	require.Len(t, indices, 1)

	// Staging buffers released during setup are not part of the teardown.
	setup := len(dev.Destroyed)
	r.Cleanup()
	teardown := dev.Destroyed[setup:]

	lastPipeline, firstDescriptor, firstSlotBuffer := -1, -1, -1
	for i, d := range teardown {
		switch {
		case strings.HasPrefix(d, "Pipeline"):
			lastPipeline = i
		case strings.HasPrefix(d, "Descriptor") && firstDescriptor < 0:
			firstDescriptor = i
		case strings.HasPrefix(d, "Buffer") && firstSlotBuffer < 0:
			firstSlotBuffer = i
		}
	}
	require.GreaterOrEqual(t, lastPipeline, 0)
	assert.Less(t, lastPipeline, firstDescriptor)
	assert.Less(t, firstDescriptor, firstSlotBuffer)

	n := len(teardown)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, []string{
		"Buffer:" + strconv.FormatUint(uint64(indices[0]), 10),
		"Buffer:" + strconv.FormatUint(uint64(vertices[0]), 10),
	}, teardown[n-2:])
	assert.Zero(t, dev.Live())
	assert.Empty(t, dev.Violations)
}

func TestMissingTextureFallsBackToPlaceholder(t *testing.T) {
	logs := gputest.CaptureLog(t)
	params := cameraParams()
	params.SetUniformImage(1, filepath.Join(t.TempDir(), "nope.png"), gpu.ShaderStageFragment)
	r, dev := newRenderer(t, 2, params, 1)

	assert.Len(t, logs.Warnings(), 1)
	require.Len(t, dev.Images, 1)
	for _, b := range r.bound {
		if b.Texture != nil {
			assert.True(t, b.Texture.Placeholder)
		}
	}
	for _, img := range dev.Images {
		assert.Equal(t, uint32(1), img.Desc.Width)
		assert.Equal(t, uint32(1), img.Desc.Height)
		assert.Equal(t, gpu.ImageLayoutShaderReadOnly, img.Layout)
	}

	cb := recording(t, dev)
	require.NoError(t, r.Update(&resource.FrameContext{Frame: 0}))
	r.Record(cb, 0)
	assert.Contains(t, ops(dev.CommandBuffers[cb].Commands), "DrawIndexed")
	assert.Len(t, logs.Warnings(), 1)
	assert.Empty(t, dev.Violations)
}

func TestImageHotSwap(t *testing.T) {
	gputest.CaptureLog(t)
	dir := t.TempDir()
	first := writePNG(t, dir, "a.png", 4, 4)
	second := writePNG(t, dir, "b.png", 8, 2)

	params := cameraParams()
	params.SetUniformImage(1, first, gpu.ShaderStageFragment).Linear(true)
	r, dev := newRenderer(t, 2, params, 1)
	require.Len(t, dev.Images, 1)

	params.UpdateUniformImage(1, second, gpu.ShaderStageFragment)
	require.NoError(t, r.Update(&resource.FrameContext{Frame: 1}))
	assert.Equal(t, 1, r.Rebuilds())

	require.Len(t, dev.Images, 1)
	var img gpu.Image
	for h, st := range dev.Images {
		img = h
		assert.Equal(t, uint32(8), st.Desc.Width)
		assert.Equal(t, uint32(2), st.Desc.Height)
	}
	for f := uint32(0); f < 2; f++ {
		var found bool
		for _, w := range dev.Sets[r.renderSet.Set(f)].Writes {
			if w.Binding == 1 {
				assert.Equal(t, img, w.Image)
				found = true
			}
		}
		assert.True(t, found, "frame %d set has the new image", f)
	}
	assert.Empty(t, dev.Violations)
}

func TestRecordBindsFrameResources(t *testing.T) {
	gputest.CaptureLog(t)
	params := cameraParams()
	resource.AttachElements(params.SetAttribute(1, gpu.InputRateInstance).
		Add(0, gpu.FormatR32G32B32A32Sfloat).
		Add(16, gpu.FormatR32G32B32A32Sfloat).
		Add(32, gpu.FormatR32G32B32A32Sfloat).
		Add(48, gpu.FormatR32G32B32A32Sfloat),
		func(fc *resource.FrameContext, out []mgl32.Mat4) {
			for i := range out {
				out[i] = mgl32.Translate3D(float32(i), 0, 0)
			}
		})
	r, dev := newRenderer(t, 2, params, 4)

	for f := uint32(0); f < 2; f++ {
		require.NoError(t, r.Update(&resource.FrameContext{Frame: f}))
		cb := recording(t, dev)
		r.Record(cb, f)
		cmds := dev.CommandBuffers[cb].Commands
		require.Equal(t, []string{
			"BindPipeline", "BindDescriptorSets", "BindVertexBuffers",
			"BindVertexBuffers", "BindIndexBuffer", "DrawIndexed",
		}, ops(cmds))

		assert.Equal(t, []gpu.DescriptorSet{r.renderSet.Set(f)}, cmds[1].Sets)
		assert.Equal(t, uint32(0), cmds[2].Counts[0])
		assert.Equal(t, []gpu.Buffer{r.vertices.Buffer(0)}, cmds[2].Buffers)
		assert.Equal(t, uint32(1), cmds[3].Counts[0])

		attr := r.attributes()[0]
		assert.Equal(t, []gpu.Buffer{attr.Ring.Buffer(f)}, cmds[3].Buffers)
		assert.Equal(t, [3]uint32{36, 4}, cmds[5].Counts)
	}
	assert.Empty(t, dev.Violations)
}

func TestComputePassDispatchesAndBarriers(t *testing.T) {
	gputest.CaptureLog(t)
	params := cameraParams()
	params.SetAttribute(1, gpu.InputRateInstance).
		Add(0, gpu.FormatR32G32B32A32Sfloat).
		OnlySetup(true).
		ComputeFriendly(true)
	params.SetCompute(metadata.ShaderSource{Path: "shaders/particles.comp.spv", Code: spirv}, 8, 1, 1)
	r, dev := newRenderer(t, 2, params, 16)

	require.NotNil(t, r.computeSet)
	assert.Len(t, r.computeSet.Entries(), 2)

	cb := recording(t, dev)
	r.RecordCompute(cb, 1)
	cmds := dev.CommandBuffers[cb].Commands
	require.Equal(t, []string{"BindPipeline", "BindDescriptorSets", "Dispatch", "BufferBarrier"}, ops(cmds))
	assert.Equal(t, gpu.BindPointCompute, cmds[0].Point)
	assert.Equal(t, [3]uint32{8, 1, 1}, cmds[2].Counts)
	assert.Equal(t, []gpu.Buffer{r.attributes()[0].Ring.Buffer(1)}, cmds[3].Buffers)
	assert.Empty(t, dev.Violations)
}

func TestNoComputePassWithoutComputeParams(t *testing.T) {
	gputest.CaptureLog(t)
	r, dev := newRenderer(t, 2, cameraParams(), 1)
	cb := recording(t, dev)
	r.RecordCompute(cb, 0)
	assert.Empty(t, dev.CommandBuffers[cb].Commands)
}

func TestSwapchainRecreatedRebuildsOnFormatChange(t *testing.T) {
	gputest.CaptureLog(t)
	r, dev := newRenderer(t, 2, cameraParams(), 1)

	resized := swapInfo()
	resized.Extent = gpu.Extent2D{Width: 640, Height: 480}
	require.NoError(t, r.SwapchainRecreated(resized))
	assert.Equal(t, 0, r.Rebuilds())

	reformatted := resized
	reformatted.ColorFormat = gpu.FormatB8G8R8A8Unorm
	require.NoError(t, r.SwapchainRecreated(reformatted))
	assert.Equal(t, 1, r.Rebuilds())
	for _, p := range dev.Pipelines {
		assert.Equal(t, gpu.FormatB8G8R8A8Unorm, p.Graphics.ColorFormat)
	}
	assert.Empty(t, dev.Violations)
}

func TestDrivesFramesThroughDriver(t *testing.T) {
	gputest.CaptureLog(t)
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	surface := gputest.NewSurface(1280, 720)
	driver, err := frame.NewDriver(ctx, surface, frame.Config{})
	require.NoError(t, err)

	params := cameraParams()
	r := New(ctx, cube(1), params, driver.Swapchain())
	require.NoError(t, r.Setup())
	driver.AddDrawable(r)
	driver.AddSwapchainListener(r)

	camera := r.bound[r.order[0]].Ring
	for i := 0; i < 6; i++ {
		if i == 3 {
			surface.Resize(gpu.Extent2D{Width: 800, Height: 600})
		}
		require.NoError(t, driver.Frame(func(f uint32) error {
			return r.Update(&resource.FrameContext{Frame: f, Number: driver.FrameNumber()})
		}))
	}
	assert.Equal(t, 0, r.Rebuilds(), "a resize keeps the formats")

	for f := uint32(0); f < 2; f++ {
		assert.Equal(t, float32(f), readFloat(dev.Buffers[camera.Buffer(f)].Data, 12), "frame %d translation", f)
	}

	require.NoError(t, driver.WaitIdle())
	r.Cleanup()
	driver.Destroy()
	assert.Zero(t, dev.Live())
	assert.Empty(t, dev.Violations)
}
