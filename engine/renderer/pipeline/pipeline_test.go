package pipeline

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func testConfig() Config {
	return Config{
		Name:          "cube",
		Vertex:        metadata.ShaderSource{Code: spirv},
		Fragment:      metadata.ShaderSource{Code: spirv, Entry: "fs_main"},
		CullBackfaces: true,
	}
}

func newSetLayout(t *testing.T, dev *gputest.Device) gpu.DescriptorSetLayout {
	l, err := dev.CreateDescriptorSetLayout(nil)
	require.NoError(t, err)
	return l
}

func swapInfo() gpu.SwapchainInfo {
	return gpu.SwapchainInfo{ColorFormat: gpu.FormatB8G8R8A8Srgb, DepthFormat: gpu.FormatD32Sfloat, Extent: gpu.Extent2D{Width: 800, Height: 600}}
}

func TestBuildDestroysShaderModules(t *testing.T) {
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	g := NewGraphics(ctx)

	require.NoError(t, g.Build(testConfig(), []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, swapInfo(), 4))
	assert.Empty(t, dev.Modules)
	require.Contains(t, dev.Pipelines, g.Handle())

	desc := dev.Pipelines[g.Handle()].Graphics
	assert.Equal(t, gpu.PolygonModeFill, desc.Polygon)
	assert.Equal(t, gpu.CullModeBack, desc.Cull)
	assert.True(t, desc.DepthTest)
	assert.Equal(t, "main", desc.Stages[0].Entry)
	assert.Equal(t, "fs_main", desc.Stages[1].Entry)
	assert.Equal(t, uint64(4), g.Version())

	g.Destroy()
	g.Destroy()
	assert.Empty(t, dev.Pipelines)
	assert.Empty(t, dev.PipelineLayouts)
	assert.Empty(t, dev.Violations)
}

func TestRenderModeSelectsPolygonMode(t *testing.T) {
	assert.Equal(t, gpu.PolygonModeFill, PolygonMode(metadata.RenderModeTriangles))
	assert.Equal(t, gpu.PolygonModeLine, PolygonMode(metadata.RenderModeLines))
	assert.Equal(t, gpu.PolygonModePoint, PolygonMode(metadata.RenderModePoints))
}

func TestNeedsRebuild(t *testing.T) {
	dev := gputest.NewDevice()
	g := NewGraphics(gpu.NewContext(dev, 2))
	swap := swapInfo()
	assert.True(t, g.NeedsRebuild(0, swap))

	require.NoError(t, g.Build(testConfig(), []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, swap, 1))
	assert.False(t, g.NeedsRebuild(1, swap))
	assert.True(t, g.NeedsRebuild(2, swap))

	resized := swap
	resized.Extent = gpu.Extent2D{Width: 1024, Height: 768}
	assert.False(t, g.NeedsRebuild(1, resized), "extent alone never rebuilds")

	reformatted := swap
	reformatted.ColorFormat = gpu.FormatB8G8R8A8Unorm
	assert.True(t, g.NeedsRebuild(1, reformatted))
}

func TestRebuildOrder(t *testing.T) {
	dev := gputest.NewDevice()
	g := NewGraphics(gpu.NewContext(dev, 2))
	require.NoError(t, g.Build(testConfig(), []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, swapInfo(), 1))
	dev.Calls = nil

	order := []string{}
	err := g.Rebuild(2, swapInfo(), func() {
		order = append(order, "teardown")
		assert.Zero(t, g.Handle(), "pipeline destroyed before teardown")
	}, func() (Config, []gpu.DescriptorSetLayout, error) {
		order = append(order, "derive")
		return testConfig(), []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"teardown", "derive"}, order)
	assert.Equal(t, "WaitIdle", dev.Calls[0])
	assert.Equal(t, "DestroyPipeline", dev.Calls[1])
	assert.Equal(t, uint64(2), g.Version())
	assert.Len(t, dev.Pipelines, 1)
}

func TestBuildFailureIsFatalAndClean(t *testing.T) {
	dev := gputest.NewDevice()
	g := NewGraphics(gpu.NewContext(dev, 2))
	dev.FailNext["CreateGraphicsPipeline"] = errors.New("device lost")

	err := g.Build(testConfig(), []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, swapInfo(), 1)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Empty(t, dev.Modules)
	assert.Empty(t, dev.PipelineLayouts)
	assert.Zero(t, g.Handle())
}

func TestVertexInputLocations(t *testing.T) {
	params := resource.NewRenderParams(resource.ShaderSet{})
	color := params.SetAttribute(3, gpu.InputRateVertex).Add(0, gpu.FormatR32G32B32A32Sfloat)
	model := params.SetAttribute(1, gpu.InputRateInstance).
		Add(0, gpu.FormatR32G32B32A32Sfloat).
		Add(16, gpu.FormatR32G32B32A32Sfloat)

	bindings, attrs := VertexInput([]*resource.AttributeSlot{color.Slot(), model.Slot()})
	require.Len(t, bindings, 3)
	assert.Equal(t, gpu.VertexBinding{Binding: 0, Stride: 32, Rate: gpu.InputRateVertex}, bindings[0])
	assert.Equal(t, uint32(1), bindings[1].Binding)
	assert.Equal(t, gpu.InputRateInstance, bindings[1].Rate)
	assert.Equal(t, uint32(32), bindings[1].Stride)
	assert.Equal(t, uint32(3), bindings[2].Binding)

	require.Len(t, attrs, 6)
	for i, a := range attrs {
		assert.Equal(t, uint32(i), a.Location)
	}
	assert.Equal(t, uint32(1), attrs[3].Binding)
	assert.Equal(t, uint32(16), attrs[4].Offset)
	assert.Equal(t, uint32(3), attrs[5].Binding)
}

func TestComputeDispatch(t *testing.T) {
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	c := NewCompute(ctx)
	require.NoError(t, c.Build("sim", metadata.ShaderSource{Code: spirv}, [3]uint32{8, 1, 1}, []gpu.DescriptorSetLayout{newSetLayout(t, dev)}, 1))
	assert.Empty(t, dev.Modules)

	cb, err := dev.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, dev.BeginCommandBuffer(cb))
	c.Dispatch(cb, ctx.Recorder(), 0)
	cmds := dev.CommandBuffers[cb].Commands
	require.Len(t, cmds, 2)
	assert.Equal(t, gpu.BindPointCompute, cmds[0].Point)
	assert.Equal(t, [3]uint32{8, 1, 1}, cmds[1].Counts)

	c.Destroy()
	assert.Empty(t, dev.Pipelines)
}
