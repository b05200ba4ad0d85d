package resource

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func newContext(t *testing.T, frames uint32) (*gpu.Context, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	return gpu.NewContext(dev, frames), dev
}

func requireContractViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		assert.True(t, core.IsContractViolation(r), "unexpected panic %v", r)
	}()
	fn()
}

func TestRingElementIndexing(t *testing.T) {
	ctx, _ := newContext(t, 3)
	ring, err := NewRing(ctx, RingDesc{Count: 3, Size: 16, Usage: gpu.BufferUsageUniform, Name: "r"})
	require.NoError(t, err)
	defer ring.Destroy()

	for f := uint32(0); f < 6; f++ {
		assert.Equal(t, f%3, ring.Element(f, 0))
		assert.Equal(t, (f+2)%3, ring.Element(f, 1), "frame %d reads the previous frame", f)
		assert.Equal(t, ring.Buffer(f), ring.BufferAt(f, 0))
	}
	// Offsets wrap around the ring length.
	assert.Equal(t, ring.Element(1, 1), ring.Element(1, 4))
}

func TestRingUpdatesNeverAlias(t *testing.T) {
	ctx, dev := newContext(t, 3)
	params := NewRenderParams(ShaderSet{})
	b := params.SetUniform(1, gpu.ShaderStageVertex)
	Attach(b, func(fc *FrameContext) uint32 { return 0xA0 + fc.Frame })

	bound, err := Realize(ctx, "mesh", b.Slot(), 0, nil)
	require.NoError(t, err)
	defer bound.Destroy(ctx)
	require.Equal(t, uint32(3), bound.Ring.Count())

	for f := uint32(0); f < 3; f++ {
		bound.Update(&FrameContext{Frame: f})
	}
	for f := uint32(0); f < 3; f++ {
		data := dev.Buffers[bound.Ring.Buffer(f)].Data
		assert.Equal(t, 0xA0+f, binary.LittleEndian.Uint32(data), "frame %d sentinel", f)
	}

	// Frame 4 lands on element 1 and leaves 0 and 2 untouched.
	bound.Update(&FrameContext{Frame: 4})
	assert.Equal(t, uint32(0xA4), binary.LittleEndian.Uint32(dev.Buffers[bound.Ring.Buffer(1)].Data))
	assert.Equal(t, uint32(0xA0), binary.LittleEndian.Uint32(dev.Buffers[bound.Ring.Buffer(0)].Data))
	assert.Equal(t, uint32(0xA2), binary.LittleEndian.Uint32(dev.Buffers[bound.Ring.Buffer(2)].Data))
	assert.Empty(t, dev.Violations)
}

func TestRingMapsOnceAndDestroysOnce(t *testing.T) {
	ctx, dev := newContext(t, 2)
	ring, err := NewRing(ctx, RingDesc{Count: 2, Size: 8, Usage: gpu.BufferUsageUniform, Name: "once"})
	require.NoError(t, err)
	for _, b := range ring.Buffers() {
		assert.Equal(t, 1, dev.Buffers[b].MapCount)
	}
	ring.Destroy()
	ring.Destroy()
	assert.Empty(t, dev.Buffers)
	assert.Empty(t, dev.Violations)
}

func TestRingPartialFailureIsFatalAndClean(t *testing.T) {
	ctx, dev := newContext(t, 3)
	dev.FailNext["MapBuffer"] = errors.New("out of host memory")
	_, err := NewRing(ctx, RingDesc{Count: 3, Size: 8, Usage: gpu.BufferUsageUniform, Name: "fail"})
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Empty(t, dev.Buffers)
	assert.Empty(t, dev.Violations)
}

func TestDeviceLocalUploadGoesThroughStaging(t *testing.T) {
	ctx, dev := newContext(t, 2)
	ring, err := NewRing(ctx, RingDesc{
		Count:  2,
		Size:   4,
		Usage:  gpu.BufferUsageStorage | gpu.BufferUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
		Name:   "dl",
	})
	require.NoError(t, err)
	defer ring.Destroy()
	assert.Nil(t, ring.View(0))

	require.NoError(t, ring.Upload([]byte{1, 2, 3, 4}))
	for _, b := range ring.Buffers() {
		assert.Equal(t, []byte{1, 2, 3, 4}, dev.Buffers[b].Data)
	}
	assert.Equal(t, 1, dev.OneShots)
	assert.Len(t, dev.Buffers, 2, "staging buffer released")
}

type instance struct {
	Model mgl32.Mat4
}

func TestAttributeRedundancyAndLayout(t *testing.T) {
	ctx, _ := newContext(t, 3)
	params := NewRenderParams(ShaderSet{})

	dynamic := params.SetAttribute(1, gpu.InputRateInstance).
		Add(0, gpu.FormatR32G32B32A32Sfloat).
		Add(16, gpu.FormatR32G32B32A32Sfloat).
		Add(32, gpu.FormatR32G32B32A32Sfloat).
		Add(48, gpu.FormatR32G32B32A32Sfloat)
	AttachElements(dynamic, func(fc *FrameContext, out []instance) {
		for i := range out {
			out[i].Model = mgl32.Translate3D(float32(i), float32(fc.Frame), 0)
		}
	})
	static := params.SetAttribute(2, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat).OnlySetup(true)
	AttachElements(static, func(_ *FrameContext, out []float32) {
		for i := range out {
			out[i] = float32(i)
		}
	})
	single := params.SetAttribute(3, gpu.InputRateVertex).Add(0, gpu.FormatR32Uint).OnlySetup(true).ComputeFriendly(true).SingleBuffered(true)
	compute := params.SetAttribute(4, gpu.InputRateVertex).Add(0, gpu.FormatR32Uint).OnlySetup(true).ComputeFriendly(true)

	bd := dynamic.Slot().BindingDescription()
	assert.Equal(t, gpu.VertexBinding{Binding: 1, Stride: 64, Rate: gpu.InputRateInstance}, bd)

	cases := []struct {
		builder *AttributeBuilder
		count   uint32
	}{{dynamic, 3}, {static, 1}, {single, 1}, {compute, 3}}
	for _, c := range cases {
		bound, err := Realize(ctx, "m", c.builder.Slot(), 5, nil)
		require.NoError(t, err)
		assert.Equal(t, c.count, bound.Ring.Count(), "binding %d", c.builder.Slot().Binding())
		bound.Destroy(ctx)
	}

	read, write := compute.Slot().ComputeBindings()
	assert.Equal(t, uint32(4), read)
	assert.Equal(t, uint32(5), write)
}

func TestAttributeContracts(t *testing.T) {
	ctx, _ := newContext(t, 2)

	requireContractViolation(t, func() {
		NewRenderParams(ShaderSet{}).SetAttribute(0, gpu.InputRateVertex)
	})
	requireContractViolation(t, func() {
		p := NewRenderParams(ShaderSet{})
		p.SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat)
		p.SetAttribute(1, gpu.InputRateVertex)
	})
	requireContractViolation(t, func() {
		b := NewRenderParams(ShaderSet{}).SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat).ComputeFriendly(true)
		_, _ = Realize(ctx, "m", b.Slot(), 1, nil)
	})
	requireContractViolation(t, func() {
		b := NewRenderParams(ShaderSet{}).SetAttribute(1, gpu.InputRateVertex)
		b.Slot().BindingDescription()
	})
	requireContractViolation(t, func() {
		b := NewRenderParams(ShaderSet{}).SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat).SingleBuffered(true)
		_, _ = Realize(ctx, "m", b.Slot(), 1, nil)
	})
	requireContractViolation(t, func() {
		// Fields span 16 bytes but the element type is 4.
		b := NewRenderParams(ShaderSet{}).SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32G32B32A32Sfloat)
		AttachElements(b, func(*FrameContext, []float32) {})
		_, _ = Realize(ctx, "m", b.Slot(), 1, nil)
	})
	requireContractViolation(t, func() {
		b := NewRenderParams(ShaderSet{}).SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat)
		bound, err := Realize(ctx, "m", b.Slot(), 1, nil)
		require.NoError(t, err)
		defer bound.Destroy(ctx)
		b.OnlySetup(true)
	})
}

func TestOnlySetupUniformIgnoresUpdates(t *testing.T) {
	ctx, dev := newContext(t, 2)
	calls := 0
	b := NewRenderParams(ShaderSet{}).SetUniform(2, gpu.ShaderStageFragment).OnlySetup(true)
	Attach(b, func(*FrameContext) [4]float32 {
		calls++
		return [4]float32{1, 2, 3, 4}
	})
	bound, err := Realize(ctx, "m", b.Slot(), 0, nil)
	require.NoError(t, err)
	defer bound.Destroy(ctx)

	assert.Equal(t, uint32(1), bound.Ring.Count())
	bound.Update(&FrameContext{Frame: 1})
	assert.Equal(t, 1, calls)
	assert.Len(t, dev.Buffers[bound.Ring.Buffer(0)].Data, 16)
}

func TestRenderParamsVersioning(t *testing.T) {
	p := NewRenderParams(ShaderSet{})
	Attach(p.SetUniform(0, gpu.ShaderStageVertex), func(*FrameContext) float32 { return 1 })
	p.SetUniformImage(1, "a.png", gpu.ShaderStageFragment)
	v := p.Version()

	p.SetRenderMode(metadata.RenderModeTriangles)
	assert.Equal(t, v, p.Version(), "same mode keeps the version")
	p.SetRenderMode(metadata.RenderModeLines)
	assert.Equal(t, v+1, p.Version())
	p.Invalidate()
	assert.Equal(t, v+2, p.Version())
	p.SetBackfaceCulling(true)
	assert.Equal(t, v+2, p.Version())

	before := p.Active()
	require.Len(t, before, 2)
	p.UpdateUniformImage(1, "b.png", gpu.ShaderStageFragment)
	assert.Equal(t, v+3, p.Version())

	after := p.Active()
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0], "unchanged slots keep their id")
	assert.NotEqual(t, before[1].ID, after[1].ID)
	assert.Equal(t, "b.png", after[1].Slot.(*ImageSlot).Path())
	assert.Len(t, p.ImagesAt("b.png"), 1)
	assert.Empty(t, p.ImagesAt("a.png"))

	requireContractViolation(t, func() { p.UpdateUniform(9, gpu.ShaderStageVertex) })
	requireContractViolation(t, func() { p.SetUniformImage(1, "c.png", gpu.ShaderStageFragment) })
}

func TestReferencesShader(t *testing.T) {
	p := NewRenderParams(ShaderSet{
		Vertex:   metadata.ShaderSource{Path: "v.spv"},
		Fragment: metadata.ShaderSource{Path: "f.spv"},
	})
	assert.True(t, p.ReferencesShader("v.spv"))
	assert.False(t, p.ReferencesShader("c.spv"))
	p.SetCompute(metadata.ShaderSource{Path: "c.spv"}, 1, 1, 1)
	assert.True(t, p.ReferencesShader("c.spv"))
	assert.False(t, p.ReferencesShader(""))
}

func TestMissingImageUsesPlaceholderWithOneWarning(t *testing.T) {
	logs := gputest.CaptureLog(t)
	ctx, dev := newContext(t, 2)

	data, placeholder := DecodeImage("")
	require.True(t, placeholder)
	b := NewRenderParams(ShaderSet{}).SetUniformImage(3, "", gpu.ShaderStageFragment)
	bound, err := Realize(ctx, "m", b.Slot(), 0, data)
	require.NoError(t, err)

	require.NotNil(t, bound.Texture)
	assert.True(t, bound.Texture.Placeholder)
	img := dev.Images[bound.Texture.Image]
	assert.Equal(t, uint32(1), img.Desc.Width)
	assert.Equal(t, uint32(1), img.Desc.Height)
	assert.Equal(t, gpu.ImageLayoutShaderReadOnly, img.Layout)
	assert.Equal(t, placeholderPixel, img.Data)
	assert.Len(t, logs.Warnings(), 1)

	assert.Equal(t, []gputest.Transition{
		{Image: bound.Texture.Image, From: gpu.ImageLayoutUndefined, To: gpu.ImageLayoutTransferDst},
		{Image: bound.Texture.Image, From: gpu.ImageLayoutTransferDst, To: gpu.ImageLayoutShaderReadOnly},
	}, dev.Transitions)

	bound.Destroy(ctx)
	assert.Empty(t, dev.Buffers, "staging buffer destroyed")
	assert.Empty(t, dev.Images)
	assert.Empty(t, dev.Samplers)
	assert.Empty(t, dev.Violations)
}

func TestImageSlotIsFrozenAfterSetup(t *testing.T) {
	gputest.CaptureLog(t)
	ctx, _ := newContext(t, 2)

	b := NewRenderParams(ShaderSet{}).SetUniformImage(1, "", gpu.ShaderStageFragment).Linear(true)
	data, _ := DecodeImage("")
	bound, err := Realize(ctx, "m", b.Slot(), 0, data)
	require.NoError(t, err)
	defer bound.Destroy(ctx)

	requireContractViolation(t, func() { b.Linear(false) })
	assert.True(t, b.Slot().IsLinear())
}

func TestDecodedImageIsNotPlaceholder(t *testing.T) {
	ctx, _ := newContext(t, 2)
	data := &metadata.ImageResourceData{Source: "albedo.png", Width: 1, Height: 1, Pixels: []byte{1, 2, 3, 4}}
	tex, err := UploadTexture(ctx, "albedo", data, false)
	require.NoError(t, err)
	defer tex.Destroy(ctx)
	assert.False(t, tex.Placeholder)
}
