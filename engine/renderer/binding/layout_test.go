package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

type camera struct {
	ViewProj [16]float32
}

func realizeAll(t *testing.T, ctx *gpu.Context, params *resource.RenderParams) []*resource.Bound {
	t.Helper()
	var out []*resource.Bound
	for _, a := range params.Active() {
		switch s := a.Slot.(type) {
		case *resource.ImageSlot:
			data, _ := resource.DecodeImage(s.Path())
			b, err := resource.Realize(ctx, "t", s, 0, data)
			require.NoError(t, err)
			out = append(out, b)
		default:
			b, err := resource.Realize(ctx, "t", s, 4, nil)
			require.NoError(t, err)
			out = append(out, b)
		}
	}
	t.Cleanup(func() {
		for _, b := range out {
			b.Destroy(ctx)
		}
	})
	return out
}

func declare(params *resource.RenderParams, order []uint32) {
	for _, binding := range order {
		switch binding {
		case 0:
			resource.Attach(params.SetUniform(0, gpu.ShaderStageVertex), func(*resource.FrameContext) camera { return camera{} })
		case 1:
			params.SetUniformImage(1, "", gpu.ShaderStageFragment)
		case 2:
			resource.Attach(params.SetUniform(2, gpu.ShaderStageFragment).OnlySetup(true), func(*resource.FrameContext) [4]float32 {
				return [4]float32{1, 1, 1, 1}
			})
		}
	}
}

func TestLayoutWritesMatchEntries(t *testing.T) {
	gputest.CaptureLog(t)
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 3)
	params := resource.NewRenderParams(resource.ShaderSet{})
	declare(params, []uint32{0, 1, 2})
	bound := realizeAll(t, ctx, params)

	l, err := Build(ctx, "mesh", bound, KindRender)
	require.NoError(t, err)
	defer l.Destroy()

	entries := dev.SetLayouts[l.SetLayout()]
	require.Len(t, entries, 3)
	assert.Equal(t, gpu.DescriptorTypeUniformBuffer, entries[0].Type)
	assert.Equal(t, gpu.DescriptorTypeCombinedImageSampler, entries[1].Type)
	assert.Equal(t, gpu.DescriptorTypeUniformBuffer, entries[2].Type)

	// One write per entry per frame, and each write's type matches its entry.
	require.Len(t, dev.UpdateBatches, 1)
	assert.Len(t, dev.UpdateBatches[0], 3*3)
	for f := uint32(0); f < 3; f++ {
		set := dev.Sets[l.Set(f)]
		require.Len(t, set.Writes, 3, "frame %d", f)
		for i, w := range set.Writes {
			assert.Equal(t, entries[i].Binding, w.Binding)
			assert.Equal(t, entries[i].Type, w.Type)
		}
		// Per-frame uniform points at the frame's own ring element.
		assert.Equal(t, bound[0].Ring.Buffer(f), set.Writes[0].Buffer)
		// Setup-only uniform has a single element shared by all frames.
		assert.Equal(t, bound[2].Ring.Buffer(0), set.Writes[2].Buffer)
	}

	pool := dev.Pools[dev.Sets[l.Set(0)].Pool]
	assert.Equal(t, uint32(3), pool.MaxSets)
	require.Len(t, pool.Sizes, 3)
	total := uint32(0)
	for _, s := range pool.Sizes {
		total += s.Count
	}
	assert.Equal(t, uint32(3*3), total)
	assert.Empty(t, dev.Violations)
}

func TestLayoutIgnoresDeclarationOrder(t *testing.T) {
	gputest.CaptureLog(t)
	layoutFor := func(order []uint32) []gpu.LayoutEntry {
		dev := gputest.NewDevice()
		ctx := gpu.NewContext(dev, 2)
		params := resource.NewRenderParams(resource.ShaderSet{})
		declare(params, order)
		l, err := Build(ctx, "mesh", realizeAll(t, ctx, params), KindRender)
		require.NoError(t, err)
		defer l.Destroy()
		return dev.SetLayouts[l.SetLayout()]
	}
	assert.Equal(t, layoutFor([]uint32{0, 1, 2}), layoutFor([]uint32{2, 0, 1}))
	assert.Equal(t, layoutFor([]uint32{0, 1, 2}), layoutFor([]uint32{1, 2, 0}))
}

func TestRenderLayoutSkipsAttributes(t *testing.T) {
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	params := resource.NewRenderParams(resource.ShaderSet{})
	params.SetAttribute(1, gpu.InputRateInstance).Add(0, gpu.FormatR32G32B32A32Sfloat)
	bound := realizeAll(t, ctx, params)

	l, err := Build(ctx, "mesh", bound, KindRender)
	require.NoError(t, err)
	assert.Empty(t, l.Entries())
	assert.True(t, l.Empty())
	assert.Equal(t, gpu.DescriptorSet(0), l.Set(0))
	assert.Empty(t, dev.Pools)

	l.Destroy()
	l.Destroy()
	assert.Empty(t, dev.SetLayouts)
	assert.Empty(t, dev.Violations)
}

func TestComputeLayoutPingPongsAttributes(t *testing.T) {
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	params := resource.NewRenderParams(resource.ShaderSet{})
	resource.Attach(params.SetUniform(0, gpu.ShaderStageCompute), func(fc *resource.FrameContext) float32 {
		return float32(fc.DeltaTime.Seconds())
	})
	params.SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32G32B32A32Sfloat).OnlySetup(true).ComputeFriendly(true)
	params.SetAttribute(5, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat).OnlySetup(true).ComputeFriendly(true).SingleBuffered(true)
	// Vertex-only uniform stays out of the compute set.
	resource.Attach(params.SetUniform(7, gpu.ShaderStageVertex), func(*resource.FrameContext) float32 { return 0 })
	bound := realizeAll(t, ctx, params)

	l, err := Build(ctx, "particles", bound, KindCompute)
	require.NoError(t, err)
	defer l.Destroy()

	got := make([]uint32, 0)
	for _, e := range l.Entries() {
		got = append(got, e.Binding)
	}
	assert.Equal(t, []uint32{0, 1, 2, 5, 6}, got)

	attr, single := bound[1], bound[2]
	for f := uint32(0); f < 2; f++ {
		writes := dev.Sets[l.Set(f)].Writes
		require.Len(t, writes, 5)
		assert.Equal(t, gpu.DescriptorTypeStorageBuffer, writes[1].Type)
		assert.Equal(t, attr.Ring.BufferAt(f, 1), writes[1].Buffer, "read binding sees the previous frame")
		assert.Equal(t, attr.Ring.Buffer(f), writes[2].Buffer, "write binding is the current frame")
		assert.NotEqual(t, writes[1].Buffer, writes[2].Buffer)

		// The single buffer answers at the default read binding too.
		assert.Equal(t, uint32(5), writes[3].Binding)
		assert.Equal(t, uint32(6), writes[4].Binding)
		assert.Equal(t, single.Ring.Buffer(0), writes[3].Buffer)
		assert.Equal(t, single.Ring.Buffer(0), writes[4].Buffer)
	}

	// Pair doubles the attribute's pool share.
	pool := dev.Pools[dev.Sets[l.Set(0)].Pool]
	storage := uint32(0)
	for _, s := range pool.Sizes {
		if s.Type == gpu.DescriptorTypeStorageBuffer {
			storage += s.Count
		}
	}
	assert.Equal(t, uint32(2*2+2*2), storage)
	assert.Empty(t, dev.Violations)
}

func TestDuplicateComputeBindingIsContractViolation(t *testing.T) {
	dev := gputest.NewDevice()
	ctx := gpu.NewContext(dev, 2)
	params := resource.NewRenderParams(resource.ShaderSet{})
	resource.Attach(params.SetUniform(2, gpu.ShaderStageCompute), func(*resource.FrameContext) float32 { return 0 })
	params.SetAttribute(1, gpu.InputRateVertex).Add(0, gpu.FormatR32Sfloat).OnlySetup(true).ComputeFriendly(true)
	bound := realizeAll(t, ctx, params)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.True(t, core.IsContractViolation(r))
	}()
	_, _ = Build(ctx, "dup", bound, KindCompute)
}
