package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (b *Backend) CmdBeginRenderPass(h gpu.CommandBuffer, imageIndex uint32, clear gpu.ClearValues) {
	cb := b.recording(h)
	core.Assert(cb.state == commandBufferStateRecording, "render pass begun twice")
	core.Assert(b.renderpass != nil && int(imageIndex) < len(b.framebuffers), "no framebuffer for image %d", imageIndex)
	b.renderpass.begin(cb, b.framebuffers[imageIndex].Handle, clear)
}

func (b *Backend) CmdEndRenderPass(h gpu.CommandBuffer) {
	cb := b.recording(h)
	core.Assert(cb.state == commandBufferStateInRenderPass, "render pass ended outside a render pass")
	b.renderpass.end(cb)
}

func (b *Backend) CmdBindPipeline(h gpu.CommandBuffer, point gpu.BindPoint, p gpu.Pipeline) {
	cb := b.recording(h)
	vk.CmdBindPipeline(cb.handle, vkBindPoint(point), *lookup(b.objects.pipelines, uint64(p), "pipeline"))
}

func (b *Backend) CmdSetViewport(h gpu.CommandBuffer, vp gpu.Viewport) {
	cb := b.recording(h)
	vk.CmdSetViewport(cb.handle, 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (b *Backend) CmdSetScissor(h gpu.CommandBuffer, r gpu.Rect2D) {
	cb := b.recording(h)
	vk.CmdSetScissor(cb.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}})
}

func (b *Backend) CmdBindVertexBuffers(h gpu.CommandBuffer, first uint32, buffers []gpu.Buffer, offsets []uint64) {
	cb := b.recording(h)
	core.Assert(len(buffers) == len(offsets), "%d vertex buffers with %d offsets", len(buffers), len(offsets))
	handles := make([]vk.Buffer, len(buffers))
	sizes := make([]vk.DeviceSize, len(offsets))
	for i, buf := range buffers {
		handles[i] = lookup(b.objects.buffers, uint64(buf), "buffer").handle
		sizes[i] = vk.DeviceSize(offsets[i])
	}
	vk.CmdBindVertexBuffers(cb.handle, first, uint32(len(handles)), handles, sizes)
}

func (b *Backend) CmdBindIndexBuffer(h gpu.CommandBuffer, buf gpu.Buffer, offset uint64) {
	cb := b.recording(h)
	vk.CmdBindIndexBuffer(cb.handle, lookup(b.objects.buffers, uint64(buf), "buffer").handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (b *Backend) CmdBindDescriptorSets(h gpu.CommandBuffer, point gpu.BindPoint, layout gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	cb := b.recording(h)
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = *lookup(b.objects.sets, uint64(s), "descriptor set")
	}
	pl := *lookup(b.objects.pipelineLayouts, uint64(layout), "pipeline layout")
	vk.CmdBindDescriptorSets(cb.handle, vkBindPoint(point), pl, 0, uint32(len(handles)), handles, 0, nil)
}

func (b *Backend) CmdDrawIndexed(h gpu.CommandBuffer, indexCount, instanceCount uint32) {
	cb := b.recording(h)
	core.Assert(cb.state == commandBufferStateInRenderPass, "draw outside a render pass")
	vk.CmdDrawIndexed(cb.handle, indexCount, instanceCount, 0, 0, 0)
}

func (b *Backend) CmdDispatch(h gpu.CommandBuffer, x, y, z uint32) {
	cb := b.recording(h)
	core.Assert(cb.state == commandBufferStateRecording, "dispatch inside a render pass")
	vk.CmdDispatch(cb.handle, x, y, z)
}

// CmdBufferBarrier makes writes from one stage visible to reads in another
// for the whole buffer.
func (b *Backend) CmdBufferBarrier(h gpu.CommandBuffer, barrier gpu.BufferBarrier) {
	cb := b.recording(h)
	buf := lookup(b.objects.buffers, uint64(barrier.Buffer), "buffer")
	srcStage, srcAccess := vkPipelineStage(barrier.Src)
	dstStage, dstAccess := vkPipelineStage(barrier.Dst)
	vk.CmdPipelineBarrier(cb.handle, srcStage, dstStage, 0, 0, nil, 1, []vk.BufferMemoryBarrier{{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf.handle,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}}, 0, nil)
}
