package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type commandBufferState int

const (
	commandBufferStateReady commandBufferState = iota
	commandBufferStateRecording
	commandBufferStateInRenderPass
	commandBufferStateRecordingEnded
	commandBufferStateSubmitted
)

func (s commandBufferState) String() string {
	switch s {
	case commandBufferStateReady:
		return "ready"
	case commandBufferStateRecording:
		return "recording"
	case commandBufferStateInRenderPass:
		return "in render pass"
	case commandBufferStateRecordingEnded:
		return "recording ended"
	case commandBufferStateSubmitted:
		return "submitted"
	}
	return "unknown"
}

type commandBuffer struct {
	handle  vk.CommandBuffer
	state   commandBufferState
	oneShot bool
}

func (b *Backend) allocateCommandBuffer(oneShot bool) (*commandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.device.GraphicsCommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(b.device.LogicalDevice, &allocateInfo, handles), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return &commandBuffer{handle: handles[0], state: commandBufferStateReady, oneShot: oneShot}, nil
}

func (b *Backend) commandBuffer(h gpu.CommandBuffer) *commandBuffer {
	return lookup(b.objects.commandBuffers, uint64(h), "command buffer")
}

// recording asserts the buffer accepts commands and returns it.
func (b *Backend) recording(h gpu.CommandBuffer) *commandBuffer {
	cb := b.commandBuffer(h)
	core.Assert(cb.state == commandBufferStateRecording || cb.state == commandBufferStateInRenderPass,
		"command buffer %d is %s, not recording", h, cb.state)
	return cb
}

func (b *Backend) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	cb, err := b.allocateCommandBuffer(false)
	if err != nil {
		return 0, err
	}
	return gpu.CommandBuffer(b.objects.commandBuffers.Acquire(cb)), nil
}

func (b *Backend) FreeCommandBuffer(h gpu.CommandBuffer) {
	cb, ok := b.objects.commandBuffers.Release(uint64(h))
	core.Assert(ok, "unknown command buffer handle %d", h)
	vk.FreeCommandBuffers(b.device.LogicalDevice, b.device.GraphicsCommandPool, 1, []vk.CommandBuffer{cb.handle})
}

func (b *Backend) ResetCommandBuffer(h gpu.CommandBuffer) error {
	cb := b.commandBuffer(h)
	if err := check(vk.ResetCommandBuffer(cb.handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferStateReady
	return nil
}

func (b *Backend) BeginCommandBuffer(h gpu.CommandBuffer) error {
	return b.begin(b.commandBuffer(h))
}

func (b *Backend) begin(cb *commandBuffer) error {
	core.Assert(cb.state == commandBufferStateReady, "begin on a %s command buffer", cb.state)
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if cb.oneShot {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := check(vk.BeginCommandBuffer(cb.handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferStateRecording
	return nil
}

func (b *Backend) EndCommandBuffer(h gpu.CommandBuffer) error {
	return b.end(b.commandBuffer(h))
}

func (b *Backend) end(cb *commandBuffer) error {
	core.Assert(cb.state == commandBufferStateRecording, "end on a %s command buffer", cb.state)
	if err := check(vk.EndCommandBuffer(cb.handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferStateRecordingEnded
	return nil
}

// Submit waits on wait at the color attachment output stage and signals
// signal and fence once the work completes. Zero handles are skipped.
func (b *Backend) Submit(h gpu.CommandBuffer, wait, signal gpu.Semaphore, f gpu.Fence) error {
	cb := b.commandBuffer(h)
	core.Assert(cb.state == commandBufferStateRecordingEnded, "submit of a %s command buffer", cb.state)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	if wait != 0 {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{*lookup(b.objects.semaphores, uint64(wait), "semaphore")}
		// Each semaphore waits on the corresponding pipeline stage to complete.
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if signal != 0 {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{*lookup(b.objects.semaphores, uint64(signal), "semaphore")}
	}
	var vf vk.Fence
	if f != 0 {
		vf = lookup(b.objects.fences, uint64(f), "fence").handle
	}

	err := b.locks.SafeQueueCall(uint32(b.device.GraphicsQueueIndex), func() error {
		return check(vk.QueueSubmit(b.device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vf), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	cb.state = commandBufferStateSubmitted
	return nil
}

// BeginOneShot allocates a command buffer and begins recording to it.
func (b *Backend) BeginOneShot() (gpu.CommandBuffer, error) {
	cb, err := b.allocateCommandBuffer(true)
	if err != nil {
		return 0, err
	}
	if err := b.begin(cb); err != nil {
		vk.FreeCommandBuffers(b.device.LogicalDevice, b.device.GraphicsCommandPool, 1, []vk.CommandBuffer{cb.handle})
		return 0, err
	}
	return gpu.CommandBuffer(b.objects.commandBuffers.Acquire(cb)), nil
}

// EndOneShot ends recording, submits to and waits for the graphics queue and
// frees the command buffer.
func (b *Backend) EndOneShot(h gpu.CommandBuffer) error {
	cb := b.commandBuffer(h)
	core.Assert(cb.oneShot, "command buffer %d is not a one-shot buffer", h)
	defer b.FreeCommandBuffer(h)

	if err := b.end(cb); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	return b.locks.SafeQueueCall(uint32(b.device.GraphicsQueueIndex), func() error {
		if err := check(vk.QueueSubmit(b.device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "vkQueueSubmit"); err != nil {
			return err
		}
		// Wait for it to finish
		return check(vk.QueueWaitIdle(b.device.GraphicsQueue), "vkQueueWaitIdle")
	})
}

func (b *Backend) CmdCopyBuffer(h gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	cb := b.recording(h)
	from := lookup(b.objects.buffers, uint64(src), "buffer")
	to := lookup(b.objects.buffers, uint64(dst), "buffer")
	core.Assert(size <= from.size && size <= to.size, "copy of %d bytes from %q to %q overflows", size, from.name, to.name)
	vk.CmdCopyBuffer(cb.handle, from.handle, to.handle, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

func (b *Backend) CmdTransitionImage(h gpu.CommandBuffer, handle gpu.Image, from, to gpu.ImageLayout) {
	cb := b.recording(h)
	img := lookup(b.objects.images, uint64(handle), "image")

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vkImageLayout(from),
		NewLayout:           vkImageLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case from == gpu.ImageLayoutUndefined && to == gpu.ImageLayoutTransferDst:
		// Don't care about the old layout - transition to optimal layout (for the underlying implementation).
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case from == gpu.ImageLayoutTransferDst && to == gpu.ImageLayoutShaderReadOnly:
		// Transitioning from a transfer destination layout to a shader-readonly layout.
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		core.Assert(false, "unsupported layout transition %d -> %d", from, to)
	}

	vk.CmdPipelineBarrier(cb.handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (b *Backend) CmdCopyBufferToImage(h gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, width, height uint32) {
	cb := b.recording(h)
	from := lookup(b.objects.buffers, uint64(src), "buffer")
	img := lookup(b.objects.images, uint64(dst), "image")

	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.handle, from.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}
