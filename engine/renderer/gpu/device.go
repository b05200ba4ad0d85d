package gpu

import "time"

// NoTimeout makes a fence wait block until the fence signals.
const NoTimeout = time.Duration(1<<63 - 1)

// MemoryDevice creates and maps buffer, image and sampler memory.
type MemoryDevice interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	// MapBuffer returns a persistent host view of a host-visible buffer.
	MapBuffer(b Buffer) ([]byte, error)
	UnmapBuffer(b Buffer)
	DestroyBuffer(b Buffer)

	CreateImage(desc ImageDesc) (Image, error)
	DestroyImage(img Image)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler)
}

// TransferDevice records one-shot upload work. EndOneShot submits, waits for
// the queue to drain and frees the command buffer.
type TransferDevice interface {
	BeginOneShot() (CommandBuffer, error)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, size uint64)
	CmdTransitionImage(cb CommandBuffer, img Image, from, to ImageLayout)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, width, height uint32)
	EndOneShot(cb CommandBuffer) error
}

type BindingDevice interface {
	CreateDescriptorSetLayout(entries []LayoutEntry) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(sizes []PoolSize, maxSets uint32) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layout DescriptorSetLayout, count uint32) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)
}

type PipelineDevice interface {
	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreatePipelineLayout(sets []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	CreateComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	WaitIdle() error
}

// Recorder writes commands into a command buffer that is in the recording state.
type Recorder interface {
	CmdBeginRenderPass(cb CommandBuffer, imageIndex uint32, clear ClearValues)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, point BindPoint, p Pipeline)
	CmdSetViewport(cb CommandBuffer, vp Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect2D)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, offset uint64)
	CmdBindDescriptorSets(cb CommandBuffer, point BindPoint, layout PipelineLayout, sets []DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount uint32)
	CmdDispatch(cb CommandBuffer, x, y, z uint32)
	CmdBufferBarrier(cb CommandBuffer, barrier BufferBarrier)
}

type FrameDevice interface {
	CreateSwapchain(extent Extent2D) (SwapchainInfo, error)
	DestroySwapchain()
	// AcquireNextImage signals the semaphore once the image is ready.
	AcquireNextImage(signal Semaphore) (uint32, PresentStatus, error)
	Present(imageIndex uint32, wait Semaphore) (PresentStatus, error)

	CreateFence(signaled bool) (Fence, error)
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	DestroyFence(f Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error

	WaitIdle() error
}

// Device is everything a backend provides.
type Device interface {
	MemoryDevice
	TransferDevice
	BindingDevice
	PipelineDevice
	Recorder
	FrameDevice
}
