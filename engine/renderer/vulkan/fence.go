package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type fence struct {
	handle   vk.Fence
	signaled bool
}

func (b *Backend) CreateFence(signaled bool) (gpu.Fence, error) {
	f := &fence{
		// Make sure to signal the fence if required.
		signaled: signaled,
	}
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := check(vk.CreateFence(b.device.LogicalDevice, &fenceCreateInfo, b.allocator, &handle), "vkCreateFence"); err != nil {
		return 0, err
	}
	f.handle = handle
	return gpu.Fence(b.objects.fences.Acquire(f)), nil
}

func (b *Backend) DestroyFence(h gpu.Fence) {
	f, ok := b.objects.fences.Release(uint64(h))
	core.Assert(ok, "unknown fence handle %d", h)
	vk.DestroyFence(b.device.LogicalDevice, f.handle, b.allocator)
}

func (b *Backend) WaitFence(h gpu.Fence, timeout time.Duration) error {
	f := lookup(b.objects.fences, uint64(h), "fence")
	if f.signaled {
		// If already signaled, do not wait.
		return nil
	}
	result := vk.WaitForFences(b.device.LogicalDevice, 1, []vk.Fence{f.handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		f.signaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out after %s", timeout)
	}
	return check(result, "vkWaitForFences")
}

func (b *Backend) ResetFence(h gpu.Fence) error {
	f := lookup(b.objects.fences, uint64(h), "fence")
	if !f.signaled {
		return nil
	}
	if err := check(vk.ResetFences(b.device.LogicalDevice, 1, []vk.Fence{f.handle}), "vkResetFences"); err != nil {
		return err
	}
	f.signaled = false
	return nil
}

func (b *Backend) CreateSemaphore() (gpu.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var s vk.Semaphore
	if err := check(vk.CreateSemaphore(b.device.LogicalDevice, &semaphoreCreateInfo, b.allocator, &s), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return gpu.Semaphore(b.objects.semaphores.Acquire(&s)), nil
}

func (b *Backend) DestroySemaphore(h gpu.Semaphore) {
	s, ok := b.objects.semaphores.Release(uint64(h))
	core.Assert(ok, "unknown semaphore handle %d", h)
	vk.DestroySemaphore(b.device.LogicalDevice, *s, b.allocator)
}
