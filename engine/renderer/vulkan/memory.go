package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (b *Backend) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	core.Assert(desc.Size > 0, "buffer %q has zero size", desc.Name)
	logical := b.device.LogicalDevice

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}
	var handle vk.Buffer
	if err := check(vk.CreateBuffer(logical, &bufferCreateInfo, b.allocator, &handle), "vkCreateBuffer"); err != nil {
		return 0, core.Wrapf(err, "create buffer %q", desc.Name)
	}
	buf := &buffer{handle: handle, size: desc.Size, name: desc.Name}

	// Gather memory requirements.
	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(logical, handle, &requirements)
	requirements.Deref()

	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if desc.Memory == gpu.MemoryHostVisible {
		flags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	memoryIndex, err := b.findMemoryIndex(requirements.MemoryTypeBits, flags)
	if err != nil {
		b.destroyBuffer(buf)
		return 0, core.Wrapf(err, "create buffer %q", desc.Name)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(logical, &allocateInfo, b.allocator, &memory), "vkAllocateMemory"); err != nil {
		b.destroyBuffer(buf)
		return 0, core.Wrapf(err, "allocate memory for buffer %q", desc.Name)
	}
	buf.memory = memory

	if err := check(vk.BindBufferMemory(logical, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		b.destroyBuffer(buf)
		return 0, core.Wrapf(err, "bind memory for buffer %q", desc.Name)
	}
	return gpu.Buffer(b.objects.buffers.Acquire(buf)), nil
}

func (b *Backend) MapBuffer(h gpu.Buffer) ([]byte, error) {
	buf := lookup(b.objects.buffers, uint64(h), "buffer")
	var data unsafe.Pointer
	if err := check(vk.MapMemory(b.device.LogicalDevice, buf.memory, 0, vk.DeviceSize(buf.size), 0, &data), "vkMapMemory"); err != nil {
		return nil, core.Wrapf(err, "map buffer %q", buf.name)
	}
	buf.mapped = true
	return unsafe.Slice((*byte)(data), buf.size), nil
}

func (b *Backend) UnmapBuffer(h gpu.Buffer) {
	buf := lookup(b.objects.buffers, uint64(h), "buffer")
	if !buf.mapped {
		return
	}
	vk.UnmapMemory(b.device.LogicalDevice, buf.memory)
	buf.mapped = false
}

func (b *Backend) DestroyBuffer(h gpu.Buffer) {
	buf, ok := b.objects.buffers.Release(uint64(h))
	core.Assert(ok, "unknown buffer handle %d", h)
	b.destroyBuffer(buf)
}

func (b *Backend) destroyBuffer(buf *buffer) {
	logical := b.device.LogicalDevice
	if buf.mapped {
		vk.UnmapMemory(logical, buf.memory)
		buf.mapped = false
	}
	if buf.memory != vk.NullDeviceMemory {
		vk.FreeMemory(logical, buf.memory, b.allocator)
		buf.memory = vk.NullDeviceMemory
	}
	if buf.handle != vk.NullBuffer {
		vk.DestroyBuffer(logical, buf.handle, b.allocator)
		buf.handle = vk.NullBuffer
	}
}

// CreateImage makes a sampled 2D image that is filled through a transfer.
func (b *Backend) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	img, err := b.createImage(imageCreateInfo{
		width:  desc.Width,
		height: desc.Height,
		format: vkFormat(desc.Format),
		usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		name:   desc.Name,
	})
	if err != nil {
		return 0, core.Wrapf(err, "create image %q", desc.Name)
	}
	return gpu.Image(b.objects.images.Acquire(img)), nil
}

func (b *Backend) DestroyImage(h gpu.Image) {
	img, ok := b.objects.images.Release(uint64(h))
	core.Assert(ok, "unknown image handle %d", h)
	b.destroyImage(img)
}

func (b *Backend) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	filter := vk.FilterNearest
	if desc.Linear {
		filter = vk.FilterLinear
	}
	address := vk.SamplerAddressModeClampToEdge
	if desc.Repeat {
		address = vk.SamplerAddressModeRepeat
	}
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		MipLodBias:              0.0,
		AnisotropyEnable:        b.device.Features.SamplerAnisotropy,
		MaxAnisotropy:           1.0,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0.0,
		MaxLod:                  0.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if b.device.Features.SamplerAnisotropy == vk.True {
		samplerInfo.MaxAnisotropy = b.device.Properties.Limits.MaxSamplerAnisotropy
	}
	var sampler vk.Sampler
	if err := check(vk.CreateSampler(b.device.LogicalDevice, &samplerInfo, b.allocator, &sampler), "vkCreateSampler"); err != nil {
		return 0, err
	}
	return gpu.Sampler(b.objects.samplers.Acquire(&sampler)), nil
}

func (b *Backend) DestroySampler(h gpu.Sampler) {
	sampler, ok := b.objects.samplers.Release(uint64(h))
	core.Assert(ok, "unknown sampler handle %d", h)
	vk.DestroySampler(b.device.LogicalDevice, *sampler, b.allocator)
}
