package vulkan

import (
	vk "github.com/goki/vulkan"
)

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	width  uint32
	height uint32
	format vk.Format
	name   string
}

type imageCreateInfo struct {
	width, height uint32
	format        vk.Format
	usage         vk.ImageUsageFlags
	aspect        vk.ImageAspectFlags
	name          string
}

func (b *Backend) createImage(info imageCreateInfo) (*image, error) {
	logical := b.device.LogicalDevice
	img := &image{
		width:  info.width,
		height: info.height,
		format: info.format,
		name:   info.name,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.width,
			Height: info.height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        info.format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         info.usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if err := check(vk.CreateImage(logical, &imageCreateInfo, b.allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}
	img.handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(logical, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, err := b.findMemoryIndex(memoryRequirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		b.destroyImage(img)
		return nil, err
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(logical, &memoryAllocateInfo, b.allocator, &memory), "vkAllocateMemory"); err != nil {
		b.destroyImage(img)
		return nil, err
	}
	img.memory = memory

	if err := check(vk.BindImageMemory(logical, handle, memory, 0), "vkBindImageMemory"); err != nil {
		b.destroyImage(img)
		return nil, err
	}

	view, err := b.createImageView(handle, info.format, info.aspect)
	if err != nil {
		b.destroyImage(img)
		return nil, err
	}
	img.view = view
	return img, nil
}

func (b *Backend) createImageView(handle vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(b.device.LogicalDevice, &viewCreateInfo, b.allocator, &view), "vkCreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (b *Backend) destroyImage(img *image) {
	logical := b.device.LogicalDevice
	if img.view != vk.NullImageView {
		vk.DestroyImageView(logical, img.view, b.allocator)
		img.view = vk.NullImageView
	}
	if img.memory != vk.NullDeviceMemory {
		vk.FreeMemory(logical, img.memory, b.allocator)
		img.memory = vk.NullDeviceMemory
	}
	if img.handle != vk.NullImage {
		vk.DestroyImage(logical, img.handle, b.allocator)
		img.handle = vk.NullImage
	}
}
