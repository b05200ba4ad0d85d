package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	enginemath "github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *image
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// CreateSwapchain builds the swapchain with its depth attachment, render pass
// and framebuffers. An existing swapchain is destroyed first.
func (b *Backend) CreateSwapchain(extent gpu.Extent2D) (gpu.SwapchainInfo, error) {
	core.Assert(!extent.IsZero(), "swapchain extent %dx%d", extent.Width, extent.Height)
	if b.swapchain != nil {
		b.DestroySwapchain()
	}

	// Surface capabilities change with the window.
	if err := DeviceQuerySwapchainSupport(b.device.PhysicalDevice, b.surface, &b.device.SwapchainSupport); err != nil {
		return gpu.SwapchainInfo{}, err
	}

	swapchain, err := b.createSwapchain(extent.Width, extent.Height)
	if err != nil {
		return gpu.SwapchainInfo{}, err
	}
	b.swapchain = swapchain

	renderpass, err := b.renderpassCreate(swapchain.ImageFormat.Format, b.device.DepthFormat, swapchain.Extent)
	if err != nil {
		b.DestroySwapchain()
		return gpu.SwapchainInfo{}, err
	}
	b.renderpass = renderpass

	b.framebuffers = make([]*VulkanFramebuffer, 0, swapchain.ImageCount)
	for _, view := range swapchain.Views {
		attachments := []vk.ImageView{view, swapchain.DepthAttachment.view}
		fb, err := b.framebufferCreate(renderpass, swapchain.Extent.Width, swapchain.Extent.Height, attachments)
		if err != nil {
			b.DestroySwapchain()
			return gpu.SwapchainInfo{}, err
		}
		b.framebuffers = append(b.framebuffers, fb)
	}

	info := gpu.SwapchainInfo{
		ImageCount:  swapchain.ImageCount,
		ColorFormat: gpuFormat(swapchain.ImageFormat.Format),
		DepthFormat: gpuFormat(b.device.DepthFormat),
		Extent:      gpu.Extent2D{Width: swapchain.Extent.Width, Height: swapchain.Extent.Height},
	}
	core.LogInfo("swapchain created: %d images, %dx%d", info.ImageCount, info.Extent.Width, info.Extent.Height)
	return info, nil
}

// DestroySwapchain releases the framebuffers, render pass and swapchain.
// The device must be idle.
func (b *Backend) DestroySwapchain() {
	for _, fb := range b.framebuffers {
		fb.destroy(b)
	}
	b.framebuffers = nil
	if b.renderpass != nil {
		b.renderpass.destroy(b)
		b.renderpass = nil
	}
	if b.swapchain == nil {
		return
	}
	vs := b.swapchain
	if vs.DepthAttachment != nil {
		b.destroyImage(vs.DepthAttachment)
		vs.DepthAttachment = nil
	}
	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		vk.DestroyImageView(b.device.LogicalDevice, view, b.allocator)
	}
	vk.DestroySwapchain(b.device.LogicalDevice, vs.Handle, b.allocator)
	b.swapchain = nil
}

func (b *Backend) AcquireNextImage(signal gpu.Semaphore) (uint32, gpu.PresentStatus, error) {
	core.Assert(b.swapchain != nil, "acquire without a swapchain")
	semaphore := *lookup(b.objects.semaphores, uint64(signal), "semaphore")

	var imageIndex uint32
	result := vk.AcquireNextImage(b.device.LogicalDevice, b.swapchain.Handle, math.MaxUint64, semaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, gpu.PresentOK, nil
	case vk.Suboptimal:
		return imageIndex, gpu.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, gpu.PresentOutOfDate, nil
	}
	return 0, gpu.PresentOK, check(result, "vkAcquireNextImageKHR")
}

// Present returns the image to the swapchain for presentation.
func (b *Backend) Present(imageIndex uint32, wait gpu.Semaphore) (gpu.PresentStatus, error) {
	core.Assert(b.swapchain != nil, "present without a swapchain")
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{*lookup(b.objects.semaphores, uint64(wait), "semaphore")},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.swapchain.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	var result vk.Result
	_ = b.locks.SafeQueueCall(uint32(b.device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(b.device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return gpu.PresentOK, nil
	case vk.Suboptimal:
		return gpu.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return gpu.PresentOutOfDate, nil
	}
	return gpu.PresentOK, check(result, "vkQueuePresentKHR")
}

func (b *Backend) createSwapchain(width, height uint32) (*VulkanSwapchain, error) {
	support := &b.device.SwapchainSupport
	swapchain := &VulkanSwapchain{}

	// Choose a swap surface format.
	swapchain.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	// Swapchain extent
	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = enginemath.Clamp(swapchainExtent.Width, minExtent.Width, maxExtent.Width)
	swapchainExtent.Height = enginemath.Clamp(swapchainExtent.Height, minExtent.Height, maxExtent.Height)
	swapchain.Extent = swapchainExtent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if b.device.GraphicsQueueIndex != b.device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(b.device.GraphicsQueueIndex),
			uint32(b.device.PresentQueueIndex),
		}
	}

	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(b.device.LogicalDevice, &swapchainCreateInfo, b.allocator, &handle), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}
	swapchain.Handle = handle

	// Images
	if err := check(vk.GetSwapchainImages(b.device.LogicalDevice, handle, &swapchain.ImageCount, nil), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(b.device.LogicalDevice, handle, b.allocator)
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := check(vk.GetSwapchainImages(b.device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(b.device.LogicalDevice, handle, b.allocator)
		return nil, err
	}

	// Views
	b.swapchain = swapchain
	for _, img := range swapchain.Images {
		view, err := b.createImageView(img, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			b.DestroySwapchain()
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	// Create depth image and its view.
	depth, err := b.createImage(imageCreateInfo{
		width:  swapchainExtent.Width,
		height: swapchainExtent.Height,
		format: b.device.DepthFormat,
		usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		name:   "depth",
	})
	if err != nil {
		b.DestroySwapchain()
		return nil, err
	}
	swapchain.DepthAttachment = depth
	return swapchain, nil
}
