package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
}

func (b *Backend) framebufferCreate(renderpass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	// Take a copy of the attachments.
	fb := &VulkanFramebuffer{Attachments: append([]vk.ImageView(nil), attachments...)}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if err := check(vk.CreateFramebuffer(b.device.LogicalDevice, &framebufferCreateInfo, b.allocator, &handle), "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	fb.Handle = handle
	return fb, nil
}

func (vfb *VulkanFramebuffer) destroy(b *Backend) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(b.device.LogicalDevice, vfb.Handle, b.allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
}
