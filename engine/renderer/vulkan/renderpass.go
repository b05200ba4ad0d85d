package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// VulkanRenderpass clears and draws into one swapchain color image plus the
// shared depth attachment.
type VulkanRenderpass struct {
	Handle vk.RenderPass
	Extent vk.Extent2D
}

func (b *Backend) renderpassCreate(colorFormat, depthFormat vk.Format, extent vk.Extent2D) (*VulkanRenderpass, error) {
	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 2)

	// Color attachment
	attachmentDescriptions[0] = vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = colorAttachmentReference

	// Depth attachment
	attachmentDescriptions[1] = vk.AttachmentDescription{
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass.PDepthStencilAttachment = &depthAttachmentReference

	// Vertex input of this pass waits on the compute pre-pass through explicit
	// buffer barriers, so only the attachment dependency lives here.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var handle vk.RenderPass
	if err := check(vk.CreateRenderPass(b.device.LogicalDevice, &renderpassCreateInfo, b.allocator, &handle), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	return &VulkanRenderpass{Handle: handle, Extent: extent}, nil
}

func (vr *VulkanRenderpass) destroy(b *Backend) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(b.device.LogicalDevice, vr.Handle, b.allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) begin(cb *commandBuffer, framebuffer vk.Framebuffer, clear gpu.ClearValues) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vr.Extent,
		},
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)
	beginInfo.ClearValueCount = 2
	beginInfo.PClearValues = clearValues

	vk.CmdBeginRenderPass(cb.handle, &beginInfo, vk.SubpassContentsInline)
	cb.state = commandBufferStateInRenderPass
}

func (vr *VulkanRenderpass) end(cb *commandBuffer) {
	vk.CmdEndRenderPass(cb.handle)
	cb.state = commandBufferStateRecording
}
